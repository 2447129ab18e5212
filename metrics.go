package tripauth

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter or histogram.
type MetricID uint16

const (
	// MetricCodeRequested counts accepted SubmitEmail calls.
	MetricCodeRequested MetricID = iota
	// MetricCodeRequestFailed counts request and resend calls the backend refused or never answered.
	MetricCodeRequestFailed
	// MetricCodeResent counts accepted Resend calls.
	MetricCodeResent
	// MetricCodeVerified counts codes exchanged for a token.
	MetricCodeVerified
	// MetricCodeRejected counts codes the backend refused.
	MetricCodeRejected
	// MetricStaleResponse counts responses dropped because the challenge moved on.
	MetricStaleResponse
	// MetricSessionRestored counts Bootstrap calls that restored a session.
	MetricSessionRestored
	// MetricSessionDiscarded counts Bootstrap calls that cleared an expired or malformed session.
	MetricSessionDiscarded
	// MetricStorageFailure counts storage errors seen on save, clear and bootstrap.
	MetricStorageFailure
	// MetricLogout counts Logout calls that held a session.
	MetricLogout
	// MetricItineraryGenerated counts successful itinerary calls.
	MetricItineraryGenerated
	// MetricItineraryUnauthorized counts itinerary calls rejected with 401.
	MetricItineraryUnauthorized
	// MetricBackendLatency is the round trip histogram for backend calls.
	MetricBackendLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free engine counters. A nil or disabled Metrics ignores updates.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
// Histogram buckets are per-bucket counts, not cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the histogram of id. Only MetricBackendLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricBackendLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// since observes the time elapsed from start. Use as defer m.since(id, time.Now()).
func (m *Metrics) since(id MetricID, start time.Time) {
	if m.LatencyEnabled() {
		m.Observe(id, time.Since(start))
	}
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricBackendLatency].buckets[i])
		}
		s.Histograms[MetricBackendLatency] = buckets
	}
	return s
}

// Bucket upper bounds: 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 10s, +Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 50:
		return 0
	case ms <= 100:
		return 1
	case ms <= 250:
		return 2
	case ms <= 500:
		return 3
	case ms <= 1000:
		return 4
	case ms <= 2500:
		return 5
	case ms <= 10000:
		return 6
	default:
		return 7
	}
}
