package devserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	codesIssued   prometheus.Counter
	verifications *prometheus.CounterVec
	tokensIssued  prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripauth",
			Subsystem: "devserver",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tripauth",
			Subsystem: "devserver",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		codesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tripauth",
			Subsystem: "devserver",
			Name:      "otp_issued_total",
			Help:      "One-time codes issued.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripauth",
			Subsystem: "devserver",
			Name:      "otp_verifications_total",
			Help:      "Code verifications by result.",
		}, []string{"result"}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tripauth",
			Subsystem: "devserver",
			Name:      "tokens_issued_total",
			Help:      "Bearer tokens issued.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.codesIssued, m.verifications, m.tokensIssued)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts and times every request by its chi route pattern.
func (m *metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
