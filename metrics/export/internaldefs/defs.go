package internaldefs

import (
	"github.com/travelplanner/tripauth"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   tripauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   tripauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: tripauth.MetricCodeRequested, Name: "tripauth_code_requested_total", Help: "Login codes requested."},
	{ID: tripauth.MetricCodeRequestFailed, Name: "tripauth_code_request_failed_total", Help: "Code requests and resends that failed."},
	{ID: tripauth.MetricCodeResent, Name: "tripauth_code_resent_total", Help: "Login codes resent."},
	{ID: tripauth.MetricCodeVerified, Name: "tripauth_code_verified_total", Help: "Codes exchanged for a session."},
	{ID: tripauth.MetricCodeRejected, Name: "tripauth_code_rejected_total", Help: "Codes rejected by the backend."},
	{ID: tripauth.MetricStaleResponse, Name: "tripauth_stale_response_total", Help: "Backend responses discarded because the login moved on."},
	{ID: tripauth.MetricSessionRestored, Name: "tripauth_session_restored_total", Help: "Persisted sessions restored at bootstrap."},
	{ID: tripauth.MetricSessionDiscarded, Name: "tripauth_session_discarded_total", Help: "Expired or malformed sessions cleared at bootstrap."},
	{ID: tripauth.MetricStorageFailure, Name: "tripauth_storage_failure_total", Help: "Session storage errors."},
	{ID: tripauth.MetricLogout, Name: "tripauth_logout_total", Help: "Sign-outs of a held session."},
	{ID: tripauth.MetricItineraryGenerated, Name: "tripauth_itinerary_generated_total", Help: "Itineraries generated."},
	{ID: tripauth.MetricItineraryUnauthorized, Name: "tripauth_itinerary_unauthorized_total", Help: "Itinerary calls rejected with 401."},
}

var HistogramDefs = []HistogramDef{
	{ID: tripauth.MetricBackendLatency, Name: "tripauth_backend_latency_seconds", Help: "Backend round trip latency."},
}

// EventsDroppedName is the counter for session events dropped under backpressure.
const EventsDroppedName = "tripauth_events_dropped_total"

// HistogramBounds are the finite upper bounds, in seconds, of the engine's
// latency buckets. The last engine bucket is +Inf.
var HistogramBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 10}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters without
// native histogram support.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"10",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
