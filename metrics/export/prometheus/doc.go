// Package prometheus exposes engine metrics as a Prometheus collector.
//
// [NewExporter] reads an [tripauth.Engine] snapshot on every scrape. Counters are
// named tripauth_*_total; the single histogram is tripauth_backend_latency_seconds.
// The collector is not registered globally: callers either register it themselves
// or mount [Exporter.Handler], which serves it from a private registry.
package prometheus
