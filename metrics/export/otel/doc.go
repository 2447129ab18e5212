// Package otel publishes engine metrics through an OpenTelemetry meter.
//
// Counters become Int64ObservableCounters. The latency histogram is published as
// one cumulative gauge per bucket plus a count gauge, since the snapshot keeps
// no sum. Values are read from the engine in a single registered callback;
// [Exporter.Close] unregisters it.
package otel
