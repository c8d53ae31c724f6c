// Package otel publishes engine metrics through OpenTelemetry.
//
// Counters become Int64ObservableCounters. The refresh latency histogram is
// published as a "_bucket" gauge carrying an "le" attribute per upper bound plus
// a "_count" gauge. One callback reads the engine snapshot per collection; the
// caller owns the MeterProvider.
package otel
