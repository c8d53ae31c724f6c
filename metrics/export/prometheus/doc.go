// Package prometheus exposes engine metrics as a client_golang Collector.
//
// Counters are named sessionauth_*_total and the refresh latency histogram is
// sessionauth_refresh_latency_seconds. Nothing is registered globally; callers
// register the [Collector] or mount [Handler].
package prometheus
