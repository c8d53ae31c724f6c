// Package rate throttles failed logins with Redis fixed-window counters.
//
// # Window semantics
//
// INCR + EXPIRE on the first hit. Keys, under the configured prefix:
//   - {prefix}:al:{email}  failed logins per email
//   - {prefix}:ali:{ip}    failed logins per client IP
//
// A check fails once a counter reaches MaxAttempts; the window then has to run out.
package rate
