package internaldefs

import (
	sessionauth "github.com/MrEthical07/sessionauth"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   sessionauth.MetricID
	Name string
	Help string
}

// HistogramDef names one exported latency histogram.
type HistogramDef struct {
	ID   sessionauth.MetricID
	Name string
	Help string
}

const namespace = "sessionauth"

func counter(id sessionauth.MetricID, help string) CounterDef {
	return CounterDef{ID: id, Name: namespace + "_" + id.String() + "_total", Help: help}
}

var CounterDefs = []CounterDef{
	counter(sessionauth.MetricLoginSuccess, "Successful logins."),
	counter(sessionauth.MetricLoginFailure, "Failed logins."),
	counter(sessionauth.MetricLoginRateLimited, "Logins rejected by the throttle."),
	counter(sessionauth.MetricRegisterSuccess, "Registered users."),
	counter(sessionauth.MetricRegisterDuplicate, "Registrations rejected for a taken email."),
	counter(sessionauth.MetricRefreshSuccess, "Successful token refreshes."),
	counter(sessionauth.MetricRefreshFailure, "Failed token refreshes."),
	counter(sessionauth.MetricRefreshReuseDetected, "Refresh tokens presented with a stale nonce."),
	counter(sessionauth.MetricRefreshExpired, "Refreshes against an expired session."),
	counter(sessionauth.MetricSessionCreated, "Created sessions."),
	counter(sessionauth.MetricSessionInvalidated, "Sessions removed by compromise handling or password reset."),
	counter(sessionauth.MetricLogout, "Logout calls."),
	counter(sessionauth.MetricEmailVerificationRequest, "Verification mails requested."),
	counter(sessionauth.MetricEmailVerificationSuccess, "Verified emails."),
	counter(sessionauth.MetricEmailVerificationFailure, "Failed email verifications."),
	counter(sessionauth.MetricPasswordResetRequest, "Reset mails requested."),
	counter(sessionauth.MetricPasswordResetConfirmSuccess, "Completed password resets."),
	counter(sessionauth.MetricPasswordResetConfirmFailure, "Failed password resets."),
	counter(sessionauth.MetricPasswordResetReplay, "Reset tokens presented after the password already changed."),
	counter(sessionauth.MetricAccessTokenRejected, "Access tokens that failed verification."),
}

var HistogramDefs = []HistogramDef{
	{ID: sessionauth.MetricRefreshLatency, Name: namespace + "_refresh_latency_seconds", Help: "Refresh latency histogram."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = namespace + "_audit_dropped_total"

// HistogramBounds are the bucket upper bounds in seconds, last one +Inf.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// UpperBoundsSeconds converts sessionauth.HistogramBucketBounds to seconds.
func UpperBoundsSeconds() []float64 {
	out := make([]float64, 0, len(sessionauth.HistogramBucketBounds))
	for _, d := range sessionauth.HistogramBucketBounds {
		out = append(out, d.Seconds())
	}
	return out
}

func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
