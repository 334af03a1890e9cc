package internaldefs

import (
	authgate "github.com/devharbor/authgate"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in export order.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricLoginSuccess, Name: "authgate_login_success_total", Help: "Successful login attempts."},
	{ID: authgate.MetricLoginFailure, Name: "authgate_login_failure_total", Help: "Failed login attempts."},
	{ID: authgate.MetricTokenIssued, Name: "authgate_token_issued_total", Help: "Access tokens issued."},
	{ID: authgate.MetricTokenAccepted, Name: "authgate_token_accepted_total", Help: "Access tokens accepted during verification."},
	{ID: authgate.MetricTokenRejected, Name: "authgate_token_rejected_total", Help: "Access tokens rejected during verification."},
	{ID: authgate.MetricAccountCreated, Name: "authgate_account_created_total", Help: "Successful account creations."},
	{ID: authgate.MetricAccountDuplicate, Name: "authgate_account_duplicate_total", Help: "Account creation attempts rejected as duplicate."},
	{ID: authgate.MetricRecoveryRequest, Name: "authgate_recovery_request_total", Help: "Password recovery requests."},
	{ID: authgate.MetricRecoveryRateLimited, Name: "authgate_recovery_rate_limited_total", Help: "Rate-limited recovery operations."},
	{ID: authgate.MetricRecoveryVerifySuccess, Name: "authgate_recovery_verify_success_total", Help: "Successful recovery code verifications."},
	{ID: authgate.MetricRecoveryVerifyFailure, Name: "authgate_recovery_verify_failure_total", Help: "Failed recovery code verifications."},
	{ID: authgate.MetricRecoveryResetSuccess, Name: "authgate_recovery_reset_success_total", Help: "Successful recovery password resets."},
	{ID: authgate.MetricRecoveryResetFailure, Name: "authgate_recovery_reset_failure_total", Help: "Failed recovery password resets."},
	{ID: authgate.MetricRecoveryExpired, Name: "authgate_recovery_expired_total", Help: "Recovery challenges rejected as expired."},
	{ID: authgate.MetricRateLimitHit, Name: "authgate_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs lists every engine histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricVerifyLatency, Name: "authgate_verify_latency_seconds", Help: "Token verification latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// engine's fixed histogram layout.
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

// HistogramBoundSuffix mirrors HistogramBounds with metric-name-safe
// spellings for exporters that flatten buckets into counter names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the engine's
// fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
