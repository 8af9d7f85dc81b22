package internaldefs

import (
	"strconv"
	"strings"

	goToken "github.com/MrEthical07/goToken"
)

// BucketCount is the number of latency buckets including +Inf.
const BucketCount = len(goToken.HistogramBounds) + 1

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goToken.MetricRegisterSuccess, Name: "gotoken_register_success_total", Help: "Users created by Register."},
	{ID: goToken.MetricRegisterFailure, Name: "gotoken_register_failure_total", Help: "Register calls that failed for other reasons."},
	{ID: goToken.MetricRegisterDuplicate, Name: "gotoken_register_duplicate_total", Help: "Register calls rejected as duplicate identities."},
	{ID: goToken.MetricRegisterWeakCredential, Name: "gotoken_register_weak_credential_total", Help: "Register calls rejected by the password policy."},
	{ID: goToken.MetricRegisterRateLimited, Name: "gotoken_register_rate_limited_total", Help: "Rate-limited Register calls."},
	{ID: goToken.MetricLoginSuccess, Name: "gotoken_login_success_total", Help: "Logins that returned a token."},
	{ID: goToken.MetricLoginFailure, Name: "gotoken_login_failure_total", Help: "Logins rejected as invalid credentials."},
	{ID: goToken.MetricLoginUnknownIdentity, Name: "gotoken_login_unknown_identity_total", Help: "Login failures for unknown identifiers."},
	{ID: goToken.MetricLoginRateLimited, Name: "gotoken_login_rate_limited_total", Help: "Rate-limited logins."},
	{ID: goToken.MetricPasswordUpgraded, Name: "gotoken_password_upgraded_total", Help: "Stored password hashes rewritten on login."},
	{ID: goToken.MetricTokenIssued, Name: "gotoken_token_issued_total", Help: "Tokens issued."},
	{ID: goToken.MetricAuthenticateSuccess, Name: "gotoken_authenticate_success_total", Help: "Tokens accepted by Authenticate."},
	{ID: goToken.MetricAuthenticateFailure, Name: "gotoken_authenticate_failure_total", Help: "Tokens rejected by Authenticate."},
	{ID: goToken.MetricTokenMalformed, Name: "gotoken_token_malformed_total", Help: "Tokens rejected as malformed."},
	{ID: goToken.MetricTokenUnknownKey, Name: "gotoken_token_unknown_key_total", Help: "Tokens rejected for an unknown key id."},
	{ID: goToken.MetricTokenBadSignature, Name: "gotoken_token_bad_signature_total", Help: "Tokens rejected for a bad signature."},
	{ID: goToken.MetricTokenExpired, Name: "gotoken_token_expired_total", Help: "Tokens rejected as expired."},
	{ID: goToken.MetricTokenNotYetValid, Name: "gotoken_token_not_yet_valid_total", Help: "Tokens rejected as issued in the future."},
	{ID: goToken.MetricTokenClaimMismatch, Name: "gotoken_token_claim_mismatch_total", Help: "Tokens rejected for issuer or audience mismatch."},
	{ID: goToken.MetricKeyRotated, Name: "gotoken_key_rotated_total", Help: "Signing key rotations."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goToken.MetricAuthenticateLatency, Name: "gotoken_authenticate_latency_seconds", Help: "Authenticate latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "gotoken_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(goToken.HistogramBounds))
	for i, b := range goToken.HistogramBounds {
		out[i] = b.Seconds()
	}
	return out
}

// BoundSuffixes returns a metric-name-safe label per bucket, ending in "inf".
func BoundSuffixes() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range UpperBounds() {
		s := strconv.FormatFloat(b, 'f', -1, 64)
		out = append(out, strings.ReplaceAll(s, ".", "_"))
	}
	return append(out, "inf")
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
