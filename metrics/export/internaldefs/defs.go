package internaldefs

import (
	onboardAuth "github.com/MrEthical07/onboardAuth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   onboardAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   onboardAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for events the audit dispatcher discarded.
const AuditDroppedName = "onboardauth_audit_dropped_total"

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: onboardAuth.MetricLoginSuccess, Name: "onboardauth_login_success_total", Help: "Logins that produced a full session."},
	{ID: onboardAuth.MetricLoginFailure, Name: "onboardauth_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: onboardAuth.MetricLoginRateLimited, Name: "onboardauth_login_rate_limited_total", Help: "Logins refused by the attempt limiter."},
	{ID: onboardAuth.MetricPasswordChangeRequired, Name: "onboardauth_password_change_required_total", Help: "Logins stopped by password expiry."},
	{ID: onboardAuth.MetricMFASetupRequired, Name: "onboardauth_mfa_setup_required_total", Help: "Logins that issued an MFA pre-session."},
	{ID: onboardAuth.MetricMFACodeRequired, Name: "onboardauth_mfa_code_required_total", Help: "Logins that asked for an MFA code."},
	{ID: onboardAuth.MetricMFASetupPending, Name: "onboardauth_mfa_setup_pending_total", Help: "Logins allowed during the MFA grace period."},
	{ID: onboardAuth.MetricMFALoginSuccess, Name: "onboardauth_mfa_login_success_total", Help: "Accepted MFA codes at login."},
	{ID: onboardAuth.MetricMFALoginFailure, Name: "onboardauth_mfa_login_failure_total", Help: "Rejected MFA codes at login."},
	{ID: onboardAuth.MetricMFARateLimited, Name: "onboardauth_mfa_rate_limited_total", Help: "MFA checks refused by the attempt limiter."},
	{ID: onboardAuth.MetricTrustedDeviceSkip, Name: "onboardauth_trusted_device_skip_total", Help: "MFA challenges skipped for a trusted device."},
	{ID: onboardAuth.MetricTrustedDeviceAdded, Name: "onboardauth_trusted_device_added_total", Help: "Devices remembered after MFA."},
	{ID: onboardAuth.MetricBackupCodeUsed, Name: "onboardauth_backup_code_used_total", Help: "Backup codes consumed."},
	{ID: onboardAuth.MetricBackupCodeRegenerated, Name: "onboardauth_backup_code_regenerated_total", Help: "Backup code sets regenerated."},
	{ID: onboardAuth.MetricMFASetupStarted, Name: "onboardauth_mfa_setup_started_total", Help: "MFA setup sessions started or restarted."},
	{ID: onboardAuth.MetricMFASetupCompleted, Name: "onboardauth_mfa_setup_completed_total", Help: "MFA enrollments completed."},
	{ID: onboardAuth.MetricMFASetupExpired, Name: "onboardauth_mfa_setup_expired_total", Help: "Setup verifications against missing or expired setup sessions."},
	{ID: onboardAuth.MetricMFAReset, Name: "onboardauth_mfa_reset_total", Help: "Administrative MFA resets."},
	{ID: onboardAuth.MetricSessionCreated, Name: "onboardauth_session_created_total", Help: "Sessions created."},
	{ID: onboardAuth.MetricSessionRegenerated, Name: "onboardauth_session_regenerated_total", Help: "Sessions rotated to a new id."},
	{ID: onboardAuth.MetricLogout, Name: "onboardauth_logout_total", Help: "Logout operations."},
	{ID: onboardAuth.MetricTokenIssued, Name: "onboardauth_token_issued_total", Help: "Fallback bearer tokens issued."},
	{ID: onboardAuth.MetricTokenRevoked, Name: "onboardauth_token_revoked_total", Help: "Fallback bearer tokens revoked."},
	{ID: onboardAuth.MetricTokenRejected, Name: "onboardauth_token_rejected_total", Help: "Bearer tokens rejected as invalid or revoked."},
	{ID: onboardAuth.MetricAccountCreated, Name: "onboardauth_account_created_total", Help: "Accounts created."},
	{ID: onboardAuth.MetricPasswordChangeSuccess, Name: "onboardauth_password_change_success_total", Help: "Passwords changed."},
	{ID: onboardAuth.MetricPasswordChangeRejected, Name: "onboardauth_password_change_rejected_total", Help: "Password changes rejected."},
	{ID: onboardAuth.MetricStoreUnavailable, Name: "onboardauth_store_unavailable_total", Help: "Operations failed by datastore errors."},
}

// HistogramDefs lists the exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: onboardAuth.MetricLoginLatency, Name: "onboardauth_login_latency_seconds", Help: "Login latency."},
}

// HistogramBounds are the bucket labels, matching [onboardAuth.HistogramBounds]
// plus +Inf.
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

// HistogramBoundSuffix is HistogramBounds in a form usable inside a metric name.
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

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
