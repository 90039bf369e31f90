package onboardAuth

import "errors"

var (
	// ErrUnauthorized is returned when a request carries no usable credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned for an unknown email and a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMFACodeInvalid is returned when neither the TOTP check nor a backup code matched.
	ErrMFACodeInvalid = errors.New("invalid mfa code")

	// ErrSessionNotFound is returned for missing or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrMFASetupExpired is returned when a setup session is missing or past its expiry.
	ErrMFASetupExpired = errors.New("mfa setup session expired")
	// ErrTokenRevoked is returned for bearer tokens present in the revocation registry.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenInvalid is returned for bearer tokens that fail signature or claim checks.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrPasswordReuse is returned when a new password matches the current or a recent one.
	ErrPasswordReuse = errors.New("new password matches a recently used password")
	// ErrPasswordTooWeak is returned for short or denylisted passwords.
	ErrPasswordTooWeak = errors.New("password too weak")
	// ErrMFARequired is returned when a full session is needed but enrollment is pending.
	ErrMFARequired = errors.New("mfa required")
	// ErrMFANotEnrolled is returned by operations that need an enrolled account.
	ErrMFANotEnrolled = errors.New("mfa not enrolled")
	// ErrMFAAlreadyEnrolled is returned when setup is attempted on an enrolled
	// account. The enrollment must be reset or disabled first.
	ErrMFAAlreadyEnrolled = errors.New("mfa already enrolled")
	// ErrPermissionDenied is returned when the caller's role lacks a permission.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrReauthenticationRequired is returned when a restart cannot identify the account.
	ErrReauthenticationRequired = errors.New("reauthentication required")
	// ErrAccountExists is returned when the email is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrTokensDisabled is returned when bearer tokens are not configured.
	ErrTokensDisabled = errors.New("bearer tokens disabled")
	// ErrAccountInvalid is returned for malformed account creation requests.
	ErrAccountInvalid = errors.New("invalid account request")
	// ErrAccountRoleInvalid is returned for roles outside the portal role set.
	ErrAccountRoleInvalid = errors.New("invalid account role")

	// ErrAccountNotFound is returned by admin lookups of unknown accounts.
	ErrAccountNotFound = errors.New("account not found")

	// ErrLoginRateLimited is returned when the email or client IP used its failure budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrMFARateLimited is returned when the account used its MFA failure budget.
	ErrMFARateLimited = errors.New("mfa attempts rate limited")

	// ErrStoreUnavailable wraps datastore failures.
	ErrStoreUnavailable = errors.New("datastore unavailable")
	// ErrRateLimiterUnavailable wraps Redis failures in the limiters.
	ErrRateLimiterUnavailable = errors.New("rate limiter unavailable")
	// ErrEngineNotReady is returned by a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Kind groups errors by how a caller should react to them.
type Kind string

const (
	KindUnknown               Kind = ""
	KindAuthenticationFailure Kind = "authentication_failure"
	KindExpiredArtifact       Kind = "expired_artifact"
	KindPolicyViolation       Kind = "policy_violation"
	KindNotFound              Kind = "not_found"
	KindRateLimited           Kind = "rate_limited"
	KindUnavailable           Kind = "unavailable"
)

var errorKinds = []struct {
	err  error
	kind Kind
}{
	{ErrStoreUnavailable, KindUnavailable},
	{ErrRateLimiterUnavailable, KindUnavailable},
	{ErrEngineNotReady, KindUnavailable},
	{ErrLoginRateLimited, KindRateLimited},
	{ErrMFARateLimited, KindRateLimited},
	{ErrUnauthorized, KindAuthenticationFailure},
	{ErrInvalidCredentials, KindAuthenticationFailure},
	{ErrMFACodeInvalid, KindAuthenticationFailure},
	{ErrTokenInvalid, KindAuthenticationFailure},
	{ErrSessionNotFound, KindExpiredArtifact},
	{ErrMFASetupExpired, KindExpiredArtifact},
	{ErrTokenRevoked, KindExpiredArtifact},
	{ErrPasswordReuse, KindPolicyViolation},
	{ErrPasswordTooWeak, KindPolicyViolation},
	{ErrMFARequired, KindPolicyViolation},
	{ErrMFANotEnrolled, KindPolicyViolation},
	{ErrMFAAlreadyEnrolled, KindPolicyViolation},
	{ErrPermissionDenied, KindPolicyViolation},
	{ErrReauthenticationRequired, KindPolicyViolation},
	{ErrAccountExists, KindPolicyViolation},
	{ErrAccountInvalid, KindPolicyViolation},
	{ErrTokensDisabled, KindPolicyViolation},
	{ErrAccountRoleInvalid, KindPolicyViolation},
	{ErrAccountNotFound, KindNotFound},
}

// ErrorKind classifies err. Unavailability wins over every other kind so a
// wrapped datastore failure is never reported as a credential problem.
func ErrorKind(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return KindUnknown
}
