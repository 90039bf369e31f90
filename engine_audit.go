package onboardAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/onboardAuth/internal"
	internalaudit "github.com/MrEthical07/onboardAuth/internal/audit"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginRateLimited      = "login_rate_limited"
	auditEventPasswordExpired       = "login_password_expired"
	auditEventMFASetupRequired      = "login_mfa_setup_required"
	auditEventLogout                = "logout"
	auditEventTokenIssued           = "token_issued"
	auditEventTokenRevoked          = "token_revoked"
	auditEventAccountCreated        = "account_created"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventPolicyUpdated         = "security_policy_updated"

	// MFA trail; persisted with the prefix stripped.
	auditEventMFASetupStarted   = "mfa_setup_started"
	auditEventMFASetupRestarted = "mfa_setup_restarted"
	auditEventMFAVerifySuccess  = "mfa_verify_success"
	auditEventMFAVerifyFailure  = "mfa_verify_failure"
	auditEventMFABackupCodeUsed = "mfa_backup_code_used"
	auditEventMFABackupCodesNew = "mfa_backup_codes_regenerated"
	auditEventMFADisabled       = "mfa_disabled"
	auditEventMFAReset          = "mfa_reset"
)

// AuditErrorCode is the short, non-sensitive error label written to audit events.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrSetupExpired       AuditErrorCode = "setup_expired"
	auditErrAccountNotFound    AuditErrorCode = "account_not_found"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrMFAInvalid         AuditErrorCode = "mfa_invalid"
	auditErrMFARequired        AuditErrorCode = "mfa_required"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := internalaudit.Event{
		Timestamp:     e.now().UTC(),
		EventType:     eventType,
		AccountID:     accountID,
		SessionID:     sessionID,
		IP:            clientIPFromContext(ctx),
		UserAgentHash: internal.HashUserAgent(userAgentFromContext(ctx)),
		Success:       success,
		Metadata:      metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrRateLimiterUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrMFARateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenRevoked):
		return auditErrInvalidToken
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrMFASetupExpired):
		return auditErrSetupExpired
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrPasswordTooWeak):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrMFACodeInvalid):
		return auditErrMFAInvalid
	case errors.Is(err, ErrMFARequired),
		errors.Is(err, ErrMFANotEnrolled):
		return auditErrMFARequired
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	default:
		return auditErrInternal
	}
}
