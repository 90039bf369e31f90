package onboardAuth

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/MrEthical07/onboardAuth/internal"
	internalflows "github.com/MrEthical07/onboardAuth/internal/flows"
	"github.com/MrEthical07/onboardAuth/internal/rate"
	"github.com/MrEthical07/onboardAuth/internal/store"
	"github.com/MrEthical07/onboardAuth/session"
)

/*
====================================
ENROLLMENT
====================================
*/

// StartMFASetup generates a provisional TOTP secret for the account and
// stores it in a setup session. Any earlier setup session of the account is
// discarded in the same transaction, so only the newest secret can be
// confirmed. An enrolled account gets [ErrMFAAlreadyEnrolled] until its
// enrollment is reset or disabled.
func (e *Engine) StartMFASetup(ctx context.Context, accountID string) (*MFASetup, error) {
	if e == nil || e.store == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	acct, err := e.store.AccountByID(ctx, accountID)
	if err != nil {
		return nil, e.storeErr(err, ErrAccountNotFound)
	}
	return e.startSetup(ctx, acct, auditEventMFASetupStarted)
}

// RestartMFASetup is StartMFASetup for a caller who lost the provisioning
// screen. The account comes from req.SessionID (full or pre-session) or,
// before login, from req.Email and req.Password.
func (e *Engine) RestartMFASetup(ctx context.Context, req RestartRequest) (*MFASetup, error) {
	if e == nil || e.store == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}

	var acct *store.Account
	if req.SessionID != "" {
		sess, err := e.sessions.Load(ctx, req.SessionID)
		switch {
		case err == nil && sess.AccountID != "":
			acct, err = e.store.AccountByID(ctx, sess.AccountID)
			if err != nil {
				return nil, e.storeErr(err, ErrReauthenticationRequired)
			}
		case err != nil && !errors.Is(err, session.ErrNotFound):
			return nil, e.storeErr(err, nil)
		}
	}

	if acct == nil {
		if req.Email == "" || req.Password == "" {
			return nil, ErrReauthenticationRequired
		}
		var err error
		acct, err = e.verifyCredentials(ctx, req.Email, req.Password)
		if err != nil {
			return nil, err
		}
	}

	return e.startSetup(ctx, acct, auditEventMFASetupRestarted)
}

func (e *Engine) startSetup(ctx context.Context, acct *store.Account, event string) (*MFASetup, error) {
	if enrolled(acct) {
		e.emitAudit(ctx, event, false, acct.ID, "", ErrMFAAlreadyEnrolled, nil)
		return nil, ErrMFAAlreadyEnrolled
	}
	secret, uri, err := e.totp.Generate(acct.Email)
	if err != nil {
		return nil, err
	}

	now := e.now()
	ss := store.SetupSession{
		ID:        uuid.NewString(),
		AccountID: acct.ID,
		Secret:    secret,
		ExpiresAt: store.Millis(now.Add(e.config.TOTP.SetupTTL)),
		CreatedAt: store.Millis(now),
	}
	if err := e.store.ReplaceSetupSession(ctx, ss); err != nil {
		return nil, e.storeErr(err, nil)
	}

	e.metricInc(MetricMFASetupStarted)
	e.emitAudit(ctx, event, true, acct.ID, "", nil, nil)

	return &MFASetup{
		SetupSessionID:  ss.ID,
		Secret:          secret,
		ProvisioningURI: uri,
		ExpiresAt:       store.Time(ss.ExpiresAt),
	}, nil
}

// VerifyMFASetup confirms enrollment with the first code from the
// authenticator app. On success the secret and a fresh set of backup codes
// are stored, both enrollment flags are raised and the setup session is
// consumed. The plaintext backup codes are returned once and never again.
//
// accountID is the caller's account. A setup session owned by another
// account is reported as [ErrMFASetupExpired]. When sessionID names the
// account's pre-session it is regenerated into a full session.
func (e *Engine) VerifyMFASetup(ctx context.Context, accountID, setupSessionID, code, sessionID string) (*MFASetupResult, error) {
	if e == nil || e.store == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}

	now := e.now()
	ss, err := e.store.SetupSessionByID(ctx, setupSessionID, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.metricInc(MetricMFASetupExpired)
		}
		return nil, e.storeErr(err, ErrMFASetupExpired)
	}
	if accountID == "" || ss.AccountID != accountID {
		return nil, ErrMFASetupExpired
	}

	acct, err := e.store.AccountByID(ctx, ss.AccountID)
	if err != nil {
		return nil, e.storeErr(err, ErrMFASetupExpired)
	}
	if enrolled(acct) {
		return nil, ErrMFAAlreadyEnrolled
	}

	if err := e.checkMFALimit(ctx, ss.AccountID); err != nil {
		return nil, err
	}

	ok, step, err := e.totp.VerifyCode(ss.Secret, code, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.recordMFAFailure(ctx, ss.AccountID)
		e.emitAudit(ctx, auditEventMFAVerifyFailure, false, ss.AccountID, "", ErrMFACodeInvalid, func() map[string]string {
			return map[string]string{"stage": "setup"}
		})
		return nil, ErrMFACodeInvalid
	}

	codes, hashes, err := internalflows.GenerateBackupCodes(ss.AccountID, e.config.TOTP.BackupCodeCount, internal.NewBackupCode)
	if err != nil {
		return nil, err
	}
	err = e.store.CompleteMFASetup(ctx, store.CompleteSetup{
		AccountID:  ss.AccountID,
		SetupID:    ss.ID,
		Secret:     ss.Secret,
		CodeHashes: hashes,
		LastStep:   step,
		Now:        now,
	})
	if err != nil {
		return nil, e.storeErr(err, ErrMFASetupExpired)
	}

	e.resetMFALimit(ctx, ss.AccountID)
	e.metricInc(MetricMFASetupCompleted)
	e.emitAudit(ctx, auditEventMFAVerifySuccess, true, ss.AccountID, "", nil, func() map[string]string {
		return map[string]string{"stage": "setup"}
	})

	res := &MFASetupResult{AccountID: ss.AccountID, BackupCodes: codes}
	if sessionID == "" {
		return res, nil
	}

	sess, err := e.sessions.Load(ctx, sessionID)
	if err != nil || sess.AccountID != ss.AccountID || sess.Stage() != stageSetup {
		return res, nil
	}
	full, err := e.sessions.Regenerate(ctx, sess.ID, acct.ID, e.sessionAttrs(ctx, acct.Role, stageFull), e.config.Session.TTL)
	if err != nil {
		e.warn("promote pre-session failed", "account_id", acct.ID, "error", err)
		return res, nil
	}
	e.metricInc(MetricSessionRegenerated)
	res.SessionID = full.ID
	res.SessionExpires = full.ExpiresAt
	return res, nil
}

/*
====================================
VERIFICATION
====================================
*/

// VerifyMFACode checks a TOTP code, then a backup code, for an enrolled
// account. A matching backup code is consumed.
func (e *Engine) VerifyMFACode(ctx context.Context, accountID, code string) (bool, error) {
	if e == nil || e.store == nil || e.totp == nil {
		return false, ErrEngineNotReady
	}
	acct, err := e.store.AccountByID(ctx, accountID)
	if err != nil {
		return false, e.storeErr(err, ErrAccountNotFound)
	}
	if !enrolled(acct) {
		return false, ErrMFANotEnrolled
	}
	return e.verifyMFALogin(ctx, acct, code)
}

func (e *Engine) verifyMFALogin(ctx context.Context, acct *store.Account, code string) (bool, error) {
	if acct == nil {
		return false, ErrMFANotEnrolled
	}
	if err := e.checkMFALimit(ctx, acct.ID); err != nil {
		return false, err
	}

	ok, err := e.acceptTOTP(ctx, acct.ID, acct.MFASecret, code)
	if err != nil {
		return false, err
	}
	if ok {
		e.resetMFALimit(ctx, acct.ID)
		e.emitAudit(ctx, auditEventMFAVerifySuccess, true, acct.ID, "", nil, func() map[string]string {
			return map[string]string{"method": "totp"}
		})
		return true, nil
	}

	canonical := internalflows.CanonicalizeBackupCode(code)
	if internalflows.LooksLikeBackupCode(canonical) {
		used, err := e.store.ConsumeBackupCode(ctx, acct.ID, internalflows.BackupCodeHash(acct.ID, canonical))
		if err != nil {
			return false, e.storeErr(err, nil)
		}
		if used {
			e.resetMFALimit(ctx, acct.ID)
			e.metricInc(MetricBackupCodeUsed)
			e.emitAudit(ctx, auditEventMFABackupCodeUsed, true, acct.ID, "", nil, func() map[string]string {
				md := map[string]string{"method": "backup_code"}
				if n, err := e.store.BackupCodeCount(ctx, acct.ID); err == nil {
					md["remaining"] = strconv.Itoa(n)
				}
				return md
			})
			return true, nil
		}
	}

	e.recordMFAFailure(ctx, acct.ID)
	e.emitAudit(ctx, auditEventMFAVerifyFailure, false, acct.ID, "", ErrMFACodeInvalid, func() map[string]string {
		return map[string]string{"stage": "login"}
	})
	return false, nil
}

// verifyTOTPOnly accepts authenticator codes only. Backup codes cannot
// authorize changes to the MFA configuration.
func (e *Engine) verifyTOTPOnly(ctx context.Context, accountID, secret, code string) (bool, error) {
	if err := e.checkMFALimit(ctx, accountID); err != nil {
		return false, err
	}
	ok, err := e.acceptTOTP(ctx, accountID, secret, code)
	if err != nil {
		return false, err
	}
	if !ok {
		e.recordMFAFailure(ctx, accountID)
		e.emitAudit(ctx, auditEventMFAVerifyFailure, false, accountID, "", ErrMFACodeInvalid, func() map[string]string {
			return map[string]string{"stage": "step_up"}
		})
		return false, nil
	}
	e.resetMFALimit(ctx, accountID)
	return true, nil
}

// acceptTOTP verifies an authenticator code. With replay protection the
// matched time step must be newer than the last one the account used, and
// it becomes the new last step.
func (e *Engine) acceptTOTP(ctx context.Context, accountID, secret, code string) (bool, error) {
	ok, step, err := e.totp.VerifyCode(secret, code, e.now())
	if err != nil || !ok {
		return false, err
	}
	if !e.config.TOTP.EnforceReplayProtection {
		return true, nil
	}
	claimed, err := e.store.ClaimTOTPStep(ctx, accountID, step)
	if err != nil {
		return false, e.storeErr(err, nil)
	}
	if !claimed {
		e.warn("totp code replayed", "account_id", accountID)
	}
	return claimed, nil
}

/*
====================================
RESET / DISABLE
====================================
*/

// ResetMFA is the administrator reset: flags, secret, backup codes, setup
// sessions and trusted devices of the account are cleared. The account
// enrolls again on its next login if policy requires MFA.
func (e *Engine) ResetMFA(ctx context.Context, accountID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	found, err := e.store.ResetMFA(ctx, accountID, e.now())
	if err != nil {
		return e.storeErr(err, nil)
	}
	if !found {
		return ErrAccountNotFound
	}
	e.resetMFALimit(ctx, accountID)
	e.metricInc(MetricMFAReset)
	e.emitAudit(ctx, auditEventMFAReset, true, accountID, "", nil, nil)
	return nil
}

// DisableMFA lets an account turn MFA off with a current TOTP code. It is
// refused while policy requires MFA for the account's role.
func (e *Engine) DisableMFA(ctx context.Context, accountID, code string) error {
	if e == nil || e.store == nil || e.totp == nil {
		return ErrEngineNotReady
	}
	acct, err := e.store.AccountByID(ctx, accountID)
	if err != nil {
		return e.storeErr(err, ErrAccountNotFound)
	}
	if !enrolled(acct) {
		return ErrMFANotEnrolled
	}

	policy, err := e.Policy(ctx)
	if err != nil {
		return err
	}
	if policy.RequiresMFA(acct.Role) {
		e.emitAudit(ctx, auditEventMFADisabled, false, acct.ID, "", ErrMFARequired, nil)
		return ErrMFARequired
	}

	ok, err := e.verifyTOTPOnly(ctx, acct.ID, acct.MFASecret, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMFACodeInvalid
	}

	if _, err := e.store.ResetMFA(ctx, acct.ID, e.now()); err != nil {
		return e.storeErr(err, nil)
	}
	e.emitAudit(ctx, auditEventMFADisabled, true, acct.ID, "", nil, nil)
	return nil
}

/*
====================================
LIMITER
====================================
*/

func (e *Engine) checkMFALimit(ctx context.Context, accountID string) error {
	if e.mfaLimiter == nil {
		return nil
	}
	err := e.limiterErr(e.mfaLimiter.Check(ctx, accountID), ErrMFARateLimited)
	if errors.Is(err, ErrMFARateLimited) {
		e.metricInc(MetricMFARateLimited)
	}
	return err
}

func (e *Engine) recordMFAFailure(ctx context.Context, accountID string) {
	if e.mfaLimiter == nil {
		return
	}
	if err := e.mfaLimiter.RecordFailure(ctx, accountID); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		e.warn("mfa limiter increment failed", "account_id", accountID, "error", err)
	}
}

func (e *Engine) resetMFALimit(ctx context.Context, accountID string) {
	if e.mfaLimiter == nil {
		return
	}
	if err := e.mfaLimiter.Reset(ctx, accountID); err != nil {
		e.warn("mfa limiter reset failed", "account_id", accountID, "error", err)
	}
}

func enrolled(a *store.Account) bool {
	return a != nil && a.MFASetupCompleted && a.MFAEnabled && strings.TrimSpace(a.MFASecret) != ""
}
