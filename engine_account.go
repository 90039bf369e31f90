package onboardAuth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	internalflows "github.com/MrEthical07/onboardAuth/internal/flows"
	"github.com/MrEthical07/onboardAuth/internal/store"
	"github.com/MrEthical07/onboardAuth/password"
)

// CreateAccount registers a new employee account. The initial password
// counts as changed now, so it expires on the normal schedule.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	if e == nil || e.store == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}

	email := store.NormalizeEmail(req.Email)
	if email == "" || !validEmail(email) {
		e.emitAudit(ctx, auditEventAccountCreated, false, "", "", ErrAccountInvalid, func() map[string]string {
			return map[string]string{"reason": "email"}
		})
		return nil, ErrAccountInvalid
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		e.emitAudit(ctx, auditEventAccountCreated, false, "", "", ErrAccountInvalid, func() map[string]string {
			return map[string]string{"reason": "name"}
		})
		return nil, ErrAccountInvalid
	}
	if !validRole(req.Role) {
		e.emitAudit(ctx, auditEventAccountCreated, false, "", "", ErrAccountRoleInvalid, func() map[string]string {
			return map[string]string{"reason": "role"}
		})
		return nil, ErrAccountRoleInvalid
	}
	if err := password.CheckStrength(req.Password, e.config.Password.Denylist); err != nil {
		e.emitAudit(ctx, auditEventAccountCreated, false, "", "", ErrPasswordTooWeak, func() map[string]string {
			return map[string]string{"reason": "password"}
		})
		return nil, ErrPasswordTooWeak
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, ErrPasswordTooWeak
	}

	now := store.Millis(e.now())
	acct := &store.Account{
		Email:             email,
		PasswordHash:      hash,
		Role:              req.Role,
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		Department:        strings.TrimSpace(req.Department),
		JobTitle:          strings.TrimSpace(req.JobTitle),
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if !req.StartDate.IsZero() {
		acct.StartDate = store.Millis(req.StartDate)
	}

	if err := e.store.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			e.emitAudit(ctx, auditEventAccountCreated, false, "", "", ErrAccountExists, nil)
			return nil, ErrAccountExists
		}
		return nil, e.storeErr(err, nil)
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, acct.ID, "", nil, func() map[string]string {
		return map[string]string{"role": acct.Role}
	})
	return publicAccount(acct), nil
}

// GetAccount returns the public profile of an account.
func (e *Engine) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	acct, err := e.store.AccountByID(ctx, accountID)
	if err != nil {
		return nil, e.storeErr(err, ErrAccountNotFound)
	}
	return publicAccount(acct), nil
}

// ChangePassword replaces the password of a signed-in account. The new
// password must pass the strength rules and must not match the current one
// or any of the recent history. Existing sessions stay valid; trusted devices
// are forgotten.
func (e *Engine) ChangePassword(ctx context.Context, accountID, current, next string) error {
	if e == nil || e.store == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}
	acct, err := e.store.AccountByID(ctx, accountID)
	if err != nil {
		return e.storeErr(err, ErrAccountNotFound)
	}
	return internalflows.RunChangePassword(ctx, toLoginAccount(acct), current, next, e.passwordChangeFlowDeps())
}

// ChangeExpiredPassword is the pre-login path taken after a
// LoginPasswordChangeRequired outcome. The caller proves possession of the
// expired password; no session is created.
func (e *Engine) ChangeExpiredPassword(ctx context.Context, email, current, next string) error {
	if e == nil || e.store == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}
	acct, err := e.verifyCredentials(ctx, email, current)
	if err != nil {
		return err
	}
	return internalflows.RunChangePassword(ctx, toLoginAccount(acct), current, next, e.passwordChangeFlowDeps())
}

// verifyCredentials checks an email and password outside the login flow with
// the same uniform failure and the same limiter.
func (e *Engine) verifyCredentials(ctx context.Context, email, plaintext string) (*store.Account, error) {
	email = store.NormalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if e.loginLimiter != nil {
		if err := e.limiterErr(e.loginLimiter.CheckLogin(ctx, email, ip), ErrLoginRateLimited); err != nil {
			if errors.Is(err, ErrLoginRateLimited) {
				e.metricInc(MetricLoginRateLimited)
			}
			return nil, err
		}
	}

	fail := func() (*store.Account, error) {
		if e.loginLimiter != nil {
			if err := e.loginLimiter.IncrementLogin(ctx, email, ip); err != nil {
				e.warn("login limiter increment failed", "error", err)
			}
		}
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	acct, err := e.store.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_, _ = e.passwordHash.Verify(plaintext, e.dummyHash)
			return fail()
		}
		return nil, e.storeErr(err, nil)
	}
	ok, err := e.passwordHash.Verify(plaintext, acct.PasswordHash)
	if err != nil || !ok {
		return fail()
	}
	return acct, nil
}

func (e *Engine) passwordChangeFlowDeps() internalflows.PasswordChangeDeps {
	cfg := e.config.Password
	return internalflows.PasswordChangeDeps{
		HistorySize:    cfg.HistorySize,
		Now:            e.now,
		VerifyPassword: e.passwordHash.Verify,
		CheckStrength: func(plaintext string) error {
			return password.CheckStrength(plaintext, cfg.Denylist)
		},
		HashPassword:    e.passwordHash.Hash,
		PasswordHistory: e.store.PasswordHistory,
		MatchesAny:      e.passwordHash.MatchesAny,
		SavePassword: func(ctx context.Context, accountID, hash string, at time.Time) error {
			return e.store.ChangePassword(ctx, accountID, hash, at, cfg.HistorySize)
		},
		ForgetDevices: e.ForgetDevices,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Warn:      e.warn,
		Metrics: internalflows.PasswordChangeMetrics{
			Success:  int(MetricPasswordChangeSuccess),
			Rejected: int(MetricPasswordChangeRejected),
		},
		Events: internalflows.PasswordChangeEvents{
			Success: auditEventPasswordChangeSuccess,
			Failure: auditEventPasswordChangeFailure,
		},
		Errors: internalflows.PasswordChangeErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			TooWeak:            ErrPasswordTooWeak,
			Reuse:              ErrPasswordReuse,
			Unavailable: func(err error) error {
				return e.storeErr(err, ErrAccountNotFound)
			},
		},
	}
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
