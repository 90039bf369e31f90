package flows

import (
	"context"
	"time"
)

// PasswordChangeMetrics carries metric IDs needed by the password change flow.
type PasswordChangeMetrics struct {
	Success  int
	Rejected int
}

// PasswordChangeEvents carries audit event names used by the password change flow.
type PasswordChangeEvents struct {
	Success string
	Failure string
}

// PasswordChangeErrors carries host-level sentinel errors.
type PasswordChangeErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	TooWeak            error
	Reuse              error
	Unavailable        func(error) error
}

// PasswordChangeDeps captures password change dependencies.
type PasswordChangeDeps struct {
	HistorySize int

	Now func() time.Time

	VerifyPassword  func(string, string) (bool, error)
	CheckStrength   func(string) error
	HashPassword    func(string) (string, error)
	PasswordHistory func(context.Context, string, int) ([]string, error)
	MatchesAny      func(string, []string) bool
	SavePassword    func(context.Context, string, string, time.Time) error
	ForgetDevices   func(context.Context, string) error

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)
	Warn      func(string, ...any)

	Metrics PasswordChangeMetrics
	Events  PasswordChangeEvents
	Errors  PasswordChangeErrors
}

// RunChangePassword verifies current against the account, applies the
// strength and reuse rules to next, and stores the new hash with the old one
// moved into history.
func RunChangePassword(ctx context.Context, acct *LoginAccount, current, next string, deps PasswordChangeDeps) error {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.Errors.Unavailable == nil {
		deps.Errors.Unavailable = func(err error) error { return err }
	}
	if acct == nil ||
		deps.VerifyPassword == nil ||
		deps.CheckStrength == nil ||
		deps.HashPassword == nil ||
		deps.SavePassword == nil {
		return deps.Errors.EngineNotReady
	}

	reject := func(err error, reason string) error {
		deps.MetricInc(deps.Metrics.Rejected)
		deps.EmitAudit(ctx, deps.Events.Failure, false, acct.ID, "", err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return err
	}

	ok, err := deps.VerifyPassword(current, acct.PasswordHash)
	if err != nil || !ok {
		return reject(deps.Errors.InvalidCredentials, "current_password")
	}

	if err := deps.CheckStrength(next); err != nil {
		return reject(deps.Errors.TooWeak, "strength")
	}

	if same, err := deps.VerifyPassword(next, acct.PasswordHash); err == nil && same {
		return reject(deps.Errors.Reuse, "current")
	}
	if deps.PasswordHistory != nil && deps.MatchesAny != nil && deps.HistorySize > 0 {
		history, err := deps.PasswordHistory(ctx, acct.ID, deps.HistorySize)
		if err != nil {
			return deps.Errors.Unavailable(err)
		}
		if deps.MatchesAny(next, history) {
			return reject(deps.Errors.Reuse, "history")
		}
	}

	hash, err := deps.HashPassword(next)
	if err != nil {
		return reject(deps.Errors.TooWeak, "hash")
	}
	if err := deps.SavePassword(ctx, acct.ID, hash, deps.Now()); err != nil {
		return deps.Errors.Unavailable(err)
	}

	if deps.ForgetDevices != nil {
		if err := deps.ForgetDevices(ctx, acct.ID); err != nil {
			deps.Warn("forget trusted devices failed", "account_id", acct.ID, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, acct.ID, "", nil, nil)
	return nil
}
