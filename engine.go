package onboardAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/onboardAuth/internal/audit"
	"github.com/MrEthical07/onboardAuth/internal/rate"
	"github.com/MrEthical07/onboardAuth/internal/settings"
	"github.com/MrEthical07/onboardAuth/internal/store"
	"github.com/MrEthical07/onboardAuth/internal/sweep"
	"github.com/MrEthical07/onboardAuth/jwt"
	"github.com/MrEthical07/onboardAuth/password"
	"github.com/MrEthical07/onboardAuth/permission"
	"github.com/MrEthical07/onboardAuth/revocation"
	"github.com/MrEthical07/onboardAuth/session"
)

const (
	stageFull  = session.StageFull
	stageSetup = session.StageMFASetup
	stageToken = "token"
)

// Engine is the authentication and session-trust core. Build one with
// [Builder]; all methods are safe for concurrent use.
type Engine struct {
	config       Config
	logger       *zap.Logger
	store        *store.Store
	sessions     *session.Manager
	revocations  *revocation.Registry
	policy       *settings.Cache
	registry     *permission.Registry
	roleManager  *permission.RoleManager
	loginLimiter *rate.Limiter
	mfaLimiter   *rate.MFALimiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	dummyHash    string
	totp         *totpManager
	jwtManager   *jwt.Manager
	now          func() time.Time
}

// Close drains the audit dispatcher. The database and Redis clients belong
// to the caller and stay open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Sessions exposes the session manager for collaborators that keep their own
// attributes in the session bag, such as the CSRF guard.
func (e *Engine) Sessions() *session.Manager {
	if e == nil {
		return nil
	}
	return e.sessions
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(msg string, kv ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Sugar().Warnw(msg, kv...)
}

// storeErr maps a datastore error onto the engine taxonomy. Not-found rows
// become notFound; everything else is an availability failure.
func (e *Engine) storeErr(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && (errors.Is(err, store.ErrNotFound) || errors.Is(err, session.ErrNotFound)) {
		return notFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	e.metricInc(MetricStoreUnavailable)
	if e.logger != nil {
		e.logger.Error("datastore failure", zap.Error(err))
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (e *Engine) limiterErr(err error, limited error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return limited
	case errors.Is(err, rate.ErrRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrRateLimiterUnavailable, err)
	default:
		return err
	}
}

/*
====================================
POLICY
====================================
*/

// Policy returns the current organization security policy.
func (e *Engine) Policy(ctx context.Context) (SecurityPolicy, error) {
	if e == nil || e.policy == nil {
		return SecurityPolicy{}, ErrEngineNotReady
	}
	p, err := e.policy.Get(ctx)
	if err != nil {
		return SecurityPolicy{}, e.storeErr(err, nil)
	}
	return p, nil
}

// UpdatePolicy validates and stores p; the cached copy is invalidated.
func (e *Engine) UpdatePolicy(ctx context.Context, p SecurityPolicy) (SecurityPolicy, error) {
	if e == nil || e.policy == nil {
		return SecurityPolicy{}, ErrEngineNotReady
	}
	for _, r := range p.MFARequiredRoles {
		if !validRole(r) {
			return SecurityPolicy{}, ErrAccountRoleInvalid
		}
	}
	if err := p.Validate(); err != nil {
		return SecurityPolicy{}, fmt.Errorf("%w: %v", ErrAccountInvalid, err)
	}
	saved, err := e.policy.Update(ctx, p)
	if err != nil {
		return SecurityPolicy{}, e.storeErr(err, nil)
	}
	e.emitAudit(ctx, auditEventPolicyUpdated, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"mfa_enforced":         fmt.Sprint(saved.MFAEnforced),
			"password_expiry_days": fmt.Sprint(saved.PasswordExpiryDays),
		}
	})
	return saved, nil
}

// RequiresMFA reports whether role must use MFA under policy.
func RequiresMFA(role string, policy SecurityPolicy) bool {
	return policy.RequiresMFA(role)
}

/*
====================================
PERMISSIONS
====================================
*/

// HasPermission reports whether role grants perm.
func (e *Engine) HasPermission(role, perm string) bool {
	if e == nil || e.roleManager == nil || e.registry == nil {
		return false
	}
	mask, ok := e.roleManager.GetMask(role)
	if !ok {
		return false
	}
	bit, ok := e.registry.Bit(perm)
	if !ok {
		return false
	}
	return mask.Has(bit)
}

/*
====================================
SWEEPS
====================================
*/

// SweepTasks returns the periodic cleanup jobs for [sweep.Sweeper]. Expiry is
// enforced at read time, so the sweeps only bound table growth.
func (e *Engine) SweepTasks() []sweep.Task {
	cfg := e.config.Sweep
	tasks := []sweep.Task{
		{Name: "sessions", Interval: cfg.SessionInterval, Run: e.sessions.DeleteExpired},
		{Name: "revoked_tokens", Interval: cfg.RevocationInterval, Run: e.revocations.DeleteExpired},
		{Name: "mfa_setup_sessions", Interval: cfg.MFAInterval, Run: func(ctx context.Context) (int64, error) {
			return e.store.DeleteExpiredSetupSessions(ctx, e.now())
		}},
		{Name: "trusted_devices", Interval: cfg.MFAInterval, Run: func(ctx context.Context) (int64, error) {
			return e.store.DeleteExpiredDevices(ctx, e.now())
		}},
	}
	if cfg.AuditRetention > 0 {
		tasks = append(tasks, sweep.Task{Name: "mfa_audit", Interval: cfg.AuditInterval, Run: func(ctx context.Context) (int64, error) {
			return e.store.DeleteAuditBefore(ctx, e.now().Add(-cfg.AuditRetention))
		}})
	}
	return tasks
}
