package onboardAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/onboardAuth/internal"
	internalflows "github.com/MrEthical07/onboardAuth/internal/flows"
	"github.com/MrEthical07/onboardAuth/internal/store"
	"github.com/MrEthical07/onboardAuth/password"
	"github.com/MrEthical07/onboardAuth/session"
)

// Login runs the login state machine for req.
//
// Credential failures always return [ErrInvalidCredentials], whether the email
// is unknown or the password is wrong. A wrong MFA code returns
// [ErrMFACodeInvalid]. Every other non-error outcome is reported through
// [LoginResult.Status]; only LoginSuccess carries a full session and
// LoginMFASetupRequired a pre-session.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	var current *store.Account
	out, err := internalflows.RunLogin(ctx, internalflows.LoginInput{
		Email:          req.Email,
		Password:       req.Password,
		MFACode:        req.MFACode,
		RememberDevice: req.RememberDevice,
		SessionID:      req.SessionID,
	}, e.loginFlowDeps(&current))
	if e.metrics != nil {
		e.metrics.Observe(MetricLoginLatency, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	res := &LoginResult{
		Status:          LoginStatus(out.Status),
		MFASetupPending: out.MFASetupPending,
		DeviceTrusted:   out.DeviceTrusted,
	}
	switch res.Status {
	case LoginSuccess:
		res.Account = publicAccount(current)
		res.SessionID = out.Session.ID
		res.SessionExpires = out.Session.ExpiresAt
		res.Token = out.Token
		res.TokenExpires = out.TokenExpires
	case LoginMFASetupRequired:
		res.SessionID = out.Session.ID
		res.SessionExpires = out.Session.ExpiresAt
		res.SetupToken = out.Session.ID
	}
	return res, nil
}

func (e *Engine) loginFlowDeps(current **store.Account) internalflows.LoginDeps {
	deps := internalflows.LoginDeps{
		FullSessionTTL:       e.config.Session.TTL,
		PreSessionTTL:        e.config.Session.PreSessionTTL,
		ClientIPFromContext:  clientIPFromContext,
		UserAgentFromContext: userAgentFromContext,
		Now:                  e.now,

		GetAccountByEmail: func(ctx context.Context, email string) (*internalflows.LoginAccount, error) {
			a, err := e.store.AccountByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			*current = a
			return toLoginAccount(a), nil
		},
		VerifyPassword: e.passwordHash.Verify,
		DummyVerify: func(plaintext string) {
			_, _ = e.passwordHash.Verify(plaintext, e.dummyHash)
		},
		PolicyFor:         e.loginPolicy,
		DeviceFingerprint: deviceFingerprint,
		IsDeviceTrusted:   e.IsDeviceTrusted,
		TrustDevice:       e.TrustDevice,
		VerifyMFACode: func(ctx context.Context, _ *internalflows.LoginAccount, code string) (bool, error) {
			return e.verifyMFALogin(ctx, *current, code)
		},
		RegenerateSession: e.sessions.Regenerate,

		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Warn:      e.warn,
		Metrics: internalflows.LoginMetrics{
			LoginSuccess:           int(MetricLoginSuccess),
			LoginFailure:           int(MetricLoginFailure),
			LoginRateLimited:       int(MetricLoginRateLimited),
			PasswordChangeRequired: int(MetricPasswordChangeRequired),
			MFASetupRequired:       int(MetricMFASetupRequired),
			MFACodeRequired:        int(MetricMFACodeRequired),
			MFASetupPending:        int(MetricMFASetupPending),
			MFALoginSuccess:        int(MetricMFALoginSuccess),
			MFALoginFailure:        int(MetricMFALoginFailure),
			TrustedDeviceSkip:      int(MetricTrustedDeviceSkip),
			TrustedDeviceAdded:     int(MetricTrustedDeviceAdded),
			SessionCreated:         int(MetricSessionCreated),
			SessionRegenerated:     int(MetricSessionRegenerated),
			TokenIssued:            int(MetricTokenIssued),
		},
		Events: internalflows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
			PasswordExpired:  auditEventPasswordExpired,
			MFASetupRequired: auditEventMFASetupRequired,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			LoginRateLimited:   ErrLoginRateLimited,
			MFACodeInvalid:     ErrMFACodeInvalid,
			AccountNotFound:    store.ErrNotFound,
			Unavailable: func(err error) error {
				return e.storeErr(err, nil)
			},
		},
	}

	if e.loginLimiter != nil {
		deps.CheckLoginRate = func(ctx context.Context, email, ip string) error {
			return e.limiterErr(e.loginLimiter.CheckLogin(ctx, email, ip), ErrLoginRateLimited)
		}
		deps.IncrementLoginRate = e.loginLimiter.IncrementLogin
		deps.ResetLoginRate = e.loginLimiter.ResetLogin
	}
	if e.jwtManager != nil {
		deps.IssueToken = func(ctx context.Context, a *internalflows.LoginAccount, sid string) (string, time.Time, error) {
			return e.jwtManager.CreateAccess(a.ID, sid, a.Role)
		}
	}

	return deps
}

func (e *Engine) loginPolicy(ctx context.Context, a *internalflows.LoginAccount) (internalflows.LoginPolicy, error) {
	p, err := e.policy.Get(ctx)
	if err != nil {
		return internalflows.LoginPolicy{}, err
	}
	now := e.now()
	return internalflows.LoginPolicy{
		PasswordExpired:   password.IsExpired(a.PasswordChangedAt, now, p.PasswordExpiryDays),
		RequiresMFA:       p.RequiresMFA(a.Role),
		InGracePeriod:     p.InGracePeriod(a.CreatedAt, now),
		RememberDeviceTTL: time.Duration(p.RememberDeviceDays) * 24 * time.Hour,
	}, nil
}

func toLoginAccount(a *store.Account) *internalflows.LoginAccount {
	return &internalflows.LoginAccount{
		ID:                a.ID,
		Email:             a.Email,
		Role:              a.Role,
		PasswordHash:      a.PasswordHash,
		PasswordChangedAt: store.Time(a.PasswordChangedAt),
		CreatedAt:         store.Time(a.CreatedAt),
		MFAEnabled:        a.MFAEnabled,
		MFASetupCompleted: a.MFASetupCompleted,
		HasSecret:         a.MFASecret != "",
	}
}

// deviceFingerprint is the client signature of the request: user agent and
// client IP. Requests carrying neither have no fingerprint.
func deviceFingerprint(ctx context.Context) string {
	ua := userAgentFromContext(ctx)
	ip := clientIPFromContext(ctx)
	if ua == "" && ip == "" {
		return ""
	}
	return internal.DeviceFingerprint(ua, ip)
}

// sessionAttrs builds the attribute bag of a session created outside the
// login flow.
func (e *Engine) sessionAttrs(ctx context.Context, role, stage string) map[string]string {
	attrs := map[string]string{
		session.AttrLoginTime: e.now().UTC().Format(time.RFC3339),
		session.AttrAuthStage: stage,
		session.AttrRole:      role,
	}
	if sig := deviceFingerprint(ctx); sig != "" {
		attrs[session.AttrClientSignature] = sig
	}
	return attrs
}
