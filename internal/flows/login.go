package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/onboardAuth/session"
)

// Login statuses. They mirror the host's public status values.
const (
	LoginStatusSuccess                = "success"
	LoginStatusPasswordChangeRequired = "password_change_required"
	LoginStatusMFASetupRequired       = "mfa_setup_required"
	LoginStatusMFACodeRequired        = "mfa_code_required"
)

// LoginInput is the flow-local login request.
type LoginInput struct {
	Email          string
	Password       string
	MFACode        string
	RememberDevice bool
	SessionID      string
}

// LoginAccount is a flow-local account model.
type LoginAccount struct {
	ID                string
	Email             string
	Role              string
	PasswordHash      string
	PasswordChangedAt time.Time
	CreatedAt         time.Time
	MFAEnabled        bool
	MFASetupCompleted bool
	HasSecret         bool
}

// Enrolled reports whether the account can answer an MFA challenge.
func (a LoginAccount) Enrolled() bool {
	return a.MFASetupCompleted && a.MFAEnabled && a.HasSecret
}

// LoginPolicy is the policy evaluated for one account at one instant.
type LoginPolicy struct {
	PasswordExpired   bool
	RequiresMFA       bool
	InGracePeriod     bool
	RememberDeviceTTL time.Duration
}

// LoginOutcome is the flow-local login response.
type LoginOutcome struct {
	Status          string
	Account         *LoginAccount
	Session         *session.Session
	Token           string
	TokenExpires    time.Time
	MFASetupPending bool
	DeviceTrusted   bool
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess           int
	LoginFailure           int
	LoginRateLimited       int
	PasswordChangeRequired int
	MFASetupRequired       int
	MFACodeRequired        int
	MFASetupPending        int
	MFALoginSuccess        int
	MFALoginFailure        int
	TrustedDeviceSkip      int
	TrustedDeviceAdded     int
	SessionCreated         int
	SessionRegenerated     int
	TokenIssued            int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
	PasswordExpired  string
	MFASetupRequired string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	LoginRateLimited   error
	MFACodeInvalid     error
	AccountNotFound    error
	Unavailable        func(error) error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	FullSessionTTL time.Duration
	PreSessionTTL  time.Duration

	ClientIPFromContext  func(context.Context) string
	UserAgentFromContext func(context.Context) string
	Now                  func() time.Time

	CheckLoginRate     func(context.Context, string, string) error
	IncrementLoginRate func(context.Context, string, string) error
	ResetLoginRate     func(context.Context, string) error

	GetAccountByEmail func(context.Context, string) (*LoginAccount, error)
	VerifyPassword    func(string, string) (bool, error)
	DummyVerify       func(string)
	PolicyFor         func(context.Context, *LoginAccount) (LoginPolicy, error)

	DeviceFingerprint func(context.Context) string
	IsDeviceTrusted   func(context.Context, string, string) (bool, error)
	TrustDevice       func(context.Context, string, string, time.Duration) error
	VerifyMFACode     func(context.Context, *LoginAccount, string) (bool, error)

	RegenerateSession func(context.Context, string, string, map[string]string, time.Duration) (*session.Session, error)
	IssueToken        func(context.Context, *LoginAccount, string) (string, time.Time, error)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin executes the login state machine: credentials, password expiry,
// MFA policy, trusted device, MFA code, session.
func RunLogin(ctx context.Context, in LoginInput, deps LoginDeps) (*LoginOutcome, error) {
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
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.UserAgentFromContext == nil {
		deps.UserAgentFromContext = func(context.Context) string { return "" }
	}
	if deps.Errors.Unavailable == nil {
		deps.Errors.Unavailable = func(err error) error { return err }
	}
	if deps.GetAccountByEmail == nil ||
		deps.VerifyPassword == nil ||
		deps.DummyVerify == nil ||
		deps.PolicyFor == nil ||
		deps.RegenerateSession == nil ||
		deps.VerifyMFACode == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, email, ip); err != nil {
			if !errors.Is(err, deps.Errors.LoginRateLimited) {
				return nil, err
			}
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", "", err, func() map[string]string {
				return map[string]string{"email": email}
			})
			return nil, err
		}
	}

	fail := func(accountID string) (*LoginOutcome, error) {
		if deps.IncrementLoginRate != nil {
			if err := deps.IncrementLoginRate(ctx, email, ip); err != nil {
				deps.Warn("login limiter increment failed", "error", err)
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, accountID, "", deps.Errors.InvalidCredentials, nil)
		return nil, deps.Errors.InvalidCredentials
	}

	// 1. Credentials. Unknown emails still pay for one hash verification.
	acct, err := deps.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, deps.Errors.AccountNotFound) {
			deps.DummyVerify(in.Password)
			return fail("")
		}
		return nil, deps.Errors.Unavailable(err)
	}
	ok, err := deps.VerifyPassword(in.Password, acct.PasswordHash)
	if err != nil || !ok {
		return fail(acct.ID)
	}

	policy, err := deps.PolicyFor(ctx, acct)
	if err != nil {
		return nil, deps.Errors.Unavailable(err)
	}

	// 2. Password expiry comes before any MFA decision.
	if policy.PasswordExpired {
		deps.MetricInc(deps.Metrics.PasswordChangeRequired)
		deps.EmitAudit(ctx, deps.Events.PasswordExpired, false, acct.ID, "", nil, nil)
		return &LoginOutcome{Status: LoginStatusPasswordChangeRequired, Account: acct}, nil
	}

	out := &LoginOutcome{Account: acct}
	mfaVerified := false

	if policy.RequiresMFA {
		switch {
		case !acct.Enrolled() && policy.InGracePeriod:
			// 3a. Enrollment may still be postponed.
			out.MFASetupPending = true
			deps.MetricInc(deps.Metrics.MFASetupPending)

		case !acct.Enrolled():
			// 3. Pre-session for the enrollment flow.
			pre, err := deps.RegenerateSession(ctx, in.SessionID, acct.ID, sessionAttrs(ctx, deps, acct, session.StageMFASetup), deps.PreSessionTTL)
			if err != nil {
				return nil, deps.Errors.Unavailable(err)
			}
			deps.MetricInc(deps.Metrics.MFASetupRequired)
			deps.EmitAudit(ctx, deps.Events.MFASetupRequired, true, acct.ID, pre.ID, nil, nil)
			resetLoginRate(ctx, deps, email)
			out.Status = LoginStatusMFASetupRequired
			out.Session = pre
			return out, nil

		default:
			// 4. Enrolled: trusted device, then code.
			fingerprint := ""
			if deps.DeviceFingerprint != nil {
				fingerprint = deps.DeviceFingerprint(ctx)
			}
			trusted := false
			if deps.IsDeviceTrusted != nil && fingerprint != "" {
				trusted, err = deps.IsDeviceTrusted(ctx, acct.ID, fingerprint)
				if err != nil {
					return nil, deps.Errors.Unavailable(err)
				}
			}

			if trusted {
				out.DeviceTrusted = true
				deps.MetricInc(deps.Metrics.TrustedDeviceSkip)
				break
			}

			code := strings.TrimSpace(in.MFACode)
			if code == "" {
				deps.MetricInc(deps.Metrics.MFACodeRequired)
				out.Status = LoginStatusMFACodeRequired
				return out, nil
			}

			ok, err := deps.VerifyMFACode(ctx, acct, code)
			if err != nil {
				deps.MetricInc(deps.Metrics.MFALoginFailure)
				return nil, err
			}
			if !ok {
				deps.MetricInc(deps.Metrics.MFALoginFailure)
				return nil, deps.Errors.MFACodeInvalid
			}
			deps.MetricInc(deps.Metrics.MFALoginSuccess)
			mfaVerified = true

			// 5. Remember this device.
			if in.RememberDevice && policy.RememberDeviceTTL > 0 && deps.TrustDevice != nil && fingerprint != "" {
				if err := deps.TrustDevice(ctx, acct.ID, fingerprint, policy.RememberDeviceTTL); err != nil {
					deps.Warn("trust device failed", "account_id", acct.ID, "error", err)
				} else {
					deps.MetricInc(deps.Metrics.TrustedDeviceAdded)
				}
			}
		}
	}

	// 6. Full session, rotating any identifier the client already held.
	full, err := deps.RegenerateSession(ctx, in.SessionID, acct.ID, sessionAttrs(ctx, deps, acct, session.StageFull), deps.FullSessionTTL)
	if err != nil {
		return nil, deps.Errors.Unavailable(err)
	}
	if in.SessionID != "" {
		deps.MetricInc(deps.Metrics.SessionRegenerated)
	}
	deps.MetricInc(deps.Metrics.SessionCreated)

	if deps.IssueToken != nil {
		token, exp, err := deps.IssueToken(ctx, acct, full.ID)
		if err != nil {
			deps.Warn("fallback token issue failed", "account_id", acct.ID, "error", err)
		} else {
			out.Token = token
			out.TokenExpires = exp
			deps.MetricInc(deps.Metrics.TokenIssued)
		}
	}

	resetLoginRate(ctx, deps, email)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, acct.ID, full.ID, nil, func() map[string]string {
		md := map[string]string{"role": acct.Role}
		if mfaVerified {
			md["mfa"] = "verified"
		}
		if out.DeviceTrusted {
			md["mfa"] = "trusted_device"
		}
		if out.MFASetupPending {
			md["mfa"] = "grace_period"
		}
		return md
	})

	out.Status = LoginStatusSuccess
	out.Session = full
	return out, nil
}

func sessionAttrs(ctx context.Context, deps LoginDeps, acct *LoginAccount, stage string) map[string]string {
	attrs := map[string]string{
		session.AttrLoginTime: deps.Now().UTC().Format(time.RFC3339),
		session.AttrAuthStage: stage,
		session.AttrRole:      acct.Role,
	}
	if deps.DeviceFingerprint != nil {
		if sig := deps.DeviceFingerprint(ctx); sig != "" {
			attrs[session.AttrClientSignature] = sig
		}
	}
	return attrs
}

func resetLoginRate(ctx context.Context, deps LoginDeps, email string) {
	if deps.ResetLoginRate == nil {
		return
	}
	if err := deps.ResetLoginRate(ctx, email); err != nil {
		deps.Warn("login limiter reset failed", "error", err)
	}
}
