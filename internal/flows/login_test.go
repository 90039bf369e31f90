package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/onboardAuth/session"
)

var (
	errNotReady  = errors.New("not ready")
	errBadCreds  = errors.New("bad creds")
	errLimited   = errors.New("limited")
	errBadCode   = errors.New("bad code")
	errNoAccount = errors.New("no account")
)

type fakeLoginBackend struct {
	accounts    map[string]*LoginAccount
	policy      LoginPolicy
	trusted     bool
	codeOK      bool
	dummyCalls  int
	regenerated []string
	trustedTTL  time.Duration
	increments  int
	resets      int
}

func (f *fakeLoginBackend) deps() LoginDeps {
	return LoginDeps{
		FullSessionTTL: 8 * time.Hour,
		PreSessionTTL:  30 * time.Minute,
		Now:            func() time.Time { return time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC) },
		CheckLoginRate: func(context.Context, string, string) error { return nil },
		IncrementLoginRate: func(context.Context, string, string) error {
			f.increments++
			return nil
		},
		ResetLoginRate: func(context.Context, string) error {
			f.resets++
			return nil
		},
		GetAccountByEmail: func(_ context.Context, email string) (*LoginAccount, error) {
			a, ok := f.accounts[email]
			if !ok {
				return nil, errNoAccount
			}
			return a, nil
		},
		VerifyPassword: func(plain, hash string) (bool, error) { return plain == hash, nil },
		DummyVerify:    func(string) { f.dummyCalls++ },
		PolicyFor: func(context.Context, *LoginAccount) (LoginPolicy, error) {
			return f.policy, nil
		},
		DeviceFingerprint: func(context.Context) string { return "fp" },
		IsDeviceTrusted: func(context.Context, string, string) (bool, error) {
			return f.trusted, nil
		},
		TrustDevice: func(_ context.Context, _ string, _ string, ttl time.Duration) error {
			f.trustedTTL = ttl
			return nil
		},
		VerifyMFACode: func(context.Context, *LoginAccount, string) (bool, error) {
			return f.codeOK, nil
		},
		RegenerateSession: func(_ context.Context, _ string, accountID string, attrs map[string]string, ttl time.Duration) (*session.Session, error) {
			stage := attrs[session.AttrAuthStage]
			f.regenerated = append(f.regenerated, stage)
			return &session.Session{ID: "sid-" + stage, AccountID: accountID, Attributes: attrs, ExpiresAt: time.Now().Add(ttl)}, nil
		},
		Errors: LoginErrors{
			EngineNotReady:     errNotReady,
			InvalidCredentials: errBadCreds,
			LoginRateLimited:   errLimited,
			MFACodeInvalid:     errBadCode,
			AccountNotFound:    errNoAccount,
		},
	}
}

func newFakeLoginBackend() *fakeLoginBackend {
	return &fakeLoginBackend{
		accounts: map[string]*LoginAccount{
			"emp@portal.test": {ID: "u1", Email: "emp@portal.test", Role: "Employee", PasswordHash: "pw"},
			"admin@portal.test": {
				ID: "u2", Email: "admin@portal.test", Role: "Admin", PasswordHash: "pw",
				MFAEnabled: true, MFASetupCompleted: true, HasSecret: true,
			},
		},
	}
}

func TestRunLoginMissingDeps(t *testing.T) {
	_, err := RunLogin(context.Background(), LoginInput{}, LoginDeps{Errors: LoginErrors{EngineNotReady: errNotReady}})
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected errNotReady, got %v", err)
	}
}

func TestRunLoginUnknownEmailRunsDummyVerify(t *testing.T) {
	f := newFakeLoginBackend()
	_, err := RunLogin(context.Background(), LoginInput{Email: "ghost@portal.test", Password: "pw"}, f.deps())
	if !errors.Is(err, errBadCreds) {
		t.Fatalf("expected errBadCreds, got %v", err)
	}
	if f.dummyCalls != 1 {
		t.Fatalf("expected one dummy verification, got %d", f.dummyCalls)
	}
	if f.increments != 1 {
		t.Fatalf("expected limiter increment, got %d", f.increments)
	}
}

func TestRunLoginEmailIsNormalized(t *testing.T) {
	f := newFakeLoginBackend()
	out, err := RunLogin(context.Background(), LoginInput{Email: "  EMP@Portal.Test ", Password: "pw"}, f.deps())
	if err != nil {
		t.Fatalf("RunLogin failed: %v", err)
	}
	if out.Status != LoginStatusSuccess {
		t.Fatalf("expected success, got %s", out.Status)
	}
	if f.resets != 1 {
		t.Fatalf("expected limiter reset on success, got %d", f.resets)
	}
}

func TestRunLoginExpiryBeatsMFA(t *testing.T) {
	f := newFakeLoginBackend()
	f.policy = LoginPolicy{PasswordExpired: true, RequiresMFA: true}
	out, err := RunLogin(context.Background(), LoginInput{Email: "admin@portal.test", Password: "pw"}, f.deps())
	if err != nil {
		t.Fatalf("RunLogin failed: %v", err)
	}
	if out.Status != LoginStatusPasswordChangeRequired {
		t.Fatalf("expected password change, got %s", out.Status)
	}
	if len(f.regenerated) != 0 {
		t.Fatalf("expected no session, got %v", f.regenerated)
	}
}

func TestRunLoginNotEnrolledGetsPreSession(t *testing.T) {
	f := newFakeLoginBackend()
	f.policy = LoginPolicy{RequiresMFA: true}
	out, err := RunLogin(context.Background(), LoginInput{Email: "emp@portal.test", Password: "pw"}, f.deps())
	if err != nil {
		t.Fatalf("RunLogin failed: %v", err)
	}
	if out.Status != LoginStatusMFASetupRequired || out.Session == nil || out.Session.Stage() != session.StageMFASetup {
		t.Fatalf("expected pre-session, got %+v", out)
	}
}

func TestRunLoginGracePeriod(t *testing.T) {
	f := newFakeLoginBackend()
	f.policy = LoginPolicy{RequiresMFA: true, InGracePeriod: true}
	out, err := RunLogin(context.Background(), LoginInput{Email: "emp@portal.test", Password: "pw"}, f.deps())
	if err != nil {
		t.Fatalf("RunLogin failed: %v", err)
	}
	if out.Status != LoginStatusSuccess || !out.MFASetupPending {
		t.Fatalf("expected success with pending setup, got %+v", out)
	}
}

func TestRunLoginEnrolledPaths(t *testing.T) {
	ctx := context.Background()

	f := newFakeLoginBackend()
	f.policy = LoginPolicy{RequiresMFA: true, RememberDeviceTTL: 48 * time.Hour}
	out, err := RunLogin(ctx, LoginInput{Email: "admin@portal.test", Password: "pw"}, f.deps())
	if err != nil || out.Status != LoginStatusMFACodeRequired {
		t.Fatalf("expected code required, got %+v err=%v", out, err)
	}

	if _, err := RunLogin(ctx, LoginInput{Email: "admin@portal.test", Password: "pw", MFACode: "111111"}, f.deps()); !errors.Is(err, errBadCode) {
		t.Fatalf("expected errBadCode, got %v", err)
	}

	f.codeOK = true
	out, err = RunLogin(ctx, LoginInput{Email: "admin@portal.test", Password: "pw", MFACode: "111111", RememberDevice: true}, f.deps())
	if err != nil || out.Status != LoginStatusSuccess {
		t.Fatalf("expected success, got %+v err=%v", out, err)
	}
	if f.trustedTTL != 48*time.Hour {
		t.Fatalf("expected device trusted for 48h, got %v", f.trustedTTL)
	}

	f.codeOK = false
	f.trusted = true
	out, err = RunLogin(ctx, LoginInput{Email: "admin@portal.test", Password: "pw"}, f.deps())
	if err != nil || out.Status != LoginStatusSuccess || !out.DeviceTrusted {
		t.Fatalf("expected trusted device success, got %+v err=%v", out, err)
	}
}

func TestRunLoginRateLimited(t *testing.T) {
	f := newFakeLoginBackend()
	deps := f.deps()
	deps.CheckLoginRate = func(context.Context, string, string) error { return errLimited }
	if _, err := RunLogin(context.Background(), LoginInput{Email: "emp@portal.test", Password: "pw"}, deps); !errors.Is(err, errLimited) {
		t.Fatalf("expected errLimited, got %v", err)
	}
}
