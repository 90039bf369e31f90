package onboardAuth

import (
	"context"
	"errors"
	"strings"
	"testing"

	internalflows "github.com/MrEthical07/onboardAuth/internal/flows"
)

func TestBackupCodesWorkOnceEach(t *testing.T) {
	env := newTestEnv(t, nil)
	acct := env.createAccount(t, "admin@portal.test", RoleAdmin)
	_, codes := env.enroll(t, acct.ID)
	ctx := context.Background()

	for i, code := range codes {
		submitted := code
		switch i % 3 {
		case 1:
			submitted = strings.ToLower(code)
		case 2:
			submitted = internalflows.FormatBackupCode(code)
		}
		res, err := env.engine.Login(ctx, LoginRequest{Email: "admin@portal.test", Password: testPassword, MFACode: submitted})
		if err != nil || res.Status != LoginSuccess {
			t.Fatalf("code %d (%q): expected success, got %+v err=%v", i, submitted, res, err)
		}
		if i == 0 {
			if _, err := env.engine.Login(ctx, LoginRequest{Email: "admin@portal.test", Password: testPassword, MFACode: code}); !errors.Is(err, ErrMFACodeInvalid) {
				t.Fatalf("expected reused backup code to fail, got %v", err)
			}
		}
	}

	if n, err := env.engine.BackupCodesRemaining(ctx, acct.ID); err != nil || n != 0 {
		t.Fatalf("expected all codes consumed, got %d err=%v", n, err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricBackupCodeUsed]; got != uint64(len(codes)) {
		t.Fatalf("expected %d backup code uses counted, got %d", len(codes), got)
	}
}

func TestBackupCodesAreAccountScoped(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.createAccount(t, "a@portal.test", RoleAdmin)
	b := env.createAccount(t, "b@portal.test", RoleAdmin)
	_, codesA := env.enroll(t, a.ID)
	env.enroll(t, b.ID)

	ok, err := env.engine.VerifyMFACode(context.Background(), b.ID, codesA[0])
	if err != nil {
		t.Fatalf("VerifyMFACode failed: %v", err)
	}
	if ok {
		t.Fatal("expected another account's backup code to be rejected")
	}
}

func TestRegenerateBackupCodesRequiresTOTP(t *testing.T) {
	env := newTestEnv(t, nil)
	acct := env.createAccount(t, "admin@portal.test", RoleAdmin)
	secret, old := env.enroll(t, acct.ID)
	ctx := context.Background()

	if _, err := env.engine.RegenerateBackupCodes(ctx, acct.ID, old[0]); !errors.Is(err, ErrMFACodeInvalid) {
		t.Fatalf("expected backup code to be refused for regeneration, got %v", err)
	}

	fresh, err := env.engine.RegenerateBackupCodes(ctx, acct.ID, env.totpCode(t, secret, env.clock.Now()))
	if err != nil {
		t.Fatalf("RegenerateBackupCodes failed: %v", err)
	}
	if len(fresh) != 10 {
		t.Fatalf("expected 10 fresh codes, got %d", len(fresh))
	}

	ok, err := env.engine.VerifyMFACode(ctx, acct.ID, old[1])
	if err != nil {
		t.Fatalf("VerifyMFACode failed: %v", err)
	}
	if ok {
		t.Fatal("expected old codes to be invalidated")
	}
	ok, err = env.engine.VerifyMFACode(ctx, acct.ID, fresh[0])
	if err != nil || !ok {
		t.Fatalf("expected fresh code to verify, ok=%v err=%v", ok, err)
	}
}

func TestRegenerateBackupCodesNotEnrolled(t *testing.T) {
	env := newTestEnv(t, nil)
	acct := env.createAccount(t, "emp@portal.test", RoleEmployee)
	if _, err := env.engine.RegenerateBackupCodes(context.Background(), acct.ID, "123456"); !errors.Is(err, ErrMFANotEnrolled) {
		t.Fatalf("expected ErrMFANotEnrolled, got %v", err)
	}
	if _, err := env.engine.RegenerateBackupCodes(context.Background(), "missing", "123456"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
