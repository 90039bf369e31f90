package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/onboardAuth/internal/audit"
	"github.com/MrEthical07/onboardAuth/internal/store"
	"github.com/MrEthical07/onboardAuth/internal/store/storetest"
)

func newAccount(t *testing.T, s *store.Store, email string) *store.Account {
	t.Helper()
	now := time.Now()
	a := &store.Account{
		Email:             email,
		PasswordHash:      "hash-0",
		Role:              "Employee",
		PasswordChangedAt: store.Millis(now),
		CreatedAt:         store.Millis(now),
		UpdatedAt:         store.Millis(now),
	}
	if err := s.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return a
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := storetest.NewDB(t)
	if err := store.Migrate(context.Background(), db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestCreateAccountNormalizesEmailAndRejectsDuplicates(t *testing.T) {
	s := store.New(storetest.NewDB(t))
	ctx := context.Background()

	a := newAccount(t, s, "  New.Hire@Example.com ")
	if a.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.AccountByEmail(ctx, "new.hire@example.COM")
	if err != nil {
		t.Fatalf("AccountByEmail: %v", err)
	}
	if got.ID != a.ID || got.Email != "new.hire@example.com" {
		t.Fatalf("unexpected account: %+v", got)
	}

	dup := &store.Account{Email: "NEW.HIRE@example.com", PasswordHash: "x", Role: "HR"}
	if err := s.CreateAccount(ctx, dup); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if _, err := s.AccountByID(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChangePasswordRotatesHistory(t *testing.T) {
	s := store.New(storetest.NewDB(t))
	ctx := context.Background()
	a := newAccount(t, s, "rotate@example.com")

	base := time.Now().Add(-time.Hour)
	for i := 1; i <= 4; i++ {
		hash := "hash-" + string(rune('0'+i))
		if err := s.ChangePassword(ctx, a.ID, hash, base.Add(time.Duration(i)*time.Minute), 3); err != nil {
			t.Fatalf("ChangePassword %d: %v", i, err)
		}
	}

	history, err := s.PasswordHistory(ctx, a.ID, 12)
	if err != nil {
		t.Fatalf("PasswordHistory: %v", err)
	}
	want := []string{"hash-3", "hash-2", "hash-1"}
	if len(history) != len(want) {
		t.Fatalf("history = %v, want %v", history, want)
	}
	for i := range want {
		if history[i] != want[i] {
			t.Fatalf("history = %v, want %v", history, want)
		}
	}

	got, _ := s.AccountByID(ctx, a.ID)
	if got.PasswordHash != "hash-4" {
		t.Fatalf("current hash = %q", got.PasswordHash)
	}

	if err := s.ChangePassword(ctx, "missing", "x", time.Now(), 3); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceSetupSessionKeepsOneLiveRow(t *testing.T) {
	s := store.New(storetest.NewDB(t))
	ctx := context.Background()
	a := newAccount(t, s, "setup@example.com")
	now := time.Now()

	first := store.SetupSession{ID: "setup-1", AccountID: a.ID, Secret: "S1", ExpiresAt: store.Millis(now.Add(30 * time.Minute)), CreatedAt: store.Millis(now)}
	second := store.SetupSession{ID: "setup-2", AccountID: a.ID, Secret: "S2", ExpiresAt: store.Millis(now.Add(30 * time.Minute)), CreatedAt: store.Millis(now)}
	if err := s.ReplaceSetupSession(ctx, first); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := s.ReplaceSetupSession(ctx, second); err != nil {
		t.Fatalf("second: %v", err)
	}

	n, err := s.LiveSetupSessions(ctx, a.ID, now)
	if err != nil || n != 1 {
		t.Fatalf("live setup sessions = %d err=%v", n, err)
	}
	if _, err := s.SetupSessionByID(ctx, "setup-1", now); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected superseded session gone, got %v", err)
	}
	if _, err := s.SetupSessionByID(ctx, "setup-2", now.Add(31*time.Minute)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected expired session hidden, got %v", err)
	}
}

func TestCompleteMFASetupAndConsumeCodes(t *testing.T) {
	s := store.New(storetest.NewDB(t))
	ctx := context.Background()
	a := newAccount(t, s, "enroll@example.com")
	now := time.Now()

	ss := store.SetupSession{ID: "setup-x", AccountID: a.ID, Secret: "SECRET", ExpiresAt: store.Millis(now.Add(time.Minute)), CreatedAt: store.Millis(now)}
	if err := s.ReplaceSetupSession(ctx, ss); err != nil {
		t.Fatalf("ReplaceSetupSession: %v", err)
	}
	err := s.CompleteMFASetup(ctx, store.CompleteSetup{
		AccountID: a.ID, SetupID: "setup-x", Secret: "SECRET", CodeHashes: []string{"c1", "c2"}, Now: now,
	})
	if err != nil {
		t.Fatalf("CompleteMFASetup: %v", err)
	}

	got, _ := s.AccountByID(ctx, a.ID)
	if !got.MFAEnabled || !got.MFASetupCompleted || got.MFASecret != "SECRET" {
		t.Fatalf("enrollment flags not set: %+v", got)
	}

	err = s.CompleteMFASetup(ctx, store.CompleteSetup{AccountID: a.ID, SetupID: "setup-x", Secret: "OTHER", Now: now})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected consumed setup session, got %v", err)
	}

	ok, err := s.ConsumeBackupCode(ctx, a.ID, "c1")
	if err != nil || !ok {
		t.Fatalf("first consume ok=%v err=%v", ok, err)
	}
	ok, err = s.ConsumeBackupCode(ctx, a.ID, "c1")
	if err != nil || ok {
		t.Fatalf("second consume ok=%v err=%v", ok, err)
	}
	if n, _ := s.BackupCodeCount(ctx, a.ID); n != 1 {
		t.Fatalf("remaining codes = %d", n)
	}
}

func TestResetMFAClearsEverything(t *testing.T) {
	s := store.New(storetest.NewDB(t))
	ctx := context.Background()
	a := newAccount(t, s, "reset@example.com")
	now := time.Now()

	_ = s.ReplaceSetupSession(ctx, store.SetupSession{ID: "s", AccountID: a.ID, Secret: "X", ExpiresAt: store.Millis(now.Add(time.Hour)), CreatedAt: store.Millis(now)})
	_ = s.ReplaceBackupCodes(ctx, a.ID, []string{"a", "b"})
	_ = s.TrustDevice(ctx, a.ID, "fp", now.Add(time.Hour), now)

	ok, err := s.ResetMFA(ctx, a.ID, now)
	if err != nil || !ok {
		t.Fatalf("ResetMFA ok=%v err=%v", ok, err)
	}
	if n, _ := s.BackupCodeCount(ctx, a.ID); n != 0 {
		t.Fatalf("codes left: %d", n)
	}
	if n, _ := s.LiveSetupSessions(ctx, a.ID, now); n != 0 {
		t.Fatalf("setup sessions left: %d", n)
	}
	if trusted, _ := s.DeviceTrusted(ctx, a.ID, "fp", now); trusted {
		t.Fatal("trusted device survived reset")
	}

	ok, err = s.ResetMFA(ctx, "missing", now)
	if err != nil || ok {
		t.Fatalf("ResetMFA(missing) ok=%v err=%v", ok, err)
	}
}

func TestClaimTOTPStepIsMonotonic(t *testing.T) {
	s := store.New(storetest.NewDB(t))
	ctx := context.Background()
	a := newAccount(t, s, "steps@example.com")
	now := time.Now()

	_ = s.ReplaceSetupSession(ctx, store.SetupSession{ID: "s", AccountID: a.ID, Secret: "X", ExpiresAt: store.Millis(now.Add(time.Hour)), CreatedAt: store.Millis(now)})
	if err := s.CompleteMFASetup(ctx, store.CompleteSetup{AccountID: a.ID, SetupID: "s", Secret: "X", LastStep: 100, Now: now}); err != nil {
		t.Fatalf("CompleteMFASetup: %v", err)
	}
	if got, _ := s.AccountByID(ctx, a.ID); got.MFALastStep != 100 {
		t.Fatalf("expected setup step stored, got %d", got.MFALastStep)
	}

	for _, tc := range []struct {
		step int64
		want bool
	}{
		{99, false},
		{100, false},
		{101, true},
		{101, false},
		{103, true},
		{102, false},
	} {
		ok, err := s.ClaimTOTPStep(ctx, a.ID, tc.step)
		if err != nil || ok != tc.want {
			t.Fatalf("ClaimTOTPStep(%d) = %v, %v; want %v", tc.step, ok, err, tc.want)
		}
	}

	if _, err := s.ResetMFA(ctx, a.ID, now); err != nil {
		t.Fatalf("ResetMFA: %v", err)
	}
	if got, _ := s.AccountByID(ctx, a.ID); got.MFALastStep != 0 {
		t.Fatalf("expected step cleared by reset, got %d", got.MFALastStep)
	}
	if ok, _ := s.ClaimTOTPStep(ctx, "missing", 5); ok {
		t.Fatal("claimed a step for a missing account")
	}
}

func TestTrustedDeviceExpiryAndUpsert(t *testing.T) {
	s := store.New(storetest.NewDB(t))
	ctx := context.Background()
	a := newAccount(t, s, "device@example.com")
	now := time.Now()

	if err := s.TrustDevice(ctx, a.ID, "fp", now.Add(time.Minute), now); err != nil {
		t.Fatalf("TrustDevice: %v", err)
	}
	if err := s.TrustDevice(ctx, a.ID, "fp", now.Add(time.Hour), now); err != nil {
		t.Fatalf("TrustDevice upsert: %v", err)
	}
	if ok, _ := s.DeviceTrusted(ctx, a.ID, "fp", now.Add(30*time.Minute)); !ok {
		t.Fatal("expected extended expiry")
	}
	if ok, _ := s.DeviceTrusted(ctx, a.ID, "fp", now.Add(2*time.Hour)); ok {
		t.Fatal("expected expired device to be untrusted")
	}
	n, err := s.DeleteExpiredDevices(ctx, now.Add(2*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpiredDevices n=%d err=%v", n, err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := store.New(storetest.NewDB(t))
	ctx := context.Background()

	if _, err := s.LoadSettings(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	in := store.Settings{MFAEnforced: true, MFARequiredRoles: "Admin,HR", MFAGracePeriodDays: 7, RememberDeviceDays: 30, PasswordExpiryDays: 90, UpdatedAt: 1}
	if err := s.SaveSettings(ctx, in); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	in.MFAGracePeriodDays = 3
	if err := s.SaveSettings(ctx, in); err != nil {
		t.Fatalf("SaveSettings update: %v", err)
	}
	got, err := s.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if *got != in {
		t.Fatalf("settings = %+v, want %+v", *got, in)
	}
}

func TestAuditAppendAndRetention(t *testing.T) {
	s := store.New(storetest.NewDB(t))
	ctx := context.Background()
	old := time.Now().Add(-400 * 24 * time.Hour)

	_ = s.AppendAudit(ctx, store.AuditEntry{AccountID: "acc", Event: "setup_started", Success: true, CreatedAt: store.Millis(old)})
	_ = s.AppendAudit(ctx, store.AuditEntry{AccountID: "acc", Event: "verify_success", Success: true, CreatedAt: store.Millis(time.Now())})

	n, err := s.DeleteAuditBefore(ctx, time.Now().Add(-365*24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("DeleteAuditBefore n=%d err=%v", n, err)
	}
	entries, err := s.AuditEntries(ctx, "acc", 10)
	if err != nil || len(entries) != 1 || entries[0].Event != "verify_success" || !entries[0].Success {
		t.Fatalf("entries=%+v err=%v", entries, err)
	}
}

func TestAuditSinkPersistsOnlyMFAEvents(t *testing.T) {
	s := store.New(storetest.NewDB(t))
	sink := store.NewAuditSink(s, nil)
	ctx := context.Background()

	sink.Emit(ctx, audit.Event{EventType: "login_success", AccountID: "acc", Success: true})
	sink.Emit(ctx, audit.Event{EventType: "mfa_verify_failure", AccountID: "acc", IP: "10.1.1.1", Error: "invalid code"})
	sink.Emit(ctx, audit.Event{EventType: "mfa_backup_code_used", AccountID: "acc", Success: true, Metadata: map[string]string{"remaining": "9"}})

	entries, err := s.AuditEntries(ctx, "acc", 10)
	if err != nil {
		t.Fatalf("AuditEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 persisted entries, got %+v", entries)
	}
	seen := map[string]store.AuditEntry{}
	for _, e := range entries {
		seen[e.Event] = e
	}
	if f, ok := seen["verify_failure"]; !ok || f.Success || f.IP != "10.1.1.1" || f.Detail != "invalid code" {
		t.Fatalf("unexpected failure entry %+v", f)
	}
	if b, ok := seen["backup_code_used"]; !ok || b.Detail != `{"remaining":"9"}` {
		t.Fatalf("unexpected backup entry %+v", b)
	}
}
