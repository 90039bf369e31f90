package onboardAuth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/onboardAuth/internal/store/storetest"
)

const testPassword = "Harbor-Lantern-2291"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false
	return cfg
}

type testEnv struct {
	engine *Engine
	clock  *testClock
	db     *sqlx.DB
	redis  *miniredis.Miniredis
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	db := storetest.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := newTestClock()
	engine, err := New().
		WithConfig(cfg).
		WithDB(db).
		WithRedis(rdb).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, clock: clock, db: db, redis: mr}
}

func (env *testEnv) createAccount(t *testing.T, email, role string) *Account {
	t.Helper()
	acct, err := env.engine.CreateAccount(context.Background(), CreateAccountRequest{
		Email:     email,
		Password:  testPassword,
		Role:      role,
		FirstName: "Test",
		LastName:  "Hire",
	})
	if err != nil {
		t.Fatalf("CreateAccount(%s) failed: %v", email, err)
	}
	return acct
}

func (env *testEnv) totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := env.engine.totp.Code(secret, at)
	if err != nil {
		t.Fatalf("totp code failed: %v", err)
	}
	return code
}

// wrongCode returns a well-formed code that differs from code.
func wrongCode(code string) string {
	b := []byte(code)
	last := len(b) - 1
	b[last] = '0' + (b[last]-'0'+1)%10
	return string(b)
}

// enroll completes MFA enrollment and returns the secret and backup codes.
// The clock ends one TOTP period later so the next code is not a replay of
// the enrollment code.
func (env *testEnv) enroll(t *testing.T, accountID string) (string, []string) {
	t.Helper()
	ctx := context.Background()
	setup, err := env.engine.StartMFASetup(ctx, accountID)
	if err != nil {
		t.Fatalf("StartMFASetup failed: %v", err)
	}
	res, err := env.engine.VerifyMFASetup(ctx, accountID, setup.SetupSessionID, env.totpCode(t, setup.Secret, env.clock.Now()), "")
	if err != nil {
		t.Fatalf("VerifyMFASetup failed: %v", err)
	}
	env.clock.Advance(30 * time.Second)
	return setup.Secret, res.BackupCodes
}

func TestBuildRequiresDB(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected Build without database to fail")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	db := storetest.NewDB(t)
	b := New().WithConfig(testConfig()).WithDB(db)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildRejectsUnknownRole(t *testing.T) {
	db := storetest.NewDB(t)
	_, err := New().
		WithConfig(testConfig()).
		WithDB(db).
		WithRoles(map[string][]string{"Contractor": {PermAccountsRead}}).
		Build()
	if err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
}

func TestHasPermissionDefaults(t *testing.T) {
	env := newTestEnv(t, nil)
	e := env.engine

	cases := []struct {
		role string
		perm string
		want bool
	}{
		{RoleAdmin, PermMFAReset, true},
		{RoleAdmin, PermSettingsWrite, true},
		{RoleHR, PermAccountsCreate, true},
		{RoleHR, PermMFAReset, false},
		{RoleManager, PermAccountsRead, true},
		{RoleManager, PermSettingsRead, false},
		{RoleEmployee, PermSessionsTokenUse, true},
		{RoleEmployee, PermAccountsRead, false},
		{"Contractor", PermAccountsRead, false},
		{RoleAdmin, "unknown.permission", false},
	}
	for _, tc := range cases {
		if got := e.HasPermission(tc.role, tc.perm); got != tc.want {
			t.Fatalf("HasPermission(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestUpdatePolicyAppliesImmediately(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createAccount(t, "emp@portal.test", RoleEmployee)

	res, err := env.engine.Login(ctx, LoginRequest{Email: "emp@portal.test", Password: testPassword})
	if err != nil || res.Status != LoginSuccess {
		t.Fatalf("expected success before policy change, got %+v err=%v", res, err)
	}

	policy, err := env.engine.Policy(ctx)
	if err != nil {
		t.Fatalf("Policy failed: %v", err)
	}
	policy.MFAEnforced = true
	if _, err := env.engine.UpdatePolicy(ctx, policy); err != nil {
		t.Fatalf("UpdatePolicy failed: %v", err)
	}

	res, err = env.engine.Login(ctx, LoginRequest{Email: "emp@portal.test", Password: testPassword})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.Status != LoginMFASetupRequired {
		t.Fatalf("expected mfa_setup_required after enforcing MFA, got %s", res.Status)
	}
}

func TestUpdatePolicyRejectsUnknownRole(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.engine.UpdatePolicy(context.Background(), SecurityPolicy{MFARequiredRoles: []string{"Intern"}})
	if err != ErrAccountRoleInvalid {
		t.Fatalf("expected ErrAccountRoleInvalid, got %v", err)
	}
}

func TestRequiresMFA(t *testing.T) {
	p := SecurityPolicy{MFARequiredRoles: []string{RoleAdmin, RoleHR}}
	if !RequiresMFA(RoleAdmin, p) || !RequiresMFA(RoleHR, p) {
		t.Fatal("expected listed roles to require MFA")
	}
	if RequiresMFA(RoleEmployee, p) {
		t.Fatal("expected unlisted role not to require MFA")
	}
	p.MFAEnforced = true
	if !RequiresMFA(RoleEmployee, p) {
		t.Fatal("expected enforced policy to cover every role")
	}
}

func TestSweepTasksRemoveExpiredRows(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	acct := env.createAccount(t, "admin@portal.test", RoleAdmin)

	if _, err := env.engine.Login(ctx, LoginRequest{Email: "admin@portal.test", Password: testPassword}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := env.engine.StartMFASetup(ctx, acct.ID); err != nil {
		t.Fatalf("StartMFASetup failed: %v", err)
	}

	env.clock.Advance(2 * time.Hour)

	removed := map[string]int64{}
	for _, task := range env.engine.SweepTasks() {
		n, err := task.Run(ctx)
		if err != nil {
			t.Fatalf("sweep %s failed: %v", task.Name, err)
		}
		removed[task.Name] = n
	}
	if removed["sessions"] != 1 {
		t.Fatalf("expected one expired pre-session removed, got %d", removed["sessions"])
	}
	if removed["mfa_setup_sessions"] != 1 {
		t.Fatalf("expected one expired setup session removed, got %d", removed["mfa_setup_sessions"])
	}
}
