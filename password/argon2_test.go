package password

import (
	"errors"
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	hasher, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return hasher
}

func TestHashAndVerify(t *testing.T) {
	hasher := newTestHasher(t, testConfig())

	hash, err := hasher.Hash("Onb0ard-Ascii-Pass")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("Onb0ard-Ascii-Pass", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("Onb0ard-Ascii-Pas", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	hasher := newTestHasher(t, testConfig())

	a, err := hasher.Hash("same-input-twice")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := hasher.Hash("same-input-twice")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct hashes for identical input")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	oldHasher := newTestHasher(t, testConfig())
	hash, err := oldHasher.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := testConfig()
	stronger.Memory = 16 * 1024
	stronger.Time = 2
	newHasher := newTestHasher(t, stronger)

	needs, err := newHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !needs {
		t.Fatal("expected NeedsUpgrade for weaker parameters")
	}

	needs, err = oldHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if needs {
		t.Fatal("expected no upgrade for current parameters")
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	hasher := newTestHasher(t, testConfig())
	valid, err := hasher.Hash("version-test-pass")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	cases := map[string]string{
		"not phc":       "not-a-phc-hash",
		"wrong version": strings.Replace(valid, "$v=19$", "$v=18$", 1),
		"wrong algo":    strings.Replace(valid, "$argon2id$", "$argon2i$", 1),
		"bad params":    strings.Replace(valid, "m=8192,t=1,p=1", "m=8192,t=1", 1),
	}
	for name, encoded := range cases {
		if _, err := hasher.Verify("version-test-pass", encoded); err == nil {
			t.Fatalf("%s: expected verification error", name)
		}
	}
}

func TestHashLengthBounds(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPasswordBytes = 64
	hasher := newTestHasher(t, cfg)

	if _, err := hasher.Hash("short"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}

	exact := strings.Repeat("b", 64)
	hash, err := hasher.Hash(exact)
	if err != nil {
		t.Fatalf("expected max-length password to hash: %v", err)
	}
	if ok, err := hasher.Verify(exact, hash); err != nil || !ok {
		t.Fatalf("Verify failed for max-length password: ok=%v err=%v", ok, err)
	}
	if _, err := hasher.Verify(strings.Repeat("c", 65), hash); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected Verify to reject long password, got %v", err)
	}
}

func TestDefaultMaxPasswordBytesApplied(t *testing.T) {
	hasher := newTestHasher(t, testConfig())
	if _, err := hasher.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); err == nil {
		t.Fatalf("expected password > %d bytes to be rejected", DefaultMaxPasswordBytes)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected low memory config to be rejected")
	}
	cfg = testConfig()
	cfg.SaltLength = 8
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected short salt config to be rejected")
	}
}

func TestMatchesAny(t *testing.T) {
	hasher := newTestHasher(t, testConfig())
	h1, _ := hasher.Hash("first-old-password")
	h2, _ := hasher.Hash("second-old-password")

	history := []string{"", "garbage", h1, h2}
	if !hasher.MatchesAny("second-old-password", history) {
		t.Fatal("expected match against history entry")
	}
	if hasher.MatchesAny("never-used-password", history) {
		t.Fatal("expected no match for new password")
	}
}
