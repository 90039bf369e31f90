package onboardAuth

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/onboardAuth/password"
)

// Config is the complete engine configuration. Start from [DefaultConfig]
// and override fields; [Builder.Build] validates it.
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	Password  PasswordConfig
	TOTP      TOTPConfig
	Policy    PolicyConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Sweep     SweepConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls the stateless fallback bearer token. When Enabled is
// false the engine issues no tokens and rejects bearer credentials.
type JWTConfig struct {
	Enabled       bool
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines lifetimes and cookie transport of server sessions.
type SessionConfig struct {
	TTL             time.Duration
	PreSessionTTL   time.Duration
	CookieName      string
	TokenCookieName string
	SecureCookies   bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id costs and the lifecycle rules of the
// credential store.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	HistorySize      int
	Denylist         []string
}

// TOTPConfig defines the authenticator parameters and setup lifetime.
type TOTPConfig struct {
	Issuer          string
	Digits          int
	Period          int
	Skew            int
	SecretSize      int
	SetupTTL        time.Duration
	BackupCodeCount int

	// EnforceReplayProtection rejects a code whose time step is not newer
	// than the last one the account used.
	EnforceReplayProtection bool
}

// PolicyConfig seeds the organization security policy until an administrator
// saves one. CacheTTL bounds how stale a cached policy may be.
type PolicyConfig struct {
	MFAEnforced        bool
	MFARequiredRoles   []string
	MFAGracePeriodDays int
	RememberDeviceDays int
	PasswordExpiryDays int
	CacheTTL           time.Duration
}

// RateLimitConfig configures the optional Redis limiters. They are active
// only when the builder received a Redis client.
type RateLimitConfig struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	MaxMFAAttempts        int
	MFACooldownDuration   time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher. With DropIfFull
// unset a full buffer blocks the emitting request until the sink drains.
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	SinkTimeout time.Duration
}

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SweepConfig sets the cleanup intervals. A zero interval disables that task.
type SweepConfig struct {
	SessionInterval    time.Duration
	RevocationInterval time.Duration
	MFAInterval        time.Duration
	AuditRetention     time.Duration
	AuditInterval      time.Duration
}

// DefaultConfig returns the portal defaults: 8 hour sessions, 30 minute
// pre-sessions and setup sessions, 90 day password expiry, 12 entry history.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Enabled:       false,
			AccessTTL:     15 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "onboard-portal",
		},
		Session: SessionConfig{
			TTL:             8 * time.Hour,
			PreSessionTTL:   30 * time.Minute,
			CookieName:      "portal_session",
			TokenCookieName: "portal_token",
			SecureCookies:   true,
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
			HistorySize:      password.DefaultHistorySize,
			Denylist:         append([]string(nil), password.DefaultDenylist...),
		},
		TOTP: TOTPConfig{
			Issuer:                  "Onboarding Portal",
			Digits:                  6,
			Period:                  30,
			Skew:                    2,
			SecretSize:              20,
			SetupTTL:                30 * time.Minute,
			BackupCodeCount:         10,
			EnforceReplayProtection: true,
		},
		Policy: PolicyConfig{
			MFAEnforced:        false,
			MFARequiredRoles:   []string{RoleAdmin},
			MFAGracePeriodDays: 0,
			RememberDeviceDays: 30,
			PasswordExpiryDays: password.DefaultExpiryDays,
			CacheTTL:           time.Minute,
		},
		RateLimit: RateLimitConfig{
			EnableIPThrottle:      true,
			MaxLoginAttempts:      10,
			LoginCooldownDuration: 15 * time.Minute,
			MaxMFAAttempts:        5,
			MFACooldownDuration:   5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:     true,
			BufferSize:  1024,
			DropIfFull:  false,
			SinkTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Sweep: SweepConfig{
			SessionInterval:    15 * time.Minute,
			RevocationInterval: 15 * time.Minute,
			MFAInterval:        15 * time.Minute,
			AuditRetention:     365 * 24 * time.Hour,
			AuditInterval:      24 * time.Hour,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Password.Denylist = append([]string(nil), cfg.Password.Denylist...)
	out.Policy.MFARequiredRoles = append([]string(nil), cfg.Policy.MFARequiredRoles...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.Enabled {
		if c.JWT.AccessTTL <= 0 {
			return errors.New("JWT AccessTTL must be > 0")
		}
		if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
			return errors.New("unsupported JWT signing method")
		}
		if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
		if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
		if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
			return errors.New("JWT Leeway must be between 0 and 2m")
		}
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.PreSessionTTL <= 0 {
		return errors.New("Session PreSessionTTL must be > 0")
	}
	if c.Session.PreSessionTTL > c.Session.TTL {
		return errors.New("Session PreSessionTTL must not exceed TTL")
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return errors.New("Session CookieName must be set")
	}
	if c.JWT.Enabled && strings.TrimSpace(c.Session.TokenCookieName) == "" {
		return errors.New("Session TokenCookieName must be set when JWT is enabled")
	}
	if c.Session.CookieName == c.Session.TokenCookieName {
		return errors.New("Session CookieName and TokenCookieName must differ")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes != 0 && c.Password.MaxPasswordBytes < password.MinLength {
		return errors.New("Password MaxPasswordBytes must be >= 10")
	}
	if c.Password.HistorySize < 0 || c.Password.HistorySize > 64 {
		return errors.New("Password HistorySize must be between 0 and 64")
	}

	// TOTP
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must be set")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period <= 0 || c.TOTP.Period > 120 {
		return errors.New("TOTP Period must be between 1 and 120 seconds")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 10 {
		return errors.New("TOTP Skew must be between 0 and 10")
	}
	if c.TOTP.SecretSize < 16 {
		return errors.New("TOTP SecretSize must be >= 16")
	}
	if c.TOTP.SetupTTL <= 0 {
		return errors.New("TOTP SetupTTL must be > 0")
	}
	if c.TOTP.BackupCodeCount <= 0 || c.TOTP.BackupCodeCount > 64 {
		return errors.New("TOTP BackupCodeCount must be between 1 and 64")
	}

	// Policy
	if c.Policy.MFAGracePeriodDays < 0 || c.Policy.RememberDeviceDays < 0 || c.Policy.PasswordExpiryDays < 0 {
		return errors.New("Policy day counts must be >= 0")
	}
	for _, r := range c.Policy.MFARequiredRoles {
		if !validRole(r) {
			return errors.New("Policy MFARequiredRoles contains an unknown role")
		}
	}
	if c.Policy.CacheTTL < 0 {
		return errors.New("Policy CacheTTL must be >= 0")
	}

	// Rate limits
	if c.RateLimit.MaxLoginAttempts <= 0 {
		return errors.New("RateLimit MaxLoginAttempts must be > 0")
	}
	if c.RateLimit.LoginCooldownDuration <= 0 {
		return errors.New("RateLimit LoginCooldownDuration must be > 0")
	}
	if c.RateLimit.MaxMFAAttempts <= 0 {
		return errors.New("RateLimit MaxMFAAttempts must be > 0")
	}
	if c.RateLimit.MFACooldownDuration <= 0 {
		return errors.New("RateLimit MFACooldownDuration must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Audit.SinkTimeout < 0 {
		return errors.New("Audit SinkTimeout must be >= 0")
	}

	// Sweep
	if c.Sweep.SessionInterval < 0 || c.Sweep.RevocationInterval < 0 ||
		c.Sweep.MFAInterval < 0 || c.Sweep.AuditInterval < 0 {
		return errors.New("Sweep intervals must be >= 0")
	}
	if c.Sweep.AuditInterval > 0 && c.Sweep.AuditRetention <= 0 {
		return errors.New("Sweep AuditRetention must be > 0 when AuditInterval is set")
	}

	return nil
}
