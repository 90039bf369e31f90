// Package config loads the server configuration from defaults, an optional
// config.yaml, a .env file and ONBOARD_ environment variables, in rising
// precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	onboardAuth "github.com/MrEthical07/onboardAuth"
	"github.com/MrEthical07/onboardAuth/internal/store"
)

// EnvPrefix prefixes every environment variable, e.g. ONBOARD_DATABASE_URL.
const EnvPrefix = "ONBOARD"

// Config is the server configuration.
type Config struct {
	Environment string `mapstructure:"environment"`
	Port        int    `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	DatabaseDriver string `mapstructure:"database_driver"`
	DatabaseURL    string `mapstructure:"database_url"`

	RedisAddr     string `mapstructure:"redis_addr"` // empty disables the attempt limiters
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	PreSessionTTL time.Duration `mapstructure:"pre_session_ttl"`
	SecureCookies bool          `mapstructure:"secure_cookies"`

	JWTEnabled        bool          `mapstructure:"jwt_enabled"`
	JWTSigningMethod  string        `mapstructure:"jwt_signing_method"`
	JWTSecret         string        `mapstructure:"jwt_secret"` // hs256 only
	JWTPrivateKeyPath string        `mapstructure:"jwt_private_key_path"`
	JWTPublicKeyPath  string        `mapstructure:"jwt_public_key_path"`
	JWTAccessTTL      time.Duration `mapstructure:"jwt_access_ttl"`

	TOTPIssuer           string `mapstructure:"totp_issuer"`
	TOTPReplayProtection bool   `mapstructure:"totp_replay_protection"`

	MFAEnforced        bool     `mapstructure:"mfa_enforced"`
	MFARequiredRoles   []string `mapstructure:"mfa_required_roles"`
	MFAGracePeriodDays int      `mapstructure:"mfa_grace_period_days"`
	RememberDeviceDays int      `mapstructure:"remember_device_days"`
	PasswordExpiryDays int      `mapstructure:"password_expiry_days"`

	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	LoginCooldown    time.Duration `mapstructure:"login_cooldown"`

	AuditEnabled   bool          `mapstructure:"audit_enabled"`
	AuditRetention time.Duration `mapstructure:"audit_retention"`

	MetricsEnabled bool `mapstructure:"metrics_enabled"`
}

// Load reads the configuration. A missing .env or config file is not an error.
// Extra search paths for config.yaml are tried before the working directory.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath("/etc/onboardauth/")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// AutomaticEnv yields comma separated strings for list keys.
	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)
	cfg.MFARequiredRoles = splitList(cfg.MFARequiredRoles)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := onboardAuth.DefaultConfig()

	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("allowed_origins", []string{"https://*"})
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("shutdown_timeout", 15*time.Second)

	v.SetDefault("database_driver", store.DriverSQLite)
	v.SetDefault("database_url", "file:onboardauth.db")

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("session_ttl", d.Session.TTL)
	v.SetDefault("pre_session_ttl", d.Session.PreSessionTTL)
	v.SetDefault("secure_cookies", d.Session.SecureCookies)

	v.SetDefault("jwt_enabled", d.JWT.Enabled)
	v.SetDefault("jwt_signing_method", d.JWT.SigningMethod)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_private_key_path", "")
	v.SetDefault("jwt_public_key_path", "")
	v.SetDefault("jwt_access_ttl", d.JWT.AccessTTL)

	v.SetDefault("totp_issuer", d.TOTP.Issuer)
	v.SetDefault("totp_replay_protection", d.TOTP.EnforceReplayProtection)

	v.SetDefault("mfa_enforced", d.Policy.MFAEnforced)
	v.SetDefault("mfa_required_roles", d.Policy.MFARequiredRoles)
	v.SetDefault("mfa_grace_period_days", d.Policy.MFAGracePeriodDays)
	v.SetDefault("remember_device_days", d.Policy.RememberDeviceDays)
	v.SetDefault("password_expiry_days", d.Policy.PasswordExpiryDays)

	v.SetDefault("max_login_attempts", d.RateLimit.MaxLoginAttempts)
	v.SetDefault("login_cooldown", d.RateLimit.LoginCooldownDuration)

	v.SetDefault("audit_enabled", d.Audit.Enabled)
	v.SetDefault("audit_retention", d.Sweep.AuditRetention)

	v.SetDefault("metrics_enabled", d.Metrics.Enabled)
}

// Validate checks the server-level settings. Engine settings are checked by
// [onboardAuth.Config.Validate] when the engine is built.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	switch c.DatabaseDriver {
	case store.DriverPostgres, store.DriverSQLite:
	default:
		return fmt.Errorf("config: unknown database driver %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("config: database_url is required")
	}
	if c.Environment == "production" && !c.SecureCookies {
		return errors.New("config: secure_cookies must stay on in production")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// EngineConfig overlays the server settings on [onboardAuth.DefaultConfig].
// Key files are read here.
func (c *Config) EngineConfig() (onboardAuth.Config, error) {
	ec := onboardAuth.DefaultConfig()

	ec.Session.TTL = c.SessionTTL
	ec.Session.PreSessionTTL = c.PreSessionTTL
	ec.Session.SecureCookies = c.SecureCookies

	ec.JWT.Enabled = c.JWTEnabled
	ec.JWT.SigningMethod = c.JWTSigningMethod
	ec.JWT.AccessTTL = c.JWTAccessTTL
	if c.JWTEnabled {
		switch c.JWTSigningMethod {
		case "hs256":
			ec.JWT.PrivateKey = []byte(c.JWTSecret)
		default:
			priv, err := readKey(c.JWTPrivateKeyPath)
			if err != nil {
				return ec, err
			}
			pub, err := readKey(c.JWTPublicKeyPath)
			if err != nil {
				return ec, err
			}
			ec.JWT.PrivateKey = priv
			ec.JWT.PublicKey = pub
		}
	}

	ec.TOTP.Issuer = c.TOTPIssuer
	ec.TOTP.EnforceReplayProtection = c.TOTPReplayProtection

	ec.Policy.MFAEnforced = c.MFAEnforced
	ec.Policy.MFARequiredRoles = append([]string(nil), c.MFARequiredRoles...)
	ec.Policy.MFAGracePeriodDays = c.MFAGracePeriodDays
	ec.Policy.RememberDeviceDays = c.RememberDeviceDays
	ec.Policy.PasswordExpiryDays = c.PasswordExpiryDays

	ec.RateLimit.MaxLoginAttempts = c.MaxLoginAttempts
	ec.RateLimit.LoginCooldownDuration = c.LoginCooldown

	ec.Audit.Enabled = c.AuditEnabled
	ec.Sweep.AuditRetention = c.AuditRetention
	if c.AuditRetention <= 0 {
		ec.Sweep.AuditInterval = 0
	}

	ec.Metrics.Enabled = c.MetricsEnabled
	ec.Metrics.EnableLatencyHistograms = c.MetricsEnabled

	if err := ec.Validate(); err != nil {
		return ec, fmt.Errorf("config: %w", err)
	}
	return ec, nil
}

func readKey(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("config: jwt key path is required for ed25519")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read jwt key: %w", err)
	}
	return b, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
