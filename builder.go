package onboardAuth

import (
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/onboardAuth/internal/audit"
	"github.com/MrEthical07/onboardAuth/internal/rate"
	"github.com/MrEthical07/onboardAuth/internal/settings"
	"github.com/MrEthical07/onboardAuth/internal/store"
	"github.com/MrEthical07/onboardAuth/jwt"
	"github.com/MrEthical07/onboardAuth/password"
	"github.com/MrEthical07/onboardAuth/permission"
	"github.com/MrEthical07/onboardAuth/revocation"
	"github.com/MrEthical07/onboardAuth/session"
)

// Builder assembles an [Engine]. A Builder can be used for one Build only.
type Builder struct {
	config Config
	db     *sqlx.DB
	redis  redis.UniversalClient
	logger *zap.Logger
	now    func() time.Time

	permissions []string
	roles       map[string][]string

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig] and the portal's default
// permission set.
func New() *Builder {
	return &Builder{
		config:      defaultConfig(),
		permissions: append([]string(nil), DefaultPermissions...),
		roles:       cloneRoles(DefaultRolePermissions),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithDB sets the migrated relational database. Required.
func (b *Builder) WithDB(db *sqlx.DB) *Builder {
	b.db = db
	return b
}

// WithRedis enables the login and MFA attempt limiters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go. When unset and auditing is
// enabled, MFA events are persisted to the mfa_audit table.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithPermissions replaces the permission names.
func (b *Builder) WithPermissions(perms []string) *Builder {
	b.permissions = perms
	return b
}

// WithRoles replaces the role to permission mapping.
func (b *Builder) WithRoles(r map[string][]string) *Builder {
	b.roles = r
	return b
}

// WithClock replaces the time source of every component. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.db == nil {
		return nil, errors.New("database required")
	}
	if len(b.permissions) == 0 {
		return nil, errors.New("permissions must be provided")
	}
	if len(b.roles) == 0 {
		return nil, errors.New("roles must be provided")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- PERMISSION REGISTRY --------
	registry := permission.NewRegistry()
	for _, p := range b.permissions {
		if _, err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	// -------- ROLE MANAGER --------
	roleManager := permission.NewRoleManager(registry)
	for roleName, permList := range b.roles {
		if !validRole(roleName) {
			return nil, errors.New("roles contain a name outside the portal role set")
		}
		if err := roleManager.RegisterRole(roleName, permList); err != nil {
			return nil, err
		}
	}
	roleManager.Freeze()

	// -------- STORES --------
	st := store.New(b.db)

	engine := &Engine{
		config:      cloneConfig(cfg),
		logger:      logger.Named("onboardauth"),
		store:       st,
		sessions:    session.NewManager(b.db).WithClock(now),
		registry:    registry,
		roleManager: roleManager,
		metrics:     NewMetrics(cfg.Metrics),
		totp:        newTOTPManager(cfg.TOTP),
		now:         now,
	}

	engine.policy = settings.NewCache(st, settings.Policy{
		MFAEnforced:        cfg.Policy.MFAEnforced,
		MFARequiredRoles:   cfg.Policy.MFARequiredRoles,
		MFAGracePeriodDays: cfg.Policy.MFAGracePeriodDays,
		RememberDeviceDays: cfg.Policy.RememberDeviceDays,
		PasswordExpiryDays: cfg.Policy.PasswordExpiryDays,
	}, cfg.Policy.CacheTTL).WithClock(now)

	if b.redis != nil {
		engine.loginLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:      cfg.RateLimit.EnableIPThrottle,
			MaxLoginAttempts:      cfg.RateLimit.MaxLoginAttempts,
			LoginCooldownDuration: cfg.RateLimit.LoginCooldownDuration,
		})
		engine.mfaLimiter = rate.NewMFALimiter(b.redis, rate.MFAConfig{
			MaxAttempts: cfg.RateLimit.MaxMFAAttempts,
			Cooldown:    cfg.RateLimit.MFACooldownDuration,
		})
	}

	sink := b.auditSink
	if sink == nil {
		sink = store.NewAuditSink(st, logger)
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
	}, sink, logger.Named("audit"))

	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.passwordHash = ph

	// Unknown emails are verified against this hash so both paths cost the same.
	dummy, err := ph.Hash("onboard-dummy-password")
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.dummyHash = dummy

	if cfg.JWT.Enabled {
		jm, err := jwt.NewManager(jwt.Config{
			AccessTTL:     cfg.JWT.AccessTTL,
			SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
			PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
			PublicKey:     cloneBytes(cfg.JWT.PublicKey),
			Issuer:        cfg.JWT.Issuer,
			Audience:      cfg.JWT.Audience,
			Leeway:        cfg.JWT.Leeway,
			KeyID:         cfg.JWT.KeyID,
		})
		if err != nil {
			engine.Close()
			return nil, err
		}
		engine.jwtManager = jm.WithClock(now)
	}

	// Only tokens this engine signed can be blacklisted.
	var verifier revocation.Verifier
	if engine.jwtManager != nil {
		verifier = engine.jwtManager
	}
	engine.revocations = revocation.NewRegistry(b.db, verifier).WithClock(now)

	b.built = true

	return engine, nil
}

func cloneRoles(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
