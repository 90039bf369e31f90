// Package settings caches the organization security policy row.
package settings

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/onboardAuth/internal/store"
)

// DefaultTTL is how long a loaded policy is served before the row is re-read.
const DefaultTTL = time.Minute

// Policy is the organization-wide MFA and password policy.
type Policy struct {
	MFAEnforced        bool      `json:"mfaEnforced"`
	MFARequiredRoles   []string  `json:"mfaRequiredRoles"`
	MFAGracePeriodDays int       `json:"mfaGracePeriodDays"`
	RememberDeviceDays int       `json:"rememberDeviceDays"`
	PasswordExpiryDays int       `json:"passwordExpiryDays"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// RequiresMFA reports whether an account with role must use MFA.
func (p Policy) RequiresMFA(role string) bool {
	return p.MFAEnforced || slices.Contains(p.MFARequiredRoles, role)
}

// InGracePeriod reports whether an account created at createdAt may still
// postpone enrollment.
func (p Policy) InGracePeriod(createdAt, now time.Time) bool {
	if p.MFAGracePeriodDays <= 0 || createdAt.IsZero() {
		return false
	}
	return now.Before(createdAt.Add(time.Duration(p.MFAGracePeriodDays) * 24 * time.Hour))
}

// Validate rejects negative day counts.
func (p Policy) Validate() error {
	if p.MFAGracePeriodDays < 0 || p.RememberDeviceDays < 0 || p.PasswordExpiryDays < 0 {
		return errors.New("settings: day counts must be >= 0")
	}
	for _, r := range p.MFARequiredRoles {
		if strings.Contains(r, ",") {
			return errors.New("settings: role names must not contain commas")
		}
	}
	return nil
}

// Backend is the persistence the cache reads through.
type Backend interface {
	LoadSettings(ctx context.Context) (*store.Settings, error)
	SaveSettings(ctx context.Context, in store.Settings) error
}

// Cache serves the policy from memory for ttl and falls back to defaults
// while no row has been saved.
type Cache struct {
	backend  Backend
	defaults Policy
	ttl      time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	cached   Policy
	loadedAt time.Time
	valid    bool

	// gen advances on every invalidation. A load started under an older
	// generation is returned to its caller but not cached.
	gen uint64
}

// NewCache returns a Cache. ttl <= 0 uses DefaultTTL.
func NewCache(backend Backend, defaults Policy, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{backend: backend, defaults: clonePolicy(defaults), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the current policy.
func (c *Cache) Get(ctx context.Context) (Policy, error) {
	now := c.now()
	c.mu.RLock()
	if c.valid && now.Sub(c.loadedAt) < c.ttl {
		p := clonePolicy(c.cached)
		c.mu.RUnlock()
		return p, nil
	}
	gen := c.gen
	c.mu.RUnlock()

	p, err := c.load(ctx)
	if err != nil {
		return Policy{}, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.cached = p
		c.loadedAt = now
		c.valid = true
	}
	c.mu.Unlock()
	return clonePolicy(p), nil
}

// Update persists p and invalidates the cache.
func (c *Cache) Update(ctx context.Context, p Policy) (Policy, error) {
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	p.UpdatedAt = c.now().UTC()
	p.MFARequiredRoles = normalizeRoles(p.MFARequiredRoles)
	if err := c.backend.SaveSettings(ctx, toRow(p)); err != nil {
		return Policy{}, err
	}
	c.Invalidate()
	return p, nil
}

// Invalidate forces the next Get to re-read the row.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.gen++
	c.mu.Unlock()
}

func (c *Cache) load(ctx context.Context) (Policy, error) {
	row, err := c.backend.LoadSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return clonePolicy(c.defaults), nil
	}
	if err != nil {
		return Policy{}, err
	}
	return fromRow(row), nil
}

func toRow(p Policy) store.Settings {
	return store.Settings{
		MFAEnforced:        p.MFAEnforced,
		MFARequiredRoles:   strings.Join(p.MFARequiredRoles, ","),
		MFAGracePeriodDays: p.MFAGracePeriodDays,
		RememberDeviceDays: p.RememberDeviceDays,
		PasswordExpiryDays: p.PasswordExpiryDays,
		UpdatedAt:          store.Millis(p.UpdatedAt),
	}
}

func fromRow(r *store.Settings) Policy {
	return Policy{
		MFAEnforced:        r.MFAEnforced,
		MFARequiredRoles:   normalizeRoles(strings.Split(r.MFARequiredRoles, ",")),
		MFAGracePeriodDays: r.MFAGracePeriodDays,
		RememberDeviceDays: r.RememberDeviceDays,
		PasswordExpiryDays: r.PasswordExpiryDays,
		UpdatedAt:          store.Time(r.UpdatedAt),
	}
}

func normalizeRoles(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r != "" && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

func clonePolicy(p Policy) Policy {
	p.MFARequiredRoles = slices.Clone(p.MFARequiredRoles)
	return p
}
