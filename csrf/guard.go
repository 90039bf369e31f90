package csrf

import (
	"context"
	"crypto/subtle"
	"errors"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/MrEthical07/onboardAuth/internal"
	"github.com/MrEthical07/onboardAuth/session"
)

const (
	// DefaultHeaderName carries the token on state-changing requests.
	DefaultHeaderName = "X-CSRF-Token"
	// DefaultCookieName is the session cookie whose presence makes a request cookie-borne.
	DefaultCookieName = "portal_session"

	tokenBytes = 32
)

var (
	ErrNoSession     = errors.New("csrf: no session")
	ErrMissingToken  = errors.New("csrf: missing token")
	ErrTokenMismatch = errors.New("csrf: token mismatch")
)

// SessionStore is the subset of the session manager the guard needs.
type SessionStore interface {
	Load(ctx context.Context, id string) (*session.Session, error)
	Update(ctx context.Context, id string, attrs map[string]string) error
}

// Config lists the header, cookie and exempt routes. Patterns are exact paths
// or a prefix ending in "/*". UploadPatterns are exempt only for
// multipart/form-data bodies.
type Config struct {
	HeaderName     string
	CookieName     string
	ExemptPatterns []string
	UploadPatterns []string
}

// DefaultConfig returns the portal's exemption set.
func DefaultConfig() Config {
	return Config{
		HeaderName: DefaultHeaderName,
		CookieName: DefaultCookieName,
		ExemptPatterns: []string{
			"/login",
			"/logout",
			"/auth/token",
			"/password/expired",
			"/mfa/*",
		},
		UploadPatterns: []string{"/uploads/*"},
	}
}

// Guard issues and verifies anti-forgery tokens.
type Guard struct {
	store  SessionStore
	cfg    Config
	logger *zap.Logger
}

// NewGuard returns a Guard. Empty header and cookie names fall back to the defaults.
func NewGuard(store SessionStore, cfg Config, logger *zap.Logger) *Guard {
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{store: store, cfg: cfg, logger: logger}
}

// Issue generates a fresh token, stores it in the session and returns it.
// Each call rotates the token.
func (g *Guard) Issue(ctx context.Context, sessionID string) (string, error) {
	s, err := g.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", ErrNoSession
		}
		return "", err
	}
	token, err := internal.NewToken(tokenBytes)
	if err != nil {
		return "", err
	}
	s.Set(session.AttrCSRFToken, token)
	if err := g.store.Update(ctx, s.ID, s.Attributes); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", ErrNoSession
		}
		return "", err
	}
	return token, nil
}

// Verify checks r against the stored token. It returns nil for requests
// that do not need a token.
func (g *Guard) Verify(r *http.Request) error {
	if !g.Required(r) {
		return nil
	}
	cookie, err := r.Cookie(g.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return ErrNoSession
	}
	s, err := g.store.Load(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrNoSession
		}
		return err
	}
	sent := r.Header.Get(g.cfg.HeaderName)
	if sent == "" {
		return ErrMissingToken
	}
	stored := s.Get(session.AttrCSRFToken)
	if stored == "" || subtle.ConstantTimeCompare([]byte(sent), []byte(stored)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}

// Required reports whether r must carry a token.
func (g *Guard) Required(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	if g.bearerOnly(r) {
		return false
	}
	path := r.URL.Path
	if matchAny(g.cfg.ExemptPatterns, path) {
		return false
	}
	if matchAny(g.cfg.UploadPatterns, path) && isMultipart(r) {
		return false
	}
	return true
}

// Middleware rejects requests failing Verify with 403.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.Verify(r); err != nil {
			if !errors.Is(err, ErrNoSession) && !errors.Is(err, ErrMissingToken) && !errors.Is(err, ErrTokenMismatch) {
				g.logger.Error("csrf verification failed", zap.Error(err), zap.String("path", r.URL.Path))
			} else {
				g.logger.Debug("csrf rejected", zap.Error(err), zap.String("path", r.URL.Path))
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"invalid csrf token"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerOnly is true for requests that carry an Authorization bearer token and
// no session cookie; a browser cannot attach that header cross-site.
func (g *Guard) bearerOnly(r *http.Request) bool {
	if _, err := r.Cookie(g.cfg.CookieName); err == nil {
		return false
	}
	auth := r.Header.Get("Authorization")
	return len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ")
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}
