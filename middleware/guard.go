package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	onboardAuth "github.com/MrEthical07/onboardAuth"
)

// Mode selects which auth stages a guard accepts.
type Mode int

const (
	// ModeFull accepts only callers that completed every login step.
	ModeFull Mode = iota
	// ModeSetup also accepts the MFA pre-session, for the enrollment routes.
	ModeSetup
)

// Source selects where a guard looks for the credential.
type Source int

const (
	// SourceAny tries the session cookie, then the bearer header, then the token cookie.
	SourceAny Source = iota
	// SourceSession accepts only the session cookie.
	SourceSession
	// SourceToken accepts only a bearer token.
	SourceToken
)

// Resolver is the part of [onboardAuth.Engine] the guards call.
type Resolver interface {
	ResolveSession(ctx context.Context, sessionID string) (*onboardAuth.Caller, error)
	ResolveToken(ctx context.Context, token string) (*onboardAuth.Caller, error)
	Config() onboardAuth.Config
}

// PermissionChecker is the part of [onboardAuth.Engine] RequirePermission calls.
type PermissionChecker interface {
	HasPermission(role, perm string) bool
}

type callerContextKey struct{}

// CallerFromContext returns the caller stored by a guard.
func CallerFromContext(ctx context.Context) (*onboardAuth.Caller, bool) {
	c, ok := ctx.Value(callerContextKey{}).(*onboardAuth.Caller)
	return c, ok && c != nil
}

// WithCaller stores c in ctx.
func WithCaller(ctx context.Context, c *onboardAuth.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, c)
}

// Guard resolves the caller from any credential source and requires the
// stages allowed by mode.
func Guard(engine Resolver, mode Mode) func(http.Handler) http.Handler {
	return guard(engine, mode, SourceAny)
}

// RequireSession accepts only a fully authenticated session cookie.
func RequireSession(engine Resolver) func(http.Handler) http.Handler {
	return guard(engine, ModeFull, SourceSession)
}

// RequireToken accepts only a bearer token.
func RequireToken(engine Resolver) func(http.Handler) http.Handler {
	return guard(engine, ModeFull, SourceToken)
}

func guard(engine Resolver, mode Mode, source Source) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			caller, err := resolve(r, engine, source)
			if err != nil {
				if onboardAuth.ErrorKind(err) == onboardAuth.KindUnavailable {
					writeError(w, http.StatusServiceUnavailable, "service unavailable")
					return
				}
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if !caller.FullyAuthenticated() && mode != ModeSetup {
				writeError(w, http.StatusForbidden, "mfa setup required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

func resolve(r *http.Request, engine Resolver, source Source) (*onboardAuth.Caller, error) {
	cfg := engine.Config()
	ctx := r.Context()

	if source == SourceAny || source == SourceSession {
		if c, err := r.Cookie(cfg.Session.CookieName); err == nil && c.Value != "" {
			return engine.ResolveSession(ctx, c.Value)
		}
		if source == SourceSession {
			return nil, onboardAuth.ErrUnauthorized
		}
	}

	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return engine.ResolveToken(ctx, token)
	}
	if source == SourceAny && cfg.Session.TokenCookieName != "" {
		if c, err := r.Cookie(cfg.Session.TokenCookieName); err == nil && c.Value != "" {
			return engine.ResolveToken(ctx, c.Value)
		}
	}
	return nil, onboardAuth.ErrUnauthorized
}

// RequirePermission rejects callers whose role lacks perm. It must run after
// a guard.
func RequirePermission(checker PermissionChecker, perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if checker == nil || !checker.HasPermission(caller.Role, perm) {
				writeError(w, http.StatusForbidden, onboardAuth.ErrPermissionDenied.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientInfo copies the client IP and user agent into the request context for
// throttling, device fingerprints and audit entries. Run it after chi's
// RealIP so RemoteAddr is the client.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := onboardAuth.WithClientIP(r.Context(), clientIP(r.RemoteAddr))
		ctx = onboardAuth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(r *http.Request) (string, bool) {
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) <= len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
