package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	onboardAuth "github.com/MrEthical07/onboardAuth"
	"github.com/MrEthical07/onboardAuth/middleware"
)

const maxBodyBytes = 1 << 16

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// statusFor maps an engine error to an HTTP status and a short client message.
func statusFor(err error) (int, string) {
	kind := onboardAuth.ErrorKind(err)
	if kind == onboardAuth.KindUnavailable {
		return http.StatusServiceUnavailable, "service unavailable"
	}

	switch {
	case errors.Is(err, onboardAuth.ErrSessionNotFound), errors.Is(err, onboardAuth.ErrTokenRevoked):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, onboardAuth.ErrPermissionDenied), errors.Is(err, onboardAuth.ErrMFARequired):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, onboardAuth.ErrAccountExists), errors.Is(err, onboardAuth.ErrMFAAlreadyEnrolled):
		return http.StatusConflict, err.Error()
	}

	switch kind {
	case onboardAuth.KindAuthenticationFailure:
		return http.StatusUnauthorized, "unauthorized"
	case onboardAuth.KindExpiredArtifact:
		return http.StatusGone, err.Error()
	case onboardAuth.KindPolicyViolation:
		return http.StatusBadRequest, err.Error()
	case onboardAuth.KindNotFound:
		return http.StatusNotFound, "not found"
	case onboardAuth.KindRateLimited:
		return http.StatusTooManyRequests, "too many attempts"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	respondJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, id string, expires time.Time) {
	http.SetCookie(w, h.cookie(h.cfg.Session.CookieName, id, expires))
}

func (h *Handler) setTokenCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, h.cookie(h.cfg.Session.TokenCookieName, token, expires))
}

func (h *Handler) clearCookies(w http.ResponseWriter) {
	for _, name := range []string{h.cfg.Session.CookieName, h.cfg.Session.TokenCookieName} {
		c := h.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h *Handler) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cfg.Session.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	}
}

func (h *Handler) sessionID(r *http.Request) string {
	c, err := r.Cookie(h.cfg.Session.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// bearer returns the fallback token from the Authorization header or the token cookie.
func (h *Handler) bearer(r *http.Request) string {
	if token, ok := middleware.BearerToken(r); ok {
		return token
	}
	if c, err := r.Cookie(h.cfg.Session.TokenCookieName); err == nil {
		return c.Value
	}
	return ""
}
