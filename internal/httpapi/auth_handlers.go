package httpapi

import (
	"errors"
	"net/http"
	"time"

	onboardAuth "github.com/MrEthical07/onboardAuth"
	"github.com/MrEthical07/onboardAuth/csrf"
	"github.com/MrEthical07/onboardAuth/middleware"
)

type loginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	MFACode        string `json:"mfaCode"`
	RememberDevice bool   `json:"rememberDevice"`
}

type loginResponse struct {
	Status          string               `json:"status"`
	Account         *onboardAuth.Account `json:"account,omitempty"`
	SetupToken      string               `json:"setupToken,omitempty"`
	ExpiresAt       time.Time            `json:"expiresAt,omitzero"`
	Token           string               `json:"token,omitempty"`
	TokenExpiresAt  time.Time            `json:"tokenExpiresAt,omitzero"`
	MFASetupPending bool                 `json:"mfaSetupPending,omitempty"`
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.engine.Login(r.Context(), onboardAuth.LoginRequest{
		Email:          req.Email,
		Password:       req.Password,
		MFACode:        req.MFACode,
		RememberDevice: req.RememberDevice,
		SessionID:      h.sessionID(r),
	})
	if err != nil {
		switch {
		case onboardAuth.ErrorKind(err) == onboardAuth.KindUnavailable:
			h.respondEngineError(w, r, err)
		case errors.Is(err, onboardAuth.ErrInvalidCredentials):
			respondJSON(w, http.StatusUnauthorized, loginResponse{Status: "invalid_credentials"})
		case errors.Is(err, onboardAuth.ErrMFACodeInvalid):
			respondJSON(w, http.StatusUnauthorized, loginResponse{Status: "invalid_mfa_code"})
		case onboardAuth.ErrorKind(err) == onboardAuth.KindRateLimited:
			respondJSON(w, http.StatusTooManyRequests, loginResponse{Status: "rate_limited"})
		default:
			h.respondEngineError(w, r, err)
		}
		return
	}

	out := loginResponse{Status: string(res.Status)}
	switch res.Status {
	case onboardAuth.LoginSuccess:
		h.setSessionCookie(w, res.SessionID, res.SessionExpires)
		if res.Token != "" {
			h.setTokenCookie(w, res.Token, res.TokenExpires)
		}
		out.Account = res.Account
		out.ExpiresAt = res.SessionExpires
		out.Token = res.Token
		out.TokenExpiresAt = res.TokenExpires
		out.MFASetupPending = res.MFASetupPending
	case onboardAuth.LoginMFASetupRequired:
		h.setSessionCookie(w, res.SessionID, res.SessionExpires)
		out.SetupToken = res.SetupToken
		out.ExpiresAt = res.SessionExpires
	}
	respondJSON(w, http.StatusOK, out)
}

// Logout handles POST /logout. It is idempotent and always clears the cookies.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	err := h.engine.Logout(r.Context(), h.sessionID(r), h.bearer(r))
	h.clearCookies(w)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll handles POST /logout/all.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())
	token := h.bearer(r)
	if token != "" {
		if err := h.engine.RevokeToken(r.Context(), token); err != nil && onboardAuth.ErrorKind(err) == onboardAuth.KindUnavailable {
			h.respondEngineError(w, r, err)
			return
		}
	}
	n, err := h.engine.LogoutAll(r.Context(), caller.AccountID)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	h.clearCookies(w)
	respondJSON(w, http.StatusOK, map[string]int64{"sessions": n})
}

// IssueToken handles POST /auth/token.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())
	tok, err := h.engine.IssueToken(r.Context(), caller.SessionID)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	h.setTokenCookie(w, tok.Token, tok.ExpiresAt)
	respondJSON(w, http.StatusOK, tok)
}

// CSRFToken handles GET /csrf-token. Each call rotates the token.
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	sid := h.sessionID(r)
	if sid == "" {
		respondError(w, http.StatusUnauthorized, "session required")
		return
	}
	token, err := h.csrf.Issue(r.Context(), sid)
	if err != nil {
		if errors.Is(err, csrf.ErrNoSession) {
			respondError(w, http.StatusUnauthorized, "session required")
			return
		}
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

type meResponse struct {
	Account   *onboardAuth.Account `json:"account"`
	Stage     string               `json:"stage"`
	ExpiresAt time.Time            `json:"expiresAt,omitzero"`
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())
	acct, err := h.engine.GetAccount(r.Context(), caller.AccountID)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, meResponse{Account: acct, Stage: caller.Stage, ExpiresAt: caller.ExpiresAt})
}

type changePasswordRequest struct {
	Email           string `json:"email,omitempty"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword handles POST /password/change.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())
	var req changePasswordRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.engine.ChangePassword(r.Context(), caller.AccountID, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangeExpiredPassword handles POST /password/expired, used before login
// completes when the password is past its maximum age.
func (h *Handler) ChangeExpiredPassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.engine.ChangeExpiredPassword(r.Context(), req.Email, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
