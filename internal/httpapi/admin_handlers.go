package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	onboardAuth "github.com/MrEthical07/onboardAuth"
	"github.com/MrEthical07/onboardAuth/middleware"
)

// GetSecuritySettings handles GET /admin/security-settings.
func (h *Handler) GetSecuritySettings(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.Policy(r.Context())
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// UpdateSecuritySettings handles PUT /admin/security-settings.
func (h *Handler) UpdateSecuritySettings(w http.ResponseWriter, r *http.Request) {
	var p onboardAuth.SecurityPolicy
	if err := decode(r, &p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	saved, err := h.engine.UpdatePolicy(r.Context(), p)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	caller, _ := middleware.CallerFromContext(r.Context())
	h.logger.Info("security settings updated",
		zap.String("account_id", caller.AccountID),
		zap.Bool("mfa_enforced", saved.MFAEnforced),
		zap.Int("password_expiry_days", saved.PasswordExpiryDays))
	respondJSON(w, http.StatusOK, saved)
}

// CreateAccount handles POST /admin/accounts. Only Admins may create Admins.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())
	var req onboardAuth.CreateAccountRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role == onboardAuth.RoleAdmin && caller.Role != onboardAuth.RoleAdmin {
		h.respondEngineError(w, r, onboardAuth.ErrPermissionDenied)
		return
	}
	acct, err := h.engine.CreateAccount(r.Context(), req)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, acct)
}

// GetAccount handles GET /admin/accounts/{accountID}.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.engine.GetAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acct)
}
