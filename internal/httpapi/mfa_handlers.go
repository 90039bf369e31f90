package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	onboardAuth "github.com/MrEthical07/onboardAuth"
	"github.com/MrEthical07/onboardAuth/middleware"
)

// StartMFASetup handles POST /mfa/setup.
func (h *Handler) StartMFASetup(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())
	setup, err := h.engine.StartMFASetup(r.Context(), caller.AccountID)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, setup)
}

type restartRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RestartMFASetup handles POST /mfa/setup/restart. The caller is identified by
// the session cookie or, failing that, by email and password.
func (h *Handler) RestartMFASetup(w http.ResponseWriter, r *http.Request) {
	var req restartRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	setup, err := h.engine.RestartMFASetup(r.Context(), onboardAuth.RestartRequest{
		SessionID: h.sessionID(r),
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, setup)
}

type verifySetupRequest struct {
	SetupSessionID string `json:"setupSessionId"`
	Code           string `json:"code"`
}

// VerifyMFASetup handles POST /mfa/setup/verify. A pre-session is swapped for
// a full session cookie on success.
func (h *Handler) VerifyMFASetup(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())
	var req verifySetupRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.engine.VerifyMFASetup(r.Context(), caller.AccountID, req.SetupSessionID, req.Code, caller.SessionID)
	if err != nil {
		switch {
		case onboardAuth.ErrorKind(err) == onboardAuth.KindUnavailable:
			h.respondEngineError(w, r, err)
		case errors.Is(err, onboardAuth.ErrMFASetupExpired):
			respondJSON(w, http.StatusGone, map[string]bool{"expired": true})
		case errors.Is(err, onboardAuth.ErrMFACodeInvalid):
			respondJSON(w, http.StatusBadRequest, map[string]bool{"invalid": true})
		default:
			h.respondEngineError(w, r, err)
		}
		return
	}

	if res.SessionID != "" {
		h.setSessionCookie(w, res.SessionID, res.SessionExpires)
	}
	respondJSON(w, http.StatusOK, map[string][]string{"backupCodes": res.BackupCodes})
}

type codeRequest struct {
	Code string `json:"code"`
}

// RegenerateBackupCodes handles POST /mfa/backup-codes/regenerate.
func (h *Handler) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())
	var req codeRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	codes, err := h.engine.RegenerateBackupCodes(r.Context(), caller.AccountID, req.Code)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"backupCodes": codes})
}

// BackupCodesRemaining handles GET /mfa/backup-codes.
func (h *Handler) BackupCodesRemaining(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())
	n, err := h.engine.BackupCodesRemaining(r.Context(), caller.AccountID)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"remaining": n})
}

// DisableMFA handles POST /mfa/disable.
func (h *Handler) DisableMFA(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())
	var req codeRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.engine.DisableMFA(r.Context(), caller.AccountID, req.Code); err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetMFA handles POST /mfa/reset/{accountID}.
func (h *Handler) ResetMFA(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ResetMFA(r.Context(), chi.URLParam(r, "accountID")); err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
