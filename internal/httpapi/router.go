// Package httpapi serves the portal's authentication routes over chi.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	onboardAuth "github.com/MrEthical07/onboardAuth"
	"github.com/MrEthical07/onboardAuth/csrf"
	"github.com/MrEthical07/onboardAuth/middleware"
)

// Options configures the router. Zero values get defaults.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	// CSRF overrides the exemption set. The cookie name always follows the
	// engine's session cookie.
	CSRF *csrf.Config
}

// Handler holds the dependencies shared by every route.
type Handler struct {
	engine *onboardAuth.Engine
	csrf   *csrf.Guard
	cfg    onboardAuth.Config
	logger *zap.Logger
}

// NewRouter creates the chi router with the middleware stack and all routes.
func NewRouter(engine *onboardAuth.Engine, opts Options, logger *zap.Logger) chi.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"https://*"}
	}

	cfg := engine.Config()
	csrfCfg := csrf.DefaultConfig()
	if opts.CSRF != nil {
		csrfCfg = *opts.CSRF
	}
	csrfCfg.CookieName = cfg.Session.CookieName

	h := &Handler{
		engine: engine,
		csrf:   csrf.NewGuard(engine.Sessions(), csrfCfg, logger.Named("csrf")),
		cfg:    cfg,
		logger: logger.Named("http"),
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(LoggerMiddleware(h.logger))
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(opts.RequestTimeout))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", csrfCfg.HeaderName},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.ClientInfo)
	router.Use(h.csrf.Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	router.Post("/login", h.Login)
	router.Post("/logout", h.Logout)
	router.Post("/password/expired", h.ChangeExpiredPassword)
	router.Post("/mfa/setup/restart", h.RestartMFASetup)

	// Enrollment accepts the MFA pre-session.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Guard(engine, middleware.ModeSetup))
		r.Post("/mfa/setup", h.StartMFASetup)
		r.Post("/mfa/setup/verify", h.VerifyMFASetup)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Guard(engine, middleware.ModeFull))
		r.Get("/me", h.Me)
		r.Get("/csrf-token", h.CSRFToken)
		r.Post("/password/change", h.ChangePassword)
		r.Post("/mfa/disable", h.DisableMFA)
		r.Get("/mfa/backup-codes", h.BackupCodesRemaining)
		r.Post("/mfa/backup-codes/regenerate", h.RegenerateBackupCodes)
		r.Post("/logout/all", h.LogoutAll)

		r.With(middleware.RequirePermission(engine, onboardAuth.PermMFAReset)).
			Post("/mfa/reset/{accountID}", h.ResetMFA)

		r.Route("/admin", func(r chi.Router) {
			r.With(middleware.RequirePermission(engine, onboardAuth.PermSettingsRead)).
				Get("/security-settings", h.GetSecuritySettings)
			r.With(middleware.RequirePermission(engine, onboardAuth.PermSettingsWrite)).
				Put("/security-settings", h.UpdateSecuritySettings)
			r.With(middleware.RequirePermission(engine, onboardAuth.PermAccountsCreate)).
				Post("/accounts", h.CreateAccount)
			r.With(middleware.RequirePermission(engine, onboardAuth.PermAccountsRead)).
				Get("/accounts/{accountID}", h.GetAccount)
		})
	})

	// Tokens are minted from a browser session only.
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(engine))
		r.Use(middleware.RequirePermission(engine, onboardAuth.PermSessionsTokenUse))
		r.Post("/auth/token", h.IssueToken)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "endpoint not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return router
}

// LoggerMiddleware logs each request after it completes.
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("http request",
					zap.String("request_id", chimw.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
