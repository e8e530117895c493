package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/watchplus/watchplus/internal/accounts"
	"github.com/watchplus/watchplus/internal/adminlog"
	"github.com/watchplus/watchplus/internal/auth"
	"github.com/watchplus/watchplus/internal/blocklist"
	"github.com/watchplus/watchplus/internal/observability"
	"github.com/watchplus/watchplus/internal/platform/httpx"
	"github.com/watchplus/watchplus/internal/reports"
	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/shared"
	"github.com/watchplus/watchplus/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	RolesMiddleware  roles.Middleware
	AuthHandler      *auth.Handler
	AccountsHandler  *accounts.Handler
	AdminLogHandler  *adminlog.Handler
	BlocklistHandler *blocklist.Handler
	ReportsHandler   *reports.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with platform defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.RolesMiddleware.WithCaller)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Clients fetch the CSRF token here and echo it back in the
	// X-CSRF-Token header on mutations.
	r.Get("/auth/csrf", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		token, err := params.CSRFManager.EnsureToken(r.Context(), sess)
		if err != nil {
			params.Logger.Error("issue csrf token", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"csrfToken": token})
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/reports", params.ReportsHandler.MountRoutes)
	r.Route("/admin", func(r chi.Router) {
		r.Route("/users", params.AccountsHandler.MountRoutes)
		r.Route("/logs", params.AdminLogHandler.MountRoutes)
		r.Route("/blocked-domains", params.BlocklistHandler.MountRoutes)
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
