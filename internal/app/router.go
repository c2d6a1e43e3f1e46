package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/modgate/modgate/internal/admission"
	audithttp "github.com/modgate/modgate/internal/audit/http"
	"github.com/modgate/modgate/internal/auth"
	"github.com/modgate/modgate/internal/observability"
	"github.com/modgate/modgate/internal/policy"
	"github.com/modgate/modgate/internal/rbac"
	"github.com/modgate/modgate/internal/shared"
	"github.com/modgate/modgate/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthMiddleware   auth.Middleware
	RBACMiddleware   rbac.Middleware
	AuthHandler      *auth.Handler
	RBACHandler      *rbac.Handler
	PolicyHandler    *policy.Handler
	AdmissionHandler *admission.Handler
	AuditHandler     *audithttp.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router for the admin API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.RequireToken)
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.RBACHandler != nil {
			r.Route("/rbac", params.RBACHandler.MountRoutes)
		}
		if params.PolicyHandler != nil {
			r.Route("/security", params.PolicyHandler.MountRoutes)
		}
		if params.AdmissionHandler != nil {
			r.Route("/admission", params.AdmissionHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireAny(shared.PermAuditView, shared.PermAuditExport))
				params.AuditHandler.MountRoutes(r)
			})
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
