package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gemin-erp/gemin-erp/internal/audit"
	"github.com/gemin-erp/gemin-erp/internal/auth"
	"github.com/gemin-erp/gemin-erp/internal/authz"
	"github.com/gemin-erp/gemin-erp/internal/observability"
	"github.com/gemin-erp/gemin-erp/internal/tenancy"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AuthHandler       *auth.Handler
	AuthMiddleware    auth.Middleware
	AuthzHandler      *authz.Handler
	AuthzMiddleware   authz.Middleware
	TenancyHandler    *tenancy.Handler
	TenancyMiddleware tenancy.Middleware
	AuditHandler      *audit.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router.
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

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(params.AuthMiddleware.Authenticate)
		r.Use(params.TenancyMiddleware.ResolveFactory)

		r.Route("/authz", func(r chi.Router) {
			params.AuthzHandler.MountRoutes(r)
			if params.AuditHandler != nil {
				r.Route("/audit", func(r chi.Router) {
					r.Use(params.AuthzMiddleware.Require("AUDIT_READ"))
					params.AuditHandler.MountRoutes(r)
				})
			}
		})
		r.Route("/tenancy", func(r chi.Router) {
			params.TenancyHandler.MountRoutes(r)
		})
	})

	return r
}
