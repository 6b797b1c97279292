package tenancy

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gemin-erp/gemin-erp/internal/authz"
	"github.com/gemin-erp/gemin-erp/internal/observability"
	"github.com/gemin-erp/gemin-erp/internal/platform/httpx"
	"github.com/gemin-erp/gemin-erp/internal/shared"
)

// FactoryHeader carries the requested factory id.
const FactoryHeader = "X-Factory-Id"

// Middleware resolves the requested factory for every tenant-scoped request
// and installs the immutable per-request authorization context.
type Middleware struct {
	Logger  *slog.Logger
	Service *Service
	Metrics *observability.Metrics
}

// ResolveFactory builds the shared.RequestContext from the authenticated
// identity plus the X-Factory-Id header (fallback factory_id query parameter,
// default "all"). Requests addressing a disallowed factory stop here with 403.
func (m Middleware) ResolveFactory(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := authz.IdentityFromContext(r.Context())
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing credentials")
			return
		}

		requested := strings.TrimSpace(r.Header.Get(FactoryHeader))
		if requested == "" {
			requested = strings.TrimSpace(r.URL.Query().Get("factory_id"))
		}

		access, err := m.Service.Resolve(r.Context(), identity.User.ID, requested)
		if err != nil {
			if errors.Is(err, shared.ErrScopeViolation) {
				if m.Metrics != nil {
					m.Metrics.ScopeViolation()
				}
				if m.Logger != nil {
					m.Logger.Warn("factory scope violation",
						slog.Int64("user_id", identity.User.ID),
						slog.String("requested", requested))
				}
				httpx.FactoryDenied(w, requested)
				return
			}
			if m.Logger != nil {
				m.Logger.Error("resolve factory access", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}

		rc := &shared.RequestContext{
			UserID:            identity.User.ID,
			CompanyID:         identity.User.CompanyID,
			AccessLevel:       identity.User.AccessLevel,
			PrimaryRole:       identity.User.RoleCode,
			SuperAdmin:        identity.SuperAdmin,
			AllowedFactoryIDs: access.AllowedFactoryIDs(),
			ResolvedCurrent:   access.Current(),
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithRequestContext(r.Context(), rc)))
	})
}
