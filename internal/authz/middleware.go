package authz

import (
	"log/slog"
	"net/http"

	"github.com/gemin-erp/gemin-erp/internal/observability"
	"github.com/gemin-erp/gemin-erp/internal/platform/httpx"
	"github.com/gemin-erp/gemin-erp/internal/shared"
)

// Middleware wires authorization guards for HTTP handlers. Guards read the
// identity evaluated by the authentication middleware; they never look grants
// up themselves.
type Middleware struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Require ensures the caller holds the permission at GLOBAL scope.
func (m Middleware) Require(code string) func(http.Handler) http.Handler {
	return m.require(code, func(*http.Request) (Scope, string) {
		return ScopeGlobal, ""
	})
}

// RequireCurrentFactory ensures the caller holds the permission at FACTORY
// scope for the factory the request resolved to.
func (m Middleware) RequireCurrentFactory(code string) func(http.Handler) http.Handler {
	return m.require(code, func(r *http.Request) (Scope, string) {
		if rc := shared.RequestContextFrom(r.Context()); rc != nil {
			return ScopeFactory, rc.ResolvedCurrent
		}
		return ScopeFactory, ""
	})
}

func (m Middleware) require(code string, at func(*http.Request) (Scope, string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing credentials")
				return
			}
			scope, scopeID := at(r)
			if identity.Allows(code, scope, scopeID) {
				m.observe("allow")
				next.ServeHTTP(w, r)
				return
			}
			m.observe("deny")
			if m.Logger != nil {
				m.Logger.Warn("permission denied",
					slog.Int64("user_id", identity.User.ID),
					slog.String("permission", code),
					slog.String("scope", string(scope)))
			}
			httpx.PermissionDenied(w, code, string(scope))
		})
	}
}

func (m Middleware) observe(decision string) {
	if m.Metrics != nil {
		m.Metrics.AuthzDecision(decision)
	}
}
