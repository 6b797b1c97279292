package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gemin-erp/gemin-erp/internal/authz"
	"github.com/gemin-erp/gemin-erp/internal/platform/httpx"
)

// Middleware authenticates bearer tokens and evaluates the caller's identity.
type Middleware struct {
	Logger    *slog.Logger
	Service   *Service
	Evaluator *authz.Service
}

// Authenticate resolves the Authorization header to an evaluated identity and
// stores it in the request context. Requests without a valid token stop here
// with 401.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		claims, err := m.Service.LookupToken(r.Context(), token)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		identity, err := m.Evaluator.IdentityFor(r.Context(), claims.UserID)
		if err != nil {
			// Token valid but user gone or store unavailable; fail closed.
			if m.Logger != nil {
				m.Logger.Error("evaluate identity", slog.Any("error", err), slog.Int64("user_id", claims.UserID))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "unknown identity")
			return
		}
		if !identity.User.IsActive {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "account disabled")
			return
		}
		next.ServeHTTP(w, r.WithContext(authz.ContextWithIdentity(r.Context(), identity)))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
