package authz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gemin-erp/gemin-erp/internal/shared"
)

func guardedRequest(identity Identity, current string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := ContextWithIdentity(r.Context(), identity)
	if current != "" {
		ctx = shared.ContextWithRequestContext(ctx, &shared.RequestContext{
			UserID:          identity.User.ID,
			ResolvedCurrent: current,
		})
	}
	return r.WithContext(ctx)
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestRequireCurrentFactoryAllowsResolvedFactory(t *testing.T) {
	identity := Identity{
		User:    User{ID: 1, IsActive: true},
		Entries: []Entry{{Code: "TENANCY_READ", Scope: ScopeFactory, ScopeID: strPtr("F2")}},
	}
	next, called := okHandler()
	guard := Middleware{}.RequireCurrentFactory("TENANCY_READ")(next)

	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, guardedRequest(identity, "F2"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, *called)
}

func TestRequireCurrentFactoryDeniesOtherFactory(t *testing.T) {
	identity := Identity{
		User:    User{ID: 1, IsActive: true},
		Entries: []Entry{{Code: "TENANCY_READ", Scope: ScopeFactory, ScopeID: strPtr("F2")}},
	}
	next, called := okHandler()
	guard := Middleware{}.RequireCurrentFactory("TENANCY_READ")(next)

	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, guardedRequest(identity, "F1"))

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.False(t, *called)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "TENANCY_READ", body["permission"])
	require.Equal(t, "FACTORY", body["scope"])
}

func TestRequireCurrentFactoryUnpinnedGrantCoversAny(t *testing.T) {
	identity := Identity{
		User:    User{ID: 1, IsActive: true},
		Entries: []Entry{{Code: "TENANCY_READ", Scope: ScopeFactory}},
	}
	next, called := okHandler()
	guard := Middleware{}.RequireCurrentFactory("TENANCY_READ")(next)

	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, guardedRequest(identity, "F7"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, *called)
}

func TestRequireCurrentFactoryWithoutRequestContext(t *testing.T) {
	// No resolved factory means the check runs against the empty instance id;
	// only GLOBAL or unpinned grants pass.
	identity := Identity{
		User:    User{ID: 1, IsActive: true},
		Entries: []Entry{{Code: "TENANCY_READ", Scope: ScopeFactory, ScopeID: strPtr("F2")}},
	}
	next, called := okHandler()
	guard := Middleware{}.RequireCurrentFactory("TENANCY_READ")(next)

	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, guardedRequest(identity, ""))

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.False(t, *called)
}

func TestRequireWithoutIdentity(t *testing.T) {
	next, called := okHandler()
	guard := Middleware{}.Require("AUTHZ_READ")(next)

	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, *called)
}
