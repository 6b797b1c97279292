package tenancy

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gemin-erp/gemin-erp/internal/authz"
	"github.com/gemin-erp/gemin-erp/internal/platform/httpx"
	"github.com/gemin-erp/gemin-erp/internal/shared"
)

// Handler exposes factory access resolution and administration.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    authz.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validate: validator.New()}
}

// MountRoutes registers tenancy routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/access", h.currentAccess)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireCurrentFactory("TENANCY_READ"))
		r.Get("/factories/current", h.currentFactory)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require("TENANCY_UPDATE"))
		r.Post("/users/{userID}/factories", h.grantAccess)
		r.Delete("/users/{userID}/factories/{factoryID}", h.revokeAccess)
	})
}

// currentAccess reports the caller's resolved factory set. The resolution
// already happened in the middleware; this just echoes the request context.
func (h *Handler) currentAccess(w http.ResponseWriter, r *http.Request) {
	rc := shared.RequestContextFrom(r.Context())
	if rc == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing credentials")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"allowed_factory_ids": rc.AllowedFactoryIDs,
		"resolved_current":    rc.ResolvedCurrent,
		"access_level":        rc.AccessLevel,
	})
}

// currentFactory returns the factory the request resolved to. A request still
// carrying the "all" sentinel has no single factory to describe.
func (h *Handler) currentFactory(w http.ResponseWriter, r *http.Request) {
	rc := shared.RequestContextFrom(r.Context())
	if rc == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing credentials")
		return
	}
	if rc.ResolvedCurrent == AllFactories {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "no specific factory requested")
		return
	}
	factory, err := h.service.Factory(r.Context(), rc.ResolvedCurrent)
	if err != nil {
		h.fail(w, "current factory", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":         factory.ID,
		"name":       factory.Name,
		"company_id": factory.CompanyID,
	})
}

type grantAccessRequest struct {
	FactoryID string `json:"factory_id" validate:"required"`
	Role      string `json:"role" validate:"required"`
}

func (h *Handler) grantAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req grantAccessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.GrantAccess(r.Context(), userID, req.FactoryID, req.Role); err != nil {
		h.fail(w, "grant factory access", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	factoryID := strings.TrimSpace(chi.URLParam(r, "factoryID"))
	if factoryID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid factory id")
		return
	}
	if err := h.service.RevokeAccess(r.Context(), userID, factoryID); err != nil {
		h.fail(w, "revoke factory access", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
