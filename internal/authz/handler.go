package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gemin-erp/gemin-erp/internal/platform/httpx"
)

// AuditPort records administrative grant changes; failures are the recorder's
// problem, never the caller's.
type AuditPort interface {
	Record(ctx context.Context, actorID int64, action string, targetUserID int64, detail map[string]any)
}

// SweepEnqueuer submits an immediate grant-expiry sweep to the job queue.
type SweepEnqueuer interface {
	EnqueueExpirySweep(ctx context.Context) (string, error)
}

// Handler exposes the authorization admin and check API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	audit    AuditPort
	sweeper  SweepEnqueuer
	guard    Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, auditLog AuditPort, sweeper SweepEnqueuer, guard Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		audit:    auditLog,
		sweeper:  sweeper,
		guard:    guard,
		validate: validator.New(),
	}
}

// MountRoutes registers authorization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require("AUTHZ_READ"))
		r.Get("/permissions", h.listPermissions)
		r.Get("/users/{userID}/permissions", h.effectivePermissions)
		r.Post("/check", h.check)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require("AUTHZ_UPDATE"))
		r.Post("/users/{userID}/roles", h.grantRole)
		r.Delete("/users/{userID}/roles/{roleID}", h.revokeRole)
		r.Post("/users/{userID}/overrides", h.grantOverride)
		r.Delete("/users/{userID}/overrides", h.revokeOverride)
		r.Post("/sweep", h.enqueueSweep)
	})
}

type grantRoleRequest struct {
	RoleID     int64      `json:"role_id" validate:"required"`
	Scope      string     `json:"scope" validate:"required"`
	ScopeID    *string    `json:"scope_id"`
	ValidUntil *time.Time `json:"valid_until"`
}

func (h *Handler) grantRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req grantRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	scope, err := ParseScope(req.Scope)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.GrantRole(r.Context(), userID, req.RoleID, scope, req.ScopeID, req.ValidUntil); err != nil {
		h.fail(w, r, "grant role", err)
		return
	}
	h.record(r, "authz.role.grant", userID, map[string]any{
		"role_id": req.RoleID,
		"scope":   req.Scope,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	userID, okUser := pathID(r, "userID")
	roleID, okRole := pathID(r, "roleID")
	if !okUser || !okRole {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid path parameters")
		return
	}
	scope, err := ParseScope(queryDefault(r, "scope", string(ScopeGlobal)))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	scopeID := optionalQuery(r, "scope_id")
	if err := h.service.RevokeRole(r.Context(), userID, roleID, scope, scopeID); err != nil {
		h.fail(w, r, "revoke role", err)
		return
	}
	h.record(r, "authz.role.revoke", userID, map[string]any{
		"role_id": roleID,
		"scope":   string(scope),
	})
	w.WriteHeader(http.StatusNoContent)
}

type overrideRequest struct {
	Permission string     `json:"permission" validate:"required"`
	Granted    *bool      `json:"granted" validate:"required"`
	Scope      string     `json:"scope" validate:"required"`
	ScopeID    *string    `json:"scope_id"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

func (h *Handler) grantOverride(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req overrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	scope, err := ParseScope(req.Scope)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var grantedBy int64
	if identity, ok := IdentityFromContext(r.Context()); ok {
		grantedBy = identity.User.ID
	}
	if err := h.service.GrantOverride(r.Context(), userID, req.Permission, *req.Granted, scope, req.ScopeID, req.ExpiresAt, grantedBy); err != nil {
		h.fail(w, r, "grant override", err)
		return
	}
	h.record(r, "authz.override.grant", userID, map[string]any{
		"permission": req.Permission,
		"granted":    *req.Granted,
		"scope":      req.Scope,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeOverride(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	code := strings.TrimSpace(r.URL.Query().Get("permission"))
	if code == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "permission is required")
		return
	}
	scope, err := ParseScope(queryDefault(r, "scope", string(ScopeGlobal)))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	scopeID := optionalQuery(r, "scope_id")
	if err := h.service.RevokeOverride(r.Context(), userID, code, scope, scopeID); err != nil {
		h.fail(w, r, "revoke override", err)
		return
	}
	h.record(r, "authz.override.revoke", userID, map[string]any{
		"permission": code,
		"scope":      string(scope),
	})
	w.WriteHeader(http.StatusNoContent)
}

// enqueueSweep queues an immediate grant-expiry sweep instead of waiting for
// the nightly cron run.
func (h *Handler) enqueueSweep(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "job queue not configured")
		return
	}
	taskID, err := h.sweeper.EnqueueExpirySweep(r.Context())
	if err != nil {
		h.fail(w, r, "enqueue expiry sweep", err)
		return
	}
	h.record(r, "authz.sweep.enqueue", 0, map[string]any{"task_id": taskID})
	httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": taskID})
}

func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	identity, err := h.service.IdentityFor(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "effective permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user_id":     identity.User.ID,
		"universal":   identity.SuperAdmin,
		"permissions": identity.Entries,
	})
}

type checkRequest struct {
	UserID     int64  `json:"user_id" validate:"required"`
	Permission string `json:"permission" validate:"required"`
	Scope      string `json:"scope"`
	ScopeID    string `json:"scope_id"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	scope := ScopeGlobal
	if req.Scope != "" {
		parsed, err := ParseScope(req.Scope)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		scope = parsed
	}
	allowed, err := h.service.Check(r.Context(), req.UserID, req.Permission, scope, req.ScopeID)
	if err != nil {
		h.fail(w, r, "check", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}

var displayCaser = cases.Title(language.English)

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.Permissions(r.Context())
	if err != nil {
		h.fail(w, r, "list permissions", err)
		return
	}
	type permissionView struct {
		ID      int64  `json:"id"`
		Code    string `json:"code"`
		Action  Action `json:"action"`
		Display string `json:"display"`
	}
	views := make([]permissionView, 0, len(perms))
	for _, p := range perms {
		views = append(views, permissionView{
			ID:      p.ID,
			Code:    p.Code,
			Action:  p.Action,
			Display: displayCaser.String(strings.ToLower(strings.ReplaceAll(p.Code, "_", " "))),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": views})
}

func (h *Handler) record(r *http.Request, action string, targetUserID int64, detail map[string]any) {
	if h.audit == nil {
		return
	}
	var actorID int64
	if identity, ok := IdentityFromContext(r.Context()); ok {
		actorID = identity.User.ID
	}
	h.audit.Record(r.Context(), actorID, action, targetUserID, detail)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.RespondError(w, err)
}

func pathID(r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryDefault(r *http.Request, name, fallback string) string {
	if v := strings.TrimSpace(r.URL.Query().Get(name)); v != "" {
		return v
	}
	return fallback
}

func optionalQuery(r *http.Request, name string) *string {
	if v := strings.TrimSpace(r.URL.Query().Get(name)); v != "" {
		return &v
	}
	return nil
}
