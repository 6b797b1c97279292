package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gemin-erp/gemin-erp/internal/platform/httpx"
)

// Handler exposes the audit listing endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := Filters{
		TargetUserID: queryInt(r, "target_user_id"),
		Page:         int(queryInt(r, "page")),
		PageSize:     int(queryInt(r, "page_size")),
	}
	entries, err := h.service.List(r.Context(), filters)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("list audit entries", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func queryInt(r *http.Request, name string) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
