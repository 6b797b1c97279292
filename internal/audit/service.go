package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Entry is one administrative grant change.
type Entry struct {
	ID           int64          `json:"id"`
	ActorID      int64          `json:"actor_id"`
	Action       string         `json:"action"`
	TargetUserID int64          `json:"target_user_id"`
	Detail       map[string]any `json:"detail,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Filters narrows the audit listing.
type Filters struct {
	TargetUserID int64
	Page         int
	PageSize     int
}

// Repository persists and reads audit entries.
type Repository interface {
	Insert(ctx context.Context, actorID int64, action string, targetUserID int64, detail []byte) error
	List(ctx context.Context, targetUserID int64, limit, offset int) ([]Entry, error)
}

// Service records and lists administrative grant changes. Recording is
// best-effort: an audit failure must not fail the grant that triggered it.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record writes an audit entry, logging and swallowing failures.
func (s *Service) Record(ctx context.Context, actorID int64, action string, targetUserID int64, detail map[string]any) {
	if s == nil || s.repo == nil {
		return
	}
	var payload []byte
	if len(detail) > 0 {
		data, err := json.Marshal(detail)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("audit marshal detail", slog.Any("error", err))
			}
			return
		}
		payload = data
	}
	if err := s.repo.Insert(ctx, actorID, action, targetUserID, payload); err != nil {
		if s.logger != nil {
			s.logger.Error("audit record", slog.Any("error", err), slog.String("action", action))
		}
	}
}

// List returns audit entries, newest first, with paging.
func (s *Service) List(ctx context.Context, filters Filters) ([]Entry, error) {
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	return s.repo.List(ctx, filters.TargetUserID, pageSize, (page-1)*pageSize)
}
