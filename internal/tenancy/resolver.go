package tenancy

import (
	"context"
	"fmt"
	"strings"

	"github.com/gemin-erp/gemin-erp/internal/shared"
)

// Repository defines persistence operations for the tenancy module.
type Repository interface {
	UserProjection(ctx context.Context, userID int64) (User, error)
	CompanyFactoryIDs(ctx context.Context, companyID int64) ([]string, error)
	AccessibleFactoryIDs(ctx context.Context, userID int64) ([]string, error)
	FactoryByID(ctx context.Context, id string) (Factory, error)
	UpsertAccess(ctx context.Context, access FactoryAccess) error
	DeleteAccess(ctx context.Context, userID int64, factoryID string) error
}

// Service resolves factory access and applies factory grant changes. Resolution
// is re-evaluated on every request; grants change and nothing here caches.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve computes the factory set a request may address plus the resolved
// current factory. An empty requested value defaults to the "all" sentinel.
// A concrete request outside a non-HQ user's granted set fails with
// shared.ErrScopeViolation rather than silently narrowing.
func (s *Service) Resolve(ctx context.Context, userID int64, requested string) (ResolvedAccess, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		requested = AllFactories
	}

	user, err := s.repo.UserProjection(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.AccessLevel == AccessHQ {
		ids, err := s.repo.CompanyFactoryIDs(ctx, user.CompanyID)
		if err != nil {
			return nil, err
		}
		return CompanyWide{CompanyID: user.CompanyID, IDs: ids, Requested: requested}, nil
	}

	ids, err := s.repo.AccessibleFactoryIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if requested == AllFactories {
		current := AllFactories
		if len(ids) > 0 {
			// Deterministic: the store orders grants by granted_at, factory_id.
			current = ids[0]
		}
		return FactorySet{IDs: ids, CurrentID: current, Requested: requested}, nil
	}
	for _, id := range ids {
		if id == requested {
			return FactorySet{IDs: ids, CurrentID: requested, Requested: requested}, nil
		}
	}
	return nil, fmt.Errorf("factory %s: %w", requested, shared.ErrScopeViolation)
}

// Factory looks up a factory by id.
func (s *Service) Factory(ctx context.Context, factoryID string) (Factory, error) {
	return s.repo.FactoryByID(ctx, factoryID)
}

// GrantAccess grants a user access to a factory. The factory must belong to
// the user's company; that is enforced here at write time and not re-validated
// during resolution.
func (s *Service) GrantAccess(ctx context.Context, userID int64, factoryID, role string) error {
	user, err := s.repo.UserProjection(ctx, userID)
	if err != nil {
		return err
	}
	factory, err := s.repo.FactoryByID(ctx, factoryID)
	if err != nil {
		return err
	}
	if factory.CompanyID != user.CompanyID {
		return fmt.Errorf("factory %s belongs to another company: %w", factoryID, shared.ErrScopeViolation)
	}
	return s.repo.UpsertAccess(ctx, FactoryAccess{
		UserID:    userID,
		FactoryID: factoryID,
		Role:      role,
	})
}

// RevokeAccess removes a user's access to a factory.
func (s *Service) RevokeAccess(ctx context.Context, userID int64, factoryID string) error {
	return s.repo.DeleteAccess(ctx, userID, factoryID)
}
