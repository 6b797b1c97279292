package authz

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gemin-erp/gemin-erp/internal/shared"
)

// Repository defines the read and administrative write surface of the grant store.
type Repository interface {
	UserByID(ctx context.Context, id int64) (User, error)
	EffectiveAssignments(ctx context.Context, userID int64, now time.Time) ([]RoleAssignment, error)
	RoleGrants(ctx context.Context, roleIDs []int64) ([]RoleGrant, error)
	EffectiveOverrides(ctx context.Context, userID int64, now time.Time) ([]OverrideOp, error)

	PermissionByCode(ctx context.Context, code string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)

	UpsertAssignment(ctx context.Context, a RoleAssignment) error
	DeactivateAssignment(ctx context.Context, userID, roleID int64, scope Scope, scopeID *string) error
	UpsertOverride(ctx context.Context, o PermissionOverride) error
	DeleteOverride(ctx context.Context, userID, permissionID int64, scope Scope, scopeID *string) error
}

// Service evaluates effective permissions and applies administrative grant changes.
// It holds no mutable state; concurrent identical loads are coalesced but every
// flight recomputes from the store.
type Service struct {
	repo  Repository
	now   func() time.Time
	group singleflight.Group
}

// NewService constructs a Service backed by the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// IdentityFor builds the evaluated identity for a user. Inactive users carry an
// empty entry set. Returns shared.ErrNotFound when the user does not exist.
func (s *Service) IdentityFor(ctx context.Context, userID int64) (Identity, error) {
	user, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		return Identity{}, err
	}
	identity := Identity{User: user}
	if !user.IsActive {
		return identity, nil
	}
	if user.RoleCode == RoleCodeSuperAdmin {
		identity.SuperAdmin = true
		return identity, nil
	}
	entries, err := s.loadEntries(ctx, userID)
	if err != nil {
		return Identity{}, err
	}
	identity.Entries = entries
	return identity, nil
}

// EffectivePermissions computes the merged permission set for a user. A missing
// or inactive user yields an empty set, never an error, so existence cannot be
// probed through this path.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]Entry, error) {
	identity, err := s.IdentityFor(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if identity.SuperAdmin {
		// Universal; callers must consult Check, the set is not enumerable.
		return nil, nil
	}
	return identity.Entries, nil
}

// Check answers whether the user holds the permission at the given scope and
// scope instance. Unknown users, unknown codes and expired grants all resolve
// to false.
func (s *Service) Check(ctx context.Context, userID int64, code string, scope Scope, scopeID string) (bool, error) {
	identity, err := s.IdentityFor(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return identity.Allows(code, scope, scopeID), nil
}

func (s *Service) loadEntries(ctx context.Context, userID int64) ([]Entry, error) {
	v, err, _ := s.group.Do("perms:"+strconv.FormatInt(userID, 10), func() (any, error) {
		return s.computeEntries(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Entry), nil
}

func (s *Service) computeEntries(ctx context.Context, userID int64) ([]Entry, error) {
	now := s.now()
	assignments, err := s.repo.EffectiveAssignments(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	var provisional []Entry
	if len(assignments) > 0 {
		roleIDs := make([]int64, 0, len(assignments))
		seen := make(map[int64]struct{}, len(assignments))
		for _, a := range assignments {
			if _, ok := seen[a.RoleID]; ok {
				continue
			}
			seen[a.RoleID] = struct{}{}
			roleIDs = append(roleIDs, a.RoleID)
		}
		grants, err := s.repo.RoleGrants(ctx, roleIDs)
		if err != nil {
			return nil, err
		}
		codesByRole := make(map[int64][]string, len(roleIDs))
		for _, g := range grants {
			codesByRole[g.RoleID] = append(codesByRole[g.RoleID], g.Code)
		}
		// The same code granted through assignments at different scopes
		// survives as separate entries; dominance decides at check time.
		for _, a := range assignments {
			for _, code := range codesByRole[a.RoleID] {
				provisional = append(provisional, Entry{Code: code, Scope: a.Scope, ScopeID: a.ScopeID})
			}
		}
	}

	overrides, err := s.repo.EffectiveOverrides(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	merged := Merge(provisional, overrides)
	entries := make([]Entry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Code != entries[j].Code {
			return entries[i].Code < entries[j].Code
		}
		if entries[i].Scope != entries[j].Scope {
			return entries[i].Scope.index() < entries[j].Scope.index()
		}
		return scopeKey(entries[i].ScopeID) < scopeKey(entries[j].ScopeID)
	})
	return entries, nil
}

// GrantRole assigns a role to a user at a scope instance, reactivating and
// refreshing the validity window when the key already exists.
func (s *Service) GrantRole(ctx context.Context, userID, roleID int64, scope Scope, scopeID *string, validUntil *time.Time) error {
	if !scope.Valid() {
		return errValidScope(scope)
	}
	return s.repo.UpsertAssignment(ctx, RoleAssignment{
		UserID:     userID,
		RoleID:     roleID,
		Scope:      scope,
		ScopeID:    scopeID,
		ValidFrom:  s.now().UTC(),
		ValidUntil: validUntil,
		IsActive:   true,
	})
}

// RevokeRole soft-revokes an assignment by clearing is_active.
func (s *Service) RevokeRole(ctx context.Context, userID, roleID int64, scope Scope, scopeID *string) error {
	if !scope.Valid() {
		return errValidScope(scope)
	}
	return s.repo.DeactivateAssignment(ctx, userID, roleID, scope, scopeID)
}

// GrantOverride upserts a user permission override, replacing any previous
// override on the same (user, permission, scope, scopeID) key.
func (s *Service) GrantOverride(ctx context.Context, userID int64, permissionCode string, granted bool, scope Scope, scopeID *string, expiresAt *time.Time, grantedBy int64) error {
	if !scope.Valid() {
		return errValidScope(scope)
	}
	perm, err := s.repo.PermissionByCode(ctx, permissionCode)
	if err != nil {
		return err
	}
	return s.repo.UpsertOverride(ctx, PermissionOverride{
		UserID:       userID,
		PermissionID: perm.ID,
		Granted:      granted,
		Scope:        scope,
		ScopeID:      scopeID,
		ExpiresAt:    expiresAt,
		GrantedBy:    grantedBy,
	})
}

// RevokeOverride removes an override row entirely.
func (s *Service) RevokeOverride(ctx context.Context, userID int64, permissionCode string, scope Scope, scopeID *string) error {
	if !scope.Valid() {
		return errValidScope(scope)
	}
	perm, err := s.repo.PermissionByCode(ctx, permissionCode)
	if err != nil {
		return err
	}
	return s.repo.DeleteOverride(ctx, userID, perm.ID, scope, scopeID)
}

// Permissions lists the permission catalog.
func (s *Service) Permissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}
