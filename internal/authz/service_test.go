package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gemin-erp/gemin-erp/internal/shared"
)

type assignmentKey struct {
	userID, roleID int64
	scope          Scope
	scopeID        string
}

type overrideKey struct {
	userID, permissionID int64
	scope                Scope
	scopeID              string
}

type memoryRepo struct {
	users       map[int64]User
	assignments map[assignmentKey]RoleAssignment
	rolePerms   map[int64][]string
	permsByCode map[string]Permission
	codesByID   map[int64]string
	overrides   map[overrideKey]PermissionOverride
	overrideSeq []overrideKey
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:       make(map[int64]User),
		assignments: make(map[assignmentKey]RoleAssignment),
		rolePerms:   make(map[int64][]string),
		permsByCode: make(map[string]Permission),
		codesByID:   make(map[int64]string),
		overrides:   make(map[overrideKey]PermissionOverride),
	}
}

func (r *memoryRepo) addPermission(id int64, code string) {
	r.permsByCode[code] = Permission{ID: id, Code: code, ModuleID: 1, Action: ActionRead}
	r.codesByID[id] = code
}

func (r *memoryRepo) UserByID(ctx context.Context, id int64) (User, error) {
	user, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return user, nil
}

func (r *memoryRepo) EffectiveAssignments(ctx context.Context, userID int64, now time.Time) ([]RoleAssignment, error) {
	var out []RoleAssignment
	for _, a := range r.assignments {
		if a.UserID == userID && a.EffectiveAt(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) RoleGrants(ctx context.Context, roleIDs []int64) ([]RoleGrant, error) {
	var out []RoleGrant
	for _, id := range roleIDs {
		for _, code := range r.rolePerms[id] {
			out = append(out, RoleGrant{RoleID: id, Code: code})
		}
	}
	return out, nil
}

func (r *memoryRepo) EffectiveOverrides(ctx context.Context, userID int64, now time.Time) ([]OverrideOp, error) {
	var out []OverrideOp
	for _, key := range r.overrideSeq {
		o, ok := r.overrides[key]
		if !ok || o.UserID != userID || !o.EffectiveAt(now) {
			continue
		}
		out = append(out, OverrideOp{
			Code:    r.codesByID[o.PermissionID],
			Granted: o.Granted,
			Scope:   o.Scope,
			ScopeID: o.ScopeID,
		})
	}
	return out, nil
}

func (r *memoryRepo) PermissionByCode(ctx context.Context, code string) (Permission, error) {
	perm, ok := r.permsByCode[code]
	if !ok {
		return Permission{}, shared.ErrNotFound
	}
	return perm, nil
}

func (r *memoryRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(r.permsByCode))
	for _, p := range r.permsByCode {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) UpsertAssignment(ctx context.Context, a RoleAssignment) error {
	key := assignmentKey{a.UserID, a.RoleID, a.Scope, scopeKey(a.ScopeID)}
	r.assignments[key] = a
	return nil
}

func (r *memoryRepo) DeactivateAssignment(ctx context.Context, userID, roleID int64, scope Scope, scopeID *string) error {
	key := assignmentKey{userID, roleID, scope, scopeKey(scopeID)}
	a, ok := r.assignments[key]
	if !ok {
		return shared.ErrNotFound
	}
	a.IsActive = false
	r.assignments[key] = a
	return nil
}

func (r *memoryRepo) UpsertOverride(ctx context.Context, o PermissionOverride) error {
	key := overrideKey{o.UserID, o.PermissionID, o.Scope, scopeKey(o.ScopeID)}
	if _, ok := r.overrides[key]; !ok {
		r.overrideSeq = append(r.overrideSeq, key)
	}
	r.overrides[key] = o
	return nil
}

func (r *memoryRepo) DeleteOverride(ctx context.Context, userID, permissionID int64, scope Scope, scopeID *string) error {
	key := overrideKey{userID, permissionID, scope, scopeKey(scopeID)}
	if _, ok := r.overrides[key]; !ok {
		return shared.ErrNotFound
	}
	delete(r.overrides, key)
	return nil
}

var _ Repository = (*memoryRepo)(nil)

const (
	roleManager    = int64(10)
	roleSuperAdmin = int64(1)
)

func seedRepo() *memoryRepo {
	repo := newMemoryRepo()
	repo.addPermission(100, "SUPPLY_CHAIN_READ")
	repo.addPermission(101, "SUPPLY_CHAIN_UPDATE")
	repo.addPermission(102, "INDENT_APPROVE")
	repo.rolePerms[roleManager] = []string{"SUPPLY_CHAIN_READ", "SUPPLY_CHAIN_UPDATE"}
	repo.users[1] = User{ID: 1, CompanyID: 1, AccessLevel: "FACTORY", RoleID: roleManager, RoleCode: "MANAGER", IsActive: true}
	repo.users[2] = User{ID: 2, CompanyID: 1, AccessLevel: "HQ", RoleID: roleSuperAdmin, RoleCode: RoleCodeSuperAdmin, IsActive: true}
	repo.users[3] = User{ID: 3, CompanyID: 1, AccessLevel: "FACTORY", RoleID: roleManager, RoleCode: "MANAGER", IsActive: false}
	return repo
}

func TestCheckSuperAdminBypass(t *testing.T) {
	svc := NewService(seedRepo())
	ctx := context.Background()

	for _, scope := range []Scope{ScopeGlobal, ScopeCompany, ScopeFactory, ScopeDepartment} {
		allowed, err := svc.Check(ctx, 2, "ANYTHING_AT_ALL", scope, "X9")
		require.NoError(t, err)
		require.True(t, allowed, "super admin must bypass at %s", scope)
	}
}

func TestExpiredAssignmentContributesNothing(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	require.NoError(t, repo.UpsertAssignment(ctx, RoleAssignment{
		UserID: 1, RoleID: roleManager, Scope: ScopeFactory, ScopeID: strPtr("F1"),
		ValidFrom: time.Now().Add(-48 * time.Hour), ValidUntil: &past, IsActive: true,
	}))

	entries, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFutureValidFromContributesNothing(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, repo.UpsertAssignment(ctx, RoleAssignment{
		UserID: 1, RoleID: roleManager, Scope: ScopeFactory, ScopeID: strPtr("F1"),
		ValidFrom: time.Now().Add(time.Hour), IsActive: true,
	}))

	allowed, err := svc.Check(ctx, 1, "SUPPLY_CHAIN_READ", ScopeFactory, "F1")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestOverrideSuppressionRegardlessOfOrder(t *testing.T) {
	ctx := context.Background()

	// Override created after the role grant.
	repo := seedRepo()
	svc := NewService(repo)
	require.NoError(t, svc.GrantRole(ctx, 1, roleManager, ScopeFactory, strPtr("F1"), nil))
	require.NoError(t, svc.GrantOverride(ctx, 1, "SUPPLY_CHAIN_READ", false, ScopeFactory, strPtr("F1"), nil, 2))
	allowed, err := svc.Check(ctx, 1, "SUPPLY_CHAIN_READ", ScopeFactory, "F1")
	require.NoError(t, err)
	require.False(t, allowed)

	// Override created before the role grant.
	repo = seedRepo()
	svc = NewService(repo)
	require.NoError(t, svc.GrantOverride(ctx, 1, "SUPPLY_CHAIN_READ", false, ScopeFactory, strPtr("F1"), nil, 2))
	require.NoError(t, svc.GrantRole(ctx, 1, roleManager, ScopeFactory, strPtr("F1"), nil))
	allowed, err = svc.Check(ctx, 1, "SUPPLY_CHAIN_READ", ScopeFactory, "F1")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestGrantRoleUpsertIdempotent(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.GrantRole(ctx, 1, roleManager, ScopeCompany, strPtr("C1"), nil))
	require.NoError(t, svc.GrantRole(ctx, 1, roleManager, ScopeCompany, strPtr("C1"), nil))
	require.Len(t, repo.assignments, 1)
}

func TestScenarioManagerAtFactory(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.GrantRole(ctx, 1, roleManager, ScopeFactory, strPtr("F1"), nil))

	allowed, err := svc.Check(ctx, 1, "SUPPLY_CHAIN_READ", ScopeFactory, "F1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = svc.Check(ctx, 1, "SUPPLY_CHAIN_READ", ScopeFactory, "F2")
	require.NoError(t, err)
	require.False(t, allowed)

	require.NoError(t, svc.GrantOverride(ctx, 1, "SUPPLY_CHAIN_READ", false, ScopeFactory, strPtr("F1"), nil, 2))

	allowed, err = svc.Check(ctx, 1, "SUPPLY_CHAIN_READ", ScopeFactory, "F1")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestCheckDominance(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo)
	ctx := context.Background()

	// A GLOBAL assignment covers any narrower check regardless of instance.
	require.NoError(t, svc.GrantRole(ctx, 1, roleManager, ScopeGlobal, nil, nil))

	for _, tc := range []struct {
		scope   Scope
		scopeID string
	}{
		{ScopeGlobal, ""},
		{ScopeCompany, "C1"},
		{ScopeFactory, "F7"},
		{ScopeDepartment, "D3"},
	} {
		allowed, err := svc.Check(ctx, 1, "SUPPLY_CHAIN_READ", tc.scope, tc.scopeID)
		require.NoError(t, err)
		require.True(t, allowed, "global grant should cover %s/%s", tc.scope, tc.scopeID)
	}
}

func TestCheckFlatScopeIDEquality(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.GrantRole(ctx, 1, roleManager, ScopeFactory, strPtr("F1"), nil))

	// The factory grant covers a narrower-scope check only when the caller
	// passes the same instance id; there is no ancestor walk to divisions.
	allowed, err := svc.Check(ctx, 1, "SUPPLY_CHAIN_READ", ScopeDivision, "F1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = svc.Check(ctx, 1, "SUPPLY_CHAIN_READ", ScopeDivision, "D1")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestCheckNilScopeIDGrantCoversAnyInstance(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.GrantRole(ctx, 1, roleManager, ScopeFactory, nil, nil))

	allowed, err := svc.Check(ctx, 1, "SUPPLY_CHAIN_READ", ScopeFactory, "F42")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestInactiveUserFailsClosed(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.GrantRole(ctx, 3, roleManager, ScopeGlobal, nil, nil))

	entries, err := svc.EffectivePermissions(ctx, 3)
	require.NoError(t, err)
	require.Empty(t, entries)

	allowed, err := svc.Check(ctx, 3, "SUPPLY_CHAIN_READ", ScopeGlobal, "")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestMissingUserFailsClosedWithoutError(t *testing.T) {
	svc := NewService(seedRepo())
	ctx := context.Background()

	allowed, err := svc.Check(ctx, 999, "SUPPLY_CHAIN_READ", ScopeGlobal, "")
	require.NoError(t, err)
	require.False(t, allowed)

	entries, err := svc.EffectivePermissions(ctx, 999)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRevokeRoleRemovesEntries(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.GrantRole(ctx, 1, roleManager, ScopeFactory, strPtr("F1"), nil))
	require.NoError(t, svc.RevokeRole(ctx, 1, roleManager, ScopeFactory, strPtr("F1")))

	allowed, err := svc.Check(ctx, 1, "SUPPLY_CHAIN_READ", ScopeFactory, "F1")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestGrantOverrideUnknownPermission(t *testing.T) {
	svc := NewService(seedRepo())
	err := svc.GrantOverride(context.Background(), 1, "NOT_A_PERMISSION", true, ScopeGlobal, nil, nil, 2)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestExpiredOverrideIgnored(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.GrantRole(ctx, 1, roleManager, ScopeFactory, strPtr("F1"), nil))
	past := time.Now().Add(-time.Minute)
	require.NoError(t, svc.GrantOverride(ctx, 1, "SUPPLY_CHAIN_READ", false, ScopeFactory, strPtr("F1"), &past, 2))

	allowed, err := svc.Check(ctx, 1, "SUPPLY_CHAIN_READ", ScopeFactory, "F1")
	require.NoError(t, err)
	require.True(t, allowed, "an expired revocation must not suppress the grant")
}

func TestIdentityForUnknownUser(t *testing.T) {
	svc := NewService(seedRepo())
	_, err := svc.IdentityFor(context.Background(), 999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEffectivePermissionsKeepsDistinctScopes(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.GrantRole(ctx, 1, roleManager, ScopeCompany, strPtr("C1"), nil))
	require.NoError(t, svc.GrantRole(ctx, 1, roleManager, ScopeFactory, strPtr("F1"), nil))

	entries, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	// Two role permissions at two scopes each.
	require.Len(t, entries, 4)
}
