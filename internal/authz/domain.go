package authz

import "time"

// RoleCodeSuperAdmin is the distinguished role code whose holders bypass all
// permission checks. The bypass is materialized once per request on Identity
// rather than compared ad hoc.
const RoleCodeSuperAdmin = "SUPER_ADMIN"

// Action enumerates the atomic operations a permission can govern.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionRead    Action = "READ"
	ActionUpdate  Action = "UPDATE"
	ActionDelete  Action = "DELETE"
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
	ActionExport  Action = "EXPORT"
	ActionImport  Action = "IMPORT"
	ActionExecute Action = "EXECUTE"
)

// Role represents a named bundle of permission grants. Level is an
// administrative rank used only for display and ordering. ParentID is
// conceptual lineage; permission resolution never walks the parent chain,
// only explicit role_permissions rows count.
type Role struct {
	ID        int64
	Code      string
	Name      string
	Level     int
	ParentID  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Permission represents an atomic "<MODULE>_<ACTION>" capability.
type Permission struct {
	ID       int64
	Code     string
	ModuleID int64
	Action   Action
}

// RolePermission is a static grant or denial of a permission to a role,
// independent of scope instance. Granted=false nulls out a broader default.
type RolePermission struct {
	RoleID       int64
	PermissionID int64
	Granted      bool
}

// RoleAssignment ties a user to a role at a scope, optionally pinned to a
// scope instance, inside a validity window.
type RoleAssignment struct {
	UserID     int64
	RoleID     int64
	Scope      Scope
	ScopeID    *string
	ValidFrom  time.Time
	ValidUntil *time.Time
	IsActive   bool
}

// EffectiveAt reports whether the assignment contributes grants at the given instant.
func (a RoleAssignment) EffectiveAt(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ValidFrom.After(now) {
		return false
	}
	if a.ValidUntil != nil && !a.ValidUntil.After(now) {
		return false
	}
	return true
}

// PermissionOverride is a user-specific grant or revocation independent of
// role membership, applied after role-derived grants.
type PermissionOverride struct {
	UserID       int64
	PermissionID int64
	Granted      bool
	Scope        Scope
	ScopeID      *string
	ExpiresAt    *time.Time
	GrantedBy    int64
}

// EffectiveAt reports whether the override still applies at the given instant.
func (o PermissionOverride) EffectiveAt(now time.Time) bool {
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}

// RoleGrant pairs a role with a permission code it grants. Read-model row used
// when expanding assignments into entries.
type RoleGrant struct {
	RoleID int64
	Code   string
}

// OverrideOp is the read-model of an effective override, resolved to its
// permission code, in creation order.
type OverrideOp struct {
	Code    string
	Granted bool
	Scope   Scope
	ScopeID *string
}

// Entry is one element of a user's effective permission set.
type Entry struct {
	Code    string  `json:"code"`
	Scope   Scope   `json:"scope"`
	ScopeID *string `json:"scope_id,omitempty"`
}

// EntryKey identifies an entry by its exact scope tuple. Nil scope ids
// normalize to the empty string so map keys compare by value.
type EntryKey struct {
	Code    string
	Scope   Scope
	ScopeID string
}

// Key returns the exact-tuple key for the entry.
func (e Entry) Key() EntryKey {
	return EntryKey{Code: e.Code, Scope: e.Scope, ScopeID: scopeKey(e.ScopeID)}
}

func scopeKey(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

// User is the projection of a user account this engine needs.
type User struct {
	ID          int64
	CompanyID   int64
	AccessLevel string
	RoleID      int64
	RoleCode    string
	IsActive    bool
}

// Identity is the evaluated authorization identity of a user. SuperAdmin is a
// type-level flag set exactly once while building the identity; when true the
// entry set is conceptually universal and stays nil.
type Identity struct {
	User       User
	SuperAdmin bool
	Entries    []Entry
}

// Allows answers a point query against the identity's effective set: same
// code, dominating scope level, and a flat scope-id match. A grant pinned to a
// scope instance covers only requests carrying that exact instance id; there
// is no ancestor walk from a factory grant down to its divisions.
func (id Identity) Allows(code string, scope Scope, scopeID string) bool {
	if id.SuperAdmin {
		return true
	}
	for _, e := range id.Entries {
		if e.Code != code {
			continue
		}
		if !Dominates(e.Scope, scope) {
			continue
		}
		if e.Scope == ScopeGlobal || e.ScopeID == nil || *e.ScopeID == scopeID {
			return true
		}
	}
	return false
}
