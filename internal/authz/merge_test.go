package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestMergeRevokeSuppressesExactTuple(t *testing.T) {
	grants := []Entry{{Code: "SUPPLY_CHAIN_READ", Scope: ScopeFactory, ScopeID: strPtr("F1")}}
	overrides := []OverrideOp{{Code: "SUPPLY_CHAIN_READ", Granted: false, Scope: ScopeFactory, ScopeID: strPtr("F1")}}

	merged := Merge(grants, overrides)
	require.Empty(t, merged)
}

func TestMergeRevokeLeavesBroaderGrantAlone(t *testing.T) {
	// A revocation only removes an exact tuple match; a grant at a broader
	// scope that would dominate the same request survives.
	grants := []Entry{
		{Code: "SUPPLY_CHAIN_READ", Scope: ScopeCompany, ScopeID: strPtr("C1")},
		{Code: "SUPPLY_CHAIN_READ", Scope: ScopeFactory, ScopeID: strPtr("F1")},
	}
	overrides := []OverrideOp{{Code: "SUPPLY_CHAIN_READ", Granted: false, Scope: ScopeFactory, ScopeID: strPtr("F1")}}

	merged := Merge(grants, overrides)
	require.Len(t, merged, 1)
	key := EntryKey{Code: "SUPPLY_CHAIN_READ", Scope: ScopeCompany, ScopeID: "C1"}
	require.Contains(t, merged, key)
}

func TestMergeGrantAddsAndReplaces(t *testing.T) {
	grants := []Entry{{Code: "INDENT_APPROVE", Scope: ScopeFactory, ScopeID: strPtr("F1")}}
	overrides := []OverrideOp{
		{Code: "INDENT_CREATE", Granted: true, Scope: ScopeFactory, ScopeID: strPtr("F1")},
		{Code: "INDENT_APPROVE", Granted: true, Scope: ScopeFactory, ScopeID: strPtr("F1")},
	}

	merged := Merge(grants, overrides)
	require.Len(t, merged, 2)
}

func TestMergeFoldsLeftToRight(t *testing.T) {
	// Later ops win: grant then revoke leaves nothing, revoke then grant
	// leaves the grant.
	grantThenRevoke := Merge(nil, []OverrideOp{
		{Code: "PO_EXPORT", Granted: true, Scope: ScopeGlobal},
		{Code: "PO_EXPORT", Granted: false, Scope: ScopeGlobal},
	})
	require.Empty(t, grantThenRevoke)

	revokeThenGrant := Merge(nil, []OverrideOp{
		{Code: "PO_EXPORT", Granted: false, Scope: ScopeGlobal},
		{Code: "PO_EXPORT", Granted: true, Scope: ScopeGlobal},
	})
	require.Len(t, revokeThenGrant, 1)
}

func TestMergeDistinctScopeIDsCoexist(t *testing.T) {
	grants := []Entry{
		{Code: "SUPPLY_CHAIN_READ", Scope: ScopeFactory, ScopeID: strPtr("F1")},
		{Code: "SUPPLY_CHAIN_READ", Scope: ScopeFactory, ScopeID: strPtr("F2")},
	}
	merged := Merge(grants, []OverrideOp{{Code: "SUPPLY_CHAIN_READ", Granted: false, Scope: ScopeFactory, ScopeID: strPtr("F2")}})
	require.Len(t, merged, 1)
	require.Contains(t, merged, EntryKey{Code: "SUPPLY_CHAIN_READ", Scope: ScopeFactory, ScopeID: "F1"})
}

func TestMergeNilScopeIDNormalizes(t *testing.T) {
	grants := []Entry{{Code: "USERS_READ", Scope: ScopeCompany, ScopeID: nil}}
	merged := Merge(grants, []OverrideOp{{Code: "USERS_READ", Granted: false, Scope: ScopeCompany, ScopeID: nil}})
	require.Empty(t, merged)
}
