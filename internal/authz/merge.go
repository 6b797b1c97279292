package authz

// Merge folds override operations left-to-right over the role-derived grant
// set. A granted op adds or replaces the entry at its exact scope tuple; a
// revoked op removes only an exact tuple match. A revocation does not suppress
// a grant held at a broader scope that would dominate the same request; that
// asymmetry is intentional and callers depend on it.
func Merge(roleGrants []Entry, overrides []OverrideOp) map[EntryKey]Entry {
	merged := make(map[EntryKey]Entry, len(roleGrants))
	for _, e := range roleGrants {
		merged[e.Key()] = e
	}
	for _, op := range overrides {
		entry := Entry{Code: op.Code, Scope: op.Scope, ScopeID: op.ScopeID}
		if op.Granted {
			merged[entry.Key()] = entry
			continue
		}
		delete(merged, entry.Key())
	}
	return merged
}
