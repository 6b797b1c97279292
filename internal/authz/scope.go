package authz

import "fmt"

// Scope is the breadth level at which a grant or check applies. Scopes form a
// total order from broadest to narrowest; the order drives dominance checks and
// is never used for identity.
type Scope string

const (
	ScopeGlobal     Scope = "GLOBAL"
	ScopeCompany    Scope = "COMPANY"
	ScopeFactory    Scope = "FACTORY"
	ScopeDivision   Scope = "DIVISION"
	ScopeDepartment Scope = "DEPARTMENT"
)

var scopeOrder = [...]Scope{ScopeGlobal, ScopeCompany, ScopeFactory, ScopeDivision, ScopeDepartment}

// ParseScope validates a raw scope string.
func ParseScope(raw string) (Scope, error) {
	s := Scope(raw)
	if !s.Valid() {
		return "", fmt.Errorf("authz: unknown scope %q", raw)
	}
	return s, nil
}

// Valid reports whether the scope is one of the five known levels.
func (s Scope) Valid() bool {
	return s.index() >= 0
}

func (s Scope) index() int {
	for i, candidate := range scopeOrder {
		if s == candidate {
			return i
		}
	}
	return -1
}

func errValidScope(s Scope) error {
	return fmt.Errorf("authz: unknown scope %q", string(s))
}

// Dominates reports whether a grant issued at scope a is broad enough to cover
// a request at scope b. Unknown scopes never dominate anything.
func Dominates(a, b Scope) bool {
	ai, bi := a.index(), b.index()
	if ai < 0 || bi < 0 {
		return false
	}
	return ai <= bi
}
