package tenancy

import "time"

// AllFactories is the sentinel a request sends to mean "no specific factory".
// Its meaning depends on the caller's access level: company-wide for HQ users,
// "every factory I am allowed to see" for everyone else.
const AllFactories = "all"

// AccessLevel describes how broadly a user sees the company's factories.
type AccessLevel string

const (
	AccessHQ       AccessLevel = "HQ"
	AccessFactory  AccessLevel = "FACTORY"
	AccessDivision AccessLevel = "DIVISION"
)

// Valid reports whether the level is one of the known values.
func (l AccessLevel) Valid() bool {
	switch l {
	case AccessHQ, AccessFactory, AccessDivision:
		return true
	}
	return false
}

// Factory is the projection of a factory this resolver needs.
type Factory struct {
	ID        string
	CompanyID int64
	Name      string
}

// FactoryAccess grants a user access to one factory. Distinct from the generic
// role assignment tables; both are honored, this one only feeds resource-set
// derivation.
type FactoryAccess struct {
	UserID    int64
	FactoryID string
	Role      string
	GrantedAt time.Time
}

// User is the projection of a user account the resolver needs.
type User struct {
	ID          int64
	CompanyID   int64
	AccessLevel AccessLevel
	IsActive    bool
}

// ResolvedAccess is the outcome of resolving a requested factory against a
// user's grants. The two cases carry the two distinct meanings of the "all"
// sentinel; callers switch on the concrete type instead of re-deriving the
// access level.
type ResolvedAccess interface {
	// AllowedFactoryIDs is the set of factories the request may touch.
	AllowedFactoryIDs() []string
	// Current is the resolved current factory, possibly the AllFactories sentinel.
	Current() string

	resolvedAccess()
}

// CompanyWide is the HQ case: every factory of the company is allowed and the
// requested value passes through verbatim, including "all".
type CompanyWide struct {
	CompanyID int64
	IDs       []string
	Requested string
}

func (c CompanyWide) AllowedFactoryIDs() []string { return c.IDs }
func (c CompanyWide) Current() string             { return c.Requested }
func (CompanyWide) resolvedAccess()               {}

// FactorySet is the FACTORY/DIVISION case: only explicitly granted factories
// are allowed. Requested keeps the caller's original value so the query scoper
// can distinguish "iterate everything I may see" from a pinned factory.
type FactorySet struct {
	IDs       []string
	CurrentID string
	Requested string
}

func (f FactorySet) AllowedFactoryIDs() []string { return f.IDs }
func (f FactorySet) Current() string             { return f.CurrentID }
func (FactorySet) resolvedAccess()               {}
