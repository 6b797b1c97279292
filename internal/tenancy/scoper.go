package tenancy

import (
	"fmt"
	"strings"
)

// Filter narrows a query to the resolved factory set. It returns a SQL
// predicate fragment using positional placeholders starting at argPos, plus
// the matching arguments, ready to be appended to a WHERE clause by data
// access code.
//
// HQ requesting "all" restricts by company only; any other outcome restricts
// the factory column to the pinned factory or, for a non-HQ "all", to the full
// allowed set. An empty allowed set yields a predicate that matches nothing.
func Filter(access ResolvedAccess, factoryCol, companyCol string, argPos int) (string, []any) {
	switch a := access.(type) {
	case CompanyWide:
		if a.Requested == AllFactories {
			return fmt.Sprintf("%s = $%d", companyCol, argPos), []any{a.CompanyID}
		}
		return fmt.Sprintf("%s = $%d AND %s = $%d", companyCol, argPos, factoryCol, argPos+1),
			[]any{a.CompanyID, a.Requested}
	case FactorySet:
		if a.Requested == AllFactories {
			if len(a.IDs) == 0 {
				return "FALSE", nil
			}
			return inClause(factoryCol, a.IDs, argPos)
		}
		return fmt.Sprintf("%s = $%d", factoryCol, argPos), []any{a.CurrentID}
	default:
		return "FALSE", nil
	}
}

func inClause(col string, ids []string, argPos int) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", argPos+i)
		args[i] = id
	}
	return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), args
}
