package postgis

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// EqualityFilters maps request parameters named after one of columns to
// `"column" = 'value'` clauses. Clauses follow the order of columns, so equal
// parameter sets always produce the same clause list.
func EqualityFilters(columns []string) func(params map[string]string) []string {
	return func(params map[string]string) []string {
		var clauses []string
		for _, col := range columns {
			v, ok := params[col]
			if !ok {
				continue
			}
			clauses = append(clauses, pgx.Identifier{col}.Sanitize()+" = '"+strings.ReplaceAll(v, "'", "''")+"'")
		}
		return clauses
	}
}
