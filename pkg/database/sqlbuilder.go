package database

import (
	"fmt"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to interpolate as a table or column.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Binder is implemented by every go-sqlbuilder builder.
type Binder interface {
	Var(arg any) string
}

// Similarity renders a pg_trgm predicate comparing the lowercased column to value.
func Similarity(b Binder, column string, value string, threshold float64) string {
	return fmt.Sprintf("similarity(lower(%s), %s) >= %s", column, b.Var(value), b.Var(threshold))
}

// SimilarityScore renders the pg_trgm score of column against value, 0 when column is null.
func SimilarityScore(b Binder, column string, value string) string {
	return fmt.Sprintf("COALESCE(similarity(lower(%s), %s), 0)", column, b.Var(value))
}
