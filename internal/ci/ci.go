// Package ci centralizes the case-insensitive comparison used for every
// schema/table/column/alias key in the planner (spec design note: "Case-
// insensitive identifier maps ... centralize in one comparator so it cannot
// drift").
package ci

import "strings"

// Key normalizes an identifier for use as a map key.
func Key(s string) string {
	return strings.ToLower(s)
}

// Equal reports whether two identifiers are the same, ignoring case.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}
