package reservation

import (
	"strings"

	"slotwise/models"
)

// NormalizeLocation trims a location value and maps the empty string to the
// wildcard. All location comparisons in the engine go through here so the
// wildcard semantics live in exactly one place.
func NormalizeLocation(val string) string {
	s := strings.TrimSpace(val)
	if s == "" {
		return models.LocationAny
	}
	return s
}

// Matches reports whether two location values intersect for collision
// purposes: equal concrete locations match, and the wildcard matches
// everything, including another wildcard.
func Matches(a, b string) bool {
	a = NormalizeLocation(a)
	b = NormalizeLocation(b)
	if a == models.LocationAny || b == models.LocationAny {
		return true
	}
	return a == b
}

// IsWildcard reports whether the value is the wildcard sentinel.
func IsWildcard(val string) bool {
	return NormalizeLocation(val) == models.LocationAny
}
