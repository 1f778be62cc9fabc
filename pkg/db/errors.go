package db

import "strings"

// IsUniqueViolation reports whether the provided error is a unique constraint
// violation. With no markers any unique violation matches; with markers, the
// violation must reference one of them. Postgres names the violated constraint
// in its message while SQLite (used in tests) names the columns, so callers
// that care which constraint tripped pass both spellings.
func IsUniqueViolation(err error, markers ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") &&
		!strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if len(markers) == 0 {
		return true
	}
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
