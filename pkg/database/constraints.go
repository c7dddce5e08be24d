package database

import "strings"

// IsUniqueViolation reports whether err comes from a UNIQUE index, which is
// how SQLite reports an insert that lost a race with an equivalent one.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
