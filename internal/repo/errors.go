package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique-constraint violation: a row with the same
// key already exists. Callers that race on insertion (submission delivery,
// respondent creation) requery after seeing it.
var ErrDuplicate = errors.New("duplicate")

// ErrStaleTransition is returned by guarded status updates when the record
// was not in a legal source state (or is not visible to the given user).
// Status transitions are monotonic; a stale caller must not overwrite a
// newer state.
var ErrStaleTransition = errors.New("stale status transition")

// isUniqueViolation detects unique-constraint violations across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
