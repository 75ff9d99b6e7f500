package schedule

import (
	"errors"

	"calrepeat/internal/recurrence"
	"calrepeat/internal/storage"
)

var (
	// ErrNotRecurring is returned by series operations on a standalone event.
	ErrNotRecurring = errors.New("event does not belong to a series")

	// ErrInvalidTemplate wraps template and patch validation failures.
	ErrInvalidTemplate = errors.New("invalid event")
)

// ErrorKind maps sentinel errors to a stable logging label.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, recurrence.ErrRecurrenceRange):
		return "range"
	case errors.Is(err, recurrence.ErrTooManyOccurrences):
		return "too_many_occurrences"
	case errors.Is(err, ErrInvalidTemplate), errors.Is(err, recurrence.ErrUnknownType):
		return "validation"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotRecurring):
		return "not_recurring"
	default:
		return "unexpected"
	}
}

// IsValidation reports whether err was caused by bad input rather than a
// failing collaborator.
func IsValidation(err error) bool {
	switch ErrorKind(err) {
	case "range", "too_many_occurrences", "validation":
		return true
	default:
		return false
	}
}
