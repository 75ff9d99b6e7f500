package recurrence

import (
	"errors"
	"fmt"

	"calrepeat/internal/calendar"
)

var (
	// ErrRecurrenceRange is returned when a series would end before it starts.
	ErrRecurrenceRange = errors.New("recurrence end date must be after the start date")

	// ErrUnknownType is returned when a repeat type is not supported.
	ErrUnknownType = errors.New("recurrence: unknown repeat type")

	// ErrTooManyOccurrences is returned when a series exceeds the engine's
	// configured occurrence limit.
	ErrTooManyOccurrences = errors.New("recurrence: occurrence limit exceeded")
)

// RangeError reports a series whose end date precedes its anchor date.
type RangeError struct {
	Start calendar.Date
	End   calendar.Date
}

func (e *RangeError) Error() string {
	return ErrRecurrenceRange.Error()
}

func (e *RangeError) Unwrap() error {
	return ErrRecurrenceRange
}

// Detail returns the message with both dates, for logs.
func (e *RangeError) Detail() string {
	return fmt.Sprintf("%s (start %s, end %s)", ErrRecurrenceRange, e.Start, e.End)
}
