package recurrence

import (
	"fmt"
	"regexp"

	"calrepeat/internal/calendar"
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Rule describes how a template repeats.
type Rule struct {
	Type Type `json:"type" yaml:"type"`
	// Interval is carried for compatibility; series always advance one unit
	// at a time.
	Interval int            `json:"interval" yaml:"interval"`
	EndDate  *calendar.Date `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	SeriesID string         `json:"id,omitempty" yaml:"id,omitempty"`
}

// Template is the input to the engine. It is never modified.
type Template struct {
	Title       string        `json:"title" yaml:"title"`
	Date        calendar.Date `json:"date" yaml:"date"`
	StartTime   string        `json:"startTime" yaml:"startTime"`
	EndTime     string        `json:"endTime" yaml:"endTime"`
	Description string        `json:"description" yaml:"description"`
	Location    string        `json:"location" yaml:"location"`
	Category    string        `json:"category" yaml:"category"`
	Repeat      Rule          `json:"repeat" yaml:"repeat"`
	// NotificationTime is the reminder lead time in minutes.
	NotificationTime int `json:"notificationTime" yaml:"notificationTime"`
}

// Record is one materialized occurrence.
type Record struct {
	ID       string `json:"id" yaml:"id"`
	Template `yaml:",inline"`
}

// SeriesID returns the identifier shared by the record's series, or "" for a
// standalone event.
func (r Record) SeriesID() string {
	return r.Repeat.SeriesID
}

// IsRecurring reports whether the record belongs to a series.
func (r Record) IsRecurring() bool {
	return r.Repeat.Type != TypeNone && r.Repeat.SeriesID != ""
}

// Validate checks the shape of a template before it is handed to the
// engine. The engine itself only enforces the end date range.
func (t Template) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if !t.Date.Valid() {
		return fmt.Errorf("invalid date %s", t.Date)
	}
	if !clockPattern.MatchString(t.StartTime) {
		return fmt.Errorf("invalid start time %q: expected HH:MM", t.StartTime)
	}
	if !clockPattern.MatchString(t.EndTime) {
		return fmt.Errorf("invalid end time %q: expected HH:MM", t.EndTime)
	}
	if t.EndTime <= t.StartTime {
		return fmt.Errorf("end time %s must be after start time %s", t.EndTime, t.StartTime)
	}
	if t.NotificationTime < 0 {
		return fmt.Errorf("notification time cannot be negative")
	}
	if !t.Repeat.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, t.Repeat.Type)
	}
	if t.Repeat.Interval < 0 {
		return fmt.Errorf("repeat interval must be positive")
	}
	if t.Repeat.EndDate != nil && !t.Repeat.EndDate.Valid() {
		return fmt.Errorf("invalid repeat end date %s", t.Repeat.EndDate)
	}
	return nil
}

// Normalize fills defaults a caller may have omitted: a missing repeat type
// becomes none and a missing interval becomes 1.
func (t Template) Normalize() Template {
	if t.Repeat.Type == "" {
		t.Repeat.Type = TypeNone
	}
	if t.Repeat.Interval == 0 {
		t.Repeat.Interval = 1
	}
	if t.Repeat.EndDate != nil {
		end := *t.Repeat.EndDate
		t.Repeat.EndDate = &end
	}
	return t
}
