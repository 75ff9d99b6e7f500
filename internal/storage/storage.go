package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"calrepeat/internal/calendar"
	"calrepeat/internal/recurrence"
)

// ErrNotFound is returned when an event or series does not exist.
var ErrNotFound = errors.New("event not found")

// EventStorage persists generated records and supports the single/series
// edit and delete operations.
type EventStorage interface {
	InsertEvents(ctx context.Context, records []recurrence.Record) error
	GetEvent(ctx context.Context, id string) (recurrence.Record, error)
	ListEvents(ctx context.Context, filter Filter) ([]recurrence.Record, error)
	ListSeries(ctx context.Context, seriesID string) ([]recurrence.Record, error)

	// UpdateEvent applies patch to one record and detaches it from its
	// series.
	UpdateEvent(ctx context.Context, id string, patch Patch) (recurrence.Record, error)
	DeleteEvent(ctx context.Context, id string) error

	// UpdateSeries applies patch to every member of a series. Members keep
	// their own dates, their repeat type and the series identifier.
	UpdateSeries(ctx context.Context, seriesID string, patch Patch) ([]recurrence.Record, error)
	DeleteSeries(ctx context.Context, seriesID string) (int, error)

	Close() error
}

// Patch holds the fields an edit changes. Nil fields are left alone.
type Patch struct {
	Title            *string        `json:"title,omitempty"`
	Date             *calendar.Date `json:"date,omitempty"`
	StartTime        *string        `json:"startTime,omitempty"`
	EndTime          *string        `json:"endTime,omitempty"`
	Description      *string        `json:"description,omitempty"`
	Location         *string        `json:"location,omitempty"`
	Category         *string        `json:"category,omitempty"`
	NotificationTime *int           `json:"notificationTime,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Apply returns rec with the patch applied.
func (p Patch) Apply(rec recurrence.Record) recurrence.Record {
	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.Date != nil {
		rec.Date = *p.Date
	}
	if p.StartTime != nil {
		rec.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		rec.EndTime = *p.EndTime
	}
	if p.Description != nil {
		rec.Description = *p.Description
	}
	if p.Location != nil {
		rec.Location = *p.Location
	}
	if p.Category != nil {
		rec.Category = *p.Category
	}
	if p.NotificationTime != nil {
		rec.NotificationTime = *p.NotificationTime
	}
	return rec
}

// applySeries applies every field except the date.
func (p Patch) applySeries(rec recurrence.Record) recurrence.Record {
	p.Date = nil
	return p.Apply(rec)
}

// Validate checks that the patched record would still be a valid event.
func (p Patch) Validate(rec recurrence.Record) error {
	patched := p.Apply(rec)
	if err := patched.Template.Validate(); err != nil {
		return fmt.Errorf("invalid patch: %w", err)
	}
	return nil
}

// detach turns a series member into a standalone event.
func detach(rec recurrence.Record) recurrence.Record {
	rec.Repeat.Type = recurrence.TypeNone
	rec.Repeat.SeriesID = ""
	return rec
}

// Filter selects records for ListEvents. Zero fields match everything.
type Filter struct {
	From     calendar.Date
	To       calendar.Date
	SeriesID string
	Category string
}

// Match reports whether rec passes the filter.
func (f Filter) Match(rec recurrence.Record) bool {
	if !f.From.IsZero() && rec.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && rec.Date.After(f.To) {
		return false
	}
	if f.SeriesID != "" && rec.SeriesID() != f.SeriesID {
		return false
	}
	if f.Category != "" && rec.Category != f.Category {
		return false
	}
	return true
}

// sortRecords orders records by date, then start time, then identifier.
func sortRecords(records []recurrence.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c < 0
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
}

// Backends accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Open returns the storage backend named by backend. path is only used by
// the sqlite backend.
func Open(backend, path string) (EventStorage, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryEventStorage(), nil
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
