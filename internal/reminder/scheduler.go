// Package reminder delivers notifications ahead of stored events.
package reminder

import (
	"fmt"
	"sort"
	"time"

	"calrepeat/internal/recurrence"
)

// lateThreshold is how far behind its fire time a reminder may be delivered
// before it counts as late.
const lateThreshold = time.Minute

// Reminder is a notification due for one occurrence
type Reminder struct {
	Record recurrence.Record
	Lead   time.Duration
	Start  time.Time
	End    time.Time
	FireAt time.Time
	Late   bool
}

// Key identifies the reminder across daemon restarts
func (r Reminder) Key() string {
	return fmt.Sprintf("%s@%d", r.Record.ID, int(r.Lead/time.Minute))
}

// Scheduler decides which reminders fall inside a check window
type Scheduler struct {
	location *time.Location
}

// NewScheduler creates a scheduler that reads event clock times in loc.
// A nil location means local time.
func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{location: loc}
}

// Bounds returns the start and end instants of rec
func (s *Scheduler) Bounds(rec recurrence.Record) (time.Time, time.Time, error) {
	start, err := s.at(rec, rec.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start time: %w", err)
	}
	end, err := s.at(rec, rec.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end time: %w", err)
	}
	return start, end, nil
}

func (s *Scheduler) at(rec recurrence.Record, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	midnight := rec.Date.In(s.location)
	return time.Date(midnight.Year(), midnight.Month(), midnight.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, s.location), nil
}

// Due returns the reminders whose fire time lies in (from, to], ordered by
// fire time. Records with an unreadable clock time are skipped.
func (s *Scheduler) Due(records []recurrence.Record, from, to time.Time) []Reminder {
	var due []Reminder

	for _, rec := range records {
		start, end, err := s.Bounds(rec)
		if err != nil {
			continue
		}

		lead := time.Duration(rec.NotificationTime) * time.Minute
		fireAt := start.Add(-lead)
		if !fireAt.After(from) || fireAt.After(to) {
			continue
		}

		due = append(due, Reminder{
			Record: rec,
			Lead:   lead,
			Start:  start,
			End:    end,
			FireAt: fireAt,
			Late:   to.Sub(fireAt) > lateThreshold,
		})
	}

	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].FireAt.Equal(due[j].FireAt) {
			return due[i].FireAt.Before(due[j].FireAt)
		}
		return due[i].Record.ID < due[j].Record.ID
	})
	return due
}
