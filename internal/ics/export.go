// Package ics writes stored events as an iCalendar document.
package ics

import (
	"fmt"
	"io"
	"sort"
	"time"

	ical "github.com/arran4/golang-ical"

	"calrepeat/internal/calendar"
	"calrepeat/internal/recurrence"
)

const floatingLayout = "20060102T150405"

// Options controls Export.
type Options struct {
	// Collapse writes each series as one VEVENT with an RRULE instead of
	// one VEVENT per occurrence.
	Collapse bool
	Name     string
	// Stamp is written as DTSTAMP; zero means the current time.
	Stamp time.Time
	// Engine recomputes a series' dates to find removed occurrences.
	Engine *recurrence.Engine
}

// Export writes records to w as a VCALENDAR.
func Export(w io.Writer, records []recurrence.Record, opts Options) error {
	cal, err := Build(records, opts)
	if err != nil {
		return err
	}
	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}
	return nil
}

// Build assembles the calendar Export writes.
func Build(records []recurrence.Record, opts Options) (*ical.Calendar, error) {
	if opts.Stamp.IsZero() {
		opts.Stamp = time.Now()
	}
	if opts.Engine == nil {
		opts.Engine = recurrence.NewEngine()
	}

	cal := ical.NewCalendarFor("calrepeat")
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	if !opts.Collapse {
		for _, rec := range records {
			addEvent(cal, rec.ID, rec, opts.Stamp)
		}
		return cal, nil
	}

	series := make(map[string][]recurrence.Record)
	var order []string
	for _, rec := range records {
		id := rec.SeriesID()
		if !rec.IsRecurring() {
			addEvent(cal, rec.ID, rec, opts.Stamp)
			continue
		}
		if _, seen := series[id]; !seen {
			order = append(order, id)
		}
		series[id] = append(series[id], rec)
	}

	for _, id := range order {
		if err := addSeries(cal, id, series[id], opts); err != nil {
			return nil, err
		}
	}
	return cal, nil
}

func addEvent(cal *ical.Calendar, uid string, rec recurrence.Record, stamp time.Time) *ical.VEvent {
	event := cal.AddEvent(uid)
	event.SetDtStampTime(stamp)
	event.SetProperty(ical.ComponentPropertyDtStart, floating(rec.Date, rec.StartTime))
	event.SetProperty(ical.ComponentPropertyDtEnd, floating(rec.Date, rec.EndTime))
	event.SetSummary(rec.Title)
	if rec.Description != "" {
		event.SetDescription(rec.Description)
	}
	if rec.Location != "" {
		event.SetLocation(rec.Location)
	}
	if rec.Category != "" {
		event.AddCategory(rec.Category)
	}
	if id := rec.SeriesID(); id != "" && uid != id {
		event.SetProperty(ical.ComponentPropertyRelatedTo, id)
	}
	if rec.NotificationTime > 0 {
		alarm := event.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger(fmt.Sprintf("-PT%dM", rec.NotificationTime))
		alarm.SetDescription(rec.Title)
	}
	return event
}

// addSeries writes one VEVENT for a whole series, anchored at its earliest
// stored member. Dates the rule produces but the store no longer holds
// become EXDATEs.
func addSeries(cal *ical.Calendar, seriesID string, members []recurrence.Record, opts Options) error {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Date.Before(members[j].Date)
	})
	first := members[0]
	last := members[len(members)-1]

	end := last.Date
	if first.Repeat.EndDate != nil {
		end = *first.Repeat.EndDate
	}

	rule := first.Repeat
	rule.EndDate = &end
	tmpl := first.Template
	tmpl.Repeat = rule

	expected, err := opts.Engine.Dates(tmpl)
	if err != nil {
		return fmt.Errorf("series %s: %w", seriesID, err)
	}
	value, err := recurrence.RRuleString(rule, first.Date, end)
	if err != nil {
		return fmt.Errorf("series %s: %w", seriesID, err)
	}

	event := addEvent(cal, seriesID, first, opts.Stamp)
	event.AddRrule(value)

	stored := make(map[calendar.Date]bool, len(members))
	for _, rec := range members {
		stored[rec.Date] = true
	}
	for _, date := range expected {
		if !stored[date] {
			event.AddExdate(floating(date, first.StartTime))
		}
	}
	return nil
}

// floating formats a local date-time without a zone, e.g. 20251006T140000.
func floating(date calendar.Date, clock string) string {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return date.In(time.UTC).Format(floatingLayout)
	}
	return time.Date(date.Year, date.Month, date.Day, t.Hour(), t.Minute(), 0, 0, time.UTC).Format(floatingLayout)
}
