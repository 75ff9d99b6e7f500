package recurrence

import (
	"time"

	"calrepeat/internal/calendar"
)

// Engine expands templates into records. It holds no mutable state, so one
// Engine may serve concurrent callers as long as its IDSource is safe for
// concurrent use.
type Engine struct {
	clock          Clock
	ids            IDSource
	maxOccurrences int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for the default horizon.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithIDSource sets the identifier source for records and series.
func WithIDSource(ids IDSource) Option {
	return func(e *Engine) {
		if ids != nil {
			e.ids = ids
		}
	}
}

// WithMaxOccurrences caps the number of records one call may produce.
// Zero or a negative value disables the cap.
func WithMaxOccurrences(n int) Option {
	return func(e *Engine) {
		e.maxOccurrences = n
	}
}

// NewEngine constructs an Engine. Without options it uses the wall clock and
// random UUIDs.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		clock: SystemClock,
		ids:   UUIDSource,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Horizon returns the end date used when a rule has none: December 31 of the
// current year.
func (e *Engine) Horizon() calendar.Date {
	return calendar.NewDate(e.clock.Now().Year(), time.December, 31)
}

// Generate expands tmpl into its records.
//
// A template that does not repeat yields exactly one record without a series
// identifier; an empty type counts as none. Any other template yields one
// record per occurrence date, in ascending order, all sharing a freshly
// issued series identifier. Generation fails with a *RangeError when the
// rule's end date precedes the template date. ErrTooManyOccurrences is only
// possible when a cap was set with WithMaxOccurrences; NewEngine sets none.
// On failure no records are produced.
func (e *Engine) Generate(tmpl Template) ([]Record, error) {
	if tmpl.Repeat.Type == "" {
		tmpl.Repeat.Type = TypeNone
	}
	if tmpl.Repeat.Type == TypeNone {
		return []Record{e.newRecord(tmpl, tmpl.Date, cloneRule(tmpl.Repeat))}, nil
	}

	dates, err := e.Dates(tmpl)
	if err != nil {
		return nil, err
	}
	if e.maxOccurrences > 0 && len(dates) > e.maxOccurrences {
		return nil, ErrTooManyOccurrences
	}

	seriesID := e.ids.NewID()
	records := make([]Record, 0, len(dates))
	for _, date := range dates {
		rule := cloneRule(tmpl.Repeat)
		rule.SeriesID = seriesID
		records = append(records, e.newRecord(tmpl, date, rule))
	}
	return records, nil
}

func (e *Engine) newRecord(tmpl Template, date calendar.Date, rule Rule) Record {
	rec := Record{ID: e.ids.NewID(), Template: tmpl}
	rec.Date = date
	rec.Repeat = rule
	return rec
}

func cloneRule(r Rule) Rule {
	if r.EndDate != nil {
		end := *r.EndDate
		r.EndDate = &end
	}
	return r
}

// Dates returns only the occurrence dates tmpl would expand to, resolving the
// horizon the same way Generate does. It issues no identifiers.
func (e *Engine) Dates(tmpl Template) ([]calendar.Date, error) {
	if tmpl.Repeat.Type == TypeNone || tmpl.Repeat.Type == "" {
		return []calendar.Date{tmpl.Date}, nil
	}
	end := e.Horizon()
	if tmpl.Repeat.EndDate != nil {
		end = *tmpl.Repeat.EndDate
	}
	if end.Before(tmpl.Date) {
		return nil, &RangeError{Start: tmpl.Date, End: end}
	}
	if gen := generatorFor(tmpl.Repeat.Type); gen != nil {
		return gen(tmpl.Date, end), nil
	}
	return []calendar.Date{tmpl.Date}, nil
}
