// Package recurrence expands a single event template into the dated records of
// its recurring series.
package recurrence

import (
	"fmt"
	"strings"

	"calrepeat/internal/calendar"
)

// Type is the unit a series repeats on.
type Type string

const (
	TypeNone    Type = "none"
	TypeDaily   Type = "daily"
	TypeWeekly  Type = "weekly"
	TypeMonthly Type = "monthly"
	TypeYearly  Type = "yearly"
)

// Types lists every supported repeat type.
var Types = []Type{TypeNone, TypeDaily, TypeWeekly, TypeMonthly, TypeYearly}

// ParseType maps a case-insensitive name onto a Type. The empty string is
// treated as TypeNone.
func ParseType(s string) (Type, error) {
	if s == "" {
		return TypeNone, nil
	}
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// Valid reports whether t is one of the supported types.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// IsLeapYear reports whether year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return calendar.IsLeapYear(year)
}

// candidateFunc returns the n-th candidate of a unit relative to anchor. The
// returned date is used to decide when to stop; ok is false when the
// candidate is skipped for that unit.
type candidateFunc func(anchor calendar.Date, n int) (date calendar.Date, ok bool)

// generator produces the ordered occurrence dates between anchor and end,
// both inclusive.
type generator func(anchor, end calendar.Date) []calendar.Date

func generatorFor(t Type) generator {
	switch t {
	case TypeDaily:
		return DailyDates
	case TypeWeekly:
		return WeeklyDates
	case TypeMonthly:
		return MonthlyDates
	case TypeYearly:
		return YearlyDates
	default:
		return nil
	}
}

// expand walks candidates 0, 1, 2, ... until one lies after end.
func expand(anchor, end calendar.Date, candidate candidateFunc) []calendar.Date {
	var dates []calendar.Date
	for n := 0; ; n++ {
		date, ok := candidate(anchor, n)
		if date.After(end) {
			break
		}
		if ok {
			dates = append(dates, date)
		}
	}
	return dates
}

// String returns a human-readable description of the rule.
func (r Rule) String() string {
	var desc string
	switch r.Type {
	case TypeDaily:
		desc = "Daily"
	case TypeWeekly:
		desc = "Weekly"
	case TypeMonthly:
		desc = "Monthly"
	case TypeYearly:
		desc = "Yearly"
	default:
		return "No recurrence"
	}
	if r.EndDate != nil {
		desc += " until " + r.EndDate.String()
	}
	return desc
}
