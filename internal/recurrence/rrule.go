package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"calrepeat/internal/calendar"
)

// ROption returns the RFC 5545 rule equivalent to rule anchored at anchor and
// bounded by end. Both dates are placed at midnight UTC.
func ROption(rule Rule, anchor, end calendar.Date) (rrule.ROption, error) {
	opt := rrule.ROption{
		Dtstart:  anchor.In(time.UTC),
		Until:    end.In(time.UTC),
		Interval: 1,
	}

	switch rule.Type {
	case TypeDaily:
		opt.Freq = rrule.DAILY
	case TypeWeekly:
		opt.Freq = rrule.WEEKLY
	case TypeMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{anchor.Day}
	case TypeYearly:
		opt.Freq = rrule.YEARLY
		opt.Bymonth = []int{int(anchor.Month)}
		opt.Bymonthday = []int{anchor.Day}
	default:
		return rrule.ROption{}, fmt.Errorf("%w: %q has no RRULE form", ErrUnknownType, rule.Type)
	}

	return opt, nil
}

// RRuleString renders rule as the value of an RRULE property. UNTIL is the
// last second of end so occurrences later in that day stay included.
func RRuleString(rule Rule, anchor, end calendar.Date) (string, error) {
	opt, err := ROption(rule, anchor, end)
	if err != nil {
		return "", err
	}
	opt.Until = end.AddDays(1).In(time.UTC).Add(-time.Second)
	return opt.RRuleString(), nil
}

// ParseRRule maps an RRULE value onto a Rule. Only the frequency and the
// UNTIL bound carry over; other parts are outside what a series can express.
func ParseRRule(value string) (Rule, error) {
	if value == "" {
		return Rule{Type: TypeNone, Interval: 1}, nil
	}

	opt, err := rrule.StrToROption(value)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to parse RRULE %q: %w", value, err)
	}

	rule := Rule{Interval: opt.Interval}
	if rule.Interval <= 0 {
		rule.Interval = 1
	}

	switch opt.Freq {
	case rrule.DAILY:
		rule.Type = TypeDaily
	case rrule.WEEKLY:
		rule.Type = TypeWeekly
	case rrule.MONTHLY:
		rule.Type = TypeMonthly
	case rrule.YEARLY:
		rule.Type = TypeYearly
	default:
		return Rule{}, fmt.Errorf("%w: RRULE frequency %v", ErrUnknownType, opt.Freq)
	}

	if !opt.Until.IsZero() {
		until := calendar.DateOf(opt.Until)
		rule.EndDate = &until
	}

	return rule, nil
}
