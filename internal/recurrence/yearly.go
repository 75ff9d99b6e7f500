package recurrence

import (
	"time"

	"calrepeat/internal/calendar"
)

// YearlyDates returns the anchor's month and day in every year from the
// anchor's year onwards. A February 29 anchor only occurs in leap years.
func YearlyDates(anchor, end calendar.Date) []calendar.Date {
	return expand(anchor, end, yearlyCandidate)
}

func yearlyCandidate(anchor calendar.Date, n int) (calendar.Date, bool) {
	year := anchor.Year + n
	if anchor.Month == time.February && anchor.Day == 29 && !calendar.IsLeapYear(year) {
		return calendar.NewDate(year, time.February, 28), false
	}
	return calendar.NewDate(year, anchor.Month, anchor.Day), true
}
