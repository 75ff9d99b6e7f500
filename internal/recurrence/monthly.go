package recurrence

import "calrepeat/internal/calendar"

// MonthlyDates returns the anchor's day of month in every month from the
// anchor's month onwards, skipping months that are too short to contain it.
// A day 31 series therefore never lands in a 30 day month or in February.
func MonthlyDates(anchor, end calendar.Date) []calendar.Date {
	return expand(anchor, end, monthlyCandidate)
}

func monthlyCandidate(anchor calendar.Date, n int) (calendar.Date, bool) {
	year, month := calendar.AddMonths(anchor.Year, anchor.Month, n)
	if anchor.Day > calendar.DaysInMonth(year, month) {
		// Skipped month: its first day still bounds the walk.
		return calendar.NewDate(year, month, 1), false
	}
	return calendar.NewDate(year, month, anchor.Day), true
}
