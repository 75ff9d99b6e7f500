package recurrence

import "calrepeat/internal/calendar"

// DailyDates returns every date from anchor to end inclusive.
func DailyDates(anchor, end calendar.Date) []calendar.Date {
	return expand(anchor, end, dailyCandidate)
}

func dailyCandidate(anchor calendar.Date, n int) (calendar.Date, bool) {
	return anchor.AddDays(n), true
}
