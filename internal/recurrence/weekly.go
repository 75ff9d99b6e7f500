package recurrence

import "calrepeat/internal/calendar"

const daysPerWeek = 7

// WeeklyDates returns the dates that fall on the anchor's weekday, one week
// apart, from anchor to end inclusive.
func WeeklyDates(anchor, end calendar.Date) []calendar.Date {
	return expand(anchor, end, weeklyCandidate)
}

func weeklyCandidate(anchor calendar.Date, n int) (calendar.Date, bool) {
	return anchor.AddDays(n * daysPerWeek), true
}
