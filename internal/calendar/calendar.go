package calendar

import "time"

// IsLeapYear reports whether year has a February 29 in the Gregorian calendar.
func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// DaysInMonth returns the number of days in the given month. Month is expected
// to be in the range January..December.
func DaysInMonth(year int, month time.Month) int {
	switch month {
	case time.February:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// AddMonths returns the year and month that lie n calendar months after the
// given one. n may be negative.
func AddMonths(year int, month time.Month, n int) (int, time.Month) {
	index := year*12 + int(month-1) + n
	y := floorDiv(index, 12)
	return y, time.Month(index-y*12) + 1
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
