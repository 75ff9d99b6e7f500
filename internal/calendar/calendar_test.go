package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestIsLeapYear(t *testing.T) {
	tests := []struct {
		year int
		want bool
	}{
		{2024, true},
		{2000, true},
		{1900, false},
		{2025, false},
		{2100, false},
		{2400, true},
		{1, false},
		{4, true},
	}

	for _, tt := range tests {
		if got := IsLeapYear(tt.year); got != tt.want {
			t.Errorf("IsLeapYear(%d) = %v, want %v", tt.year, got, tt.want)
		}
	}
}

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		want  int
	}{
		{"leap february", 2024, time.February, 29},
		{"common february", 2025, time.February, 28},
		{"century february", 1900, time.February, 28},
		{"april", 2025, time.April, 30},
		{"june", 2025, time.June, 30},
		{"september", 2025, time.September, 30},
		{"november", 2025, time.November, 30},
		{"january", 2025, time.January, 31},
		{"august", 2025, time.August, 31},
		{"december", 2025, time.December, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysInMonth(tt.year, tt.month))
		})
	}
}

func TestAddMonths(t *testing.T) {
	y, m := AddMonths(2025, time.November, 3)
	assert.Equal(t, 2026, y)
	assert.Equal(t, time.February, m)

	y, m = AddMonths(2025, time.January, -1)
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.December, m)

	y, m = AddMonths(2024, time.January, 24)
	assert.Equal(t, 2026, y)
	assert.Equal(t, time.January, m)
}

func TestDayNumberRoundTrip(t *testing.T) {
	assert.Equal(t, 0, NewDate(1970, time.January, 1).DayNumber())
	assert.Equal(t, -1, NewDate(1969, time.December, 31).DayNumber())

	start := NewDate(1899, time.December, 25).DayNumber()
	for n := start; n < start+200*366; n += 17 {
		d := FromDayNumber(n)
		require.True(t, d.Valid(), "day number %d produced %v", n, d)
		require.Equal(t, n, d.DayNumber())
	}
}

func TestDayNumberMatchesTimePackage(t *testing.T) {
	base := time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2000-02-29", "2024-03-01", "2025-12-31", "1900-03-01", "2100-01-01"} {
		d := MustParseDate(s)
		days := int(d.In(time.UTC).Sub(base).Hours() / 24)
		assert.Equal(t, days, d.DayNumber(), s)
	}
}

func TestAddDaysAcrossBoundaries(t *testing.T) {
	tests := []struct {
		from string
		days int
		want string
	}{
		{"2025-10-31", 1, "2025-11-01"},
		{"2025-12-31", 1, "2026-01-01"},
		{"2024-02-28", 1, "2024-02-29"},
		{"2025-02-28", 1, "2025-03-01"},
		{"2025-03-29", 7, "2025-04-05"},
		{"2025-10-25", 7, "2025-11-01"},
		{"2025-01-01", -1, "2024-12-31"},
	}

	for _, tt := range tests {
		got := MustParseDate(tt.from).AddDays(tt.days)
		assert.Equal(t, tt.want, got.String(), "%s %+d", tt.from, tt.days)
	}
}

func TestWeekday(t *testing.T) {
	assert.Equal(t, time.Monday, MustParseDate("2025-10-06").Weekday())
	assert.Equal(t, time.Thursday, MustParseDate("1970-01-01").Weekday())
	assert.Equal(t, time.Wednesday, MustParseDate("1969-12-31").Weekday())
	assert.Equal(t, time.Thursday, MustParseDate("2024-02-29").Weekday())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-05")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2025, time.January, 5), d)
	assert.Equal(t, "2025-01-05", d.String())

	for _, bad := range []string{"", "2025-1-05", "2025-02-30", "2025/01/05", "not a date"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestCompare(t *testing.T) {
	a := MustParseDate("2025-10-01")
	b := MustParseDate("2025-10-15")

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.After(a))
}

func TestDateEncoding(t *testing.T) {
	type doc struct {
		Date Date  `json:"date" yaml:"date"`
		End  *Date `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	}

	end := MustParseDate("2025-12-31")
	in := doc{Date: MustParseDate("2025-10-06"), End: &end}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-10-06","endDate":"2025-12-31"}`, string(data))

	var fromJSON doc
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, in.Date, fromJSON.Date)
	require.NotNil(t, fromJSON.End)
	assert.Equal(t, end, *fromJSON.End)

	var fromYAML doc
	require.NoError(t, yaml.Unmarshal([]byte("date: 2024-02-29\n"), &fromYAML))
	assert.Equal(t, NewDate(2024, time.February, 29), fromYAML.Date)
	assert.Nil(t, fromYAML.End)

	var invalid doc
	assert.Error(t, json.Unmarshal([]byte(`{"date":"2025-13-01"}`), &invalid))
}
