package recurrence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"calrepeat/internal/calendar"
)

// The generators must agree with an independent RFC 5545 implementation for
// every rule a series can express.
func TestGeneratorsAgreeWithRRule(t *testing.T) {
	cases := []struct {
		typ    Type
		anchor string
		end    string
	}{
		{TypeDaily, "2025-02-20", "2025-03-10"},
		{TypeDaily, "2024-12-25", "2025-01-05"},
		{TypeWeekly, "2025-10-06", "2026-02-01"},
		{TypeWeekly, "2024-02-29", "2024-06-30"},
		{TypeMonthly, "2025-01-31", "2026-12-31"},
		{TypeMonthly, "2024-01-30", "2025-06-30"},
		{TypeMonthly, "2025-01-29", "2028-12-31"},
		{TypeMonthly, "2025-06-15", "2025-06-15"},
		{TypeYearly, "2024-02-29", "2040-12-31"},
		{TypeYearly, "2096-02-29", "2110-01-01"},
		{TypeYearly, "2025-07-04", "2035-07-03"},
	}

	for _, tc := range cases {
		t.Run(string(tc.typ)+" "+tc.anchor, func(t *testing.T) {
			anchor, end := date(t, tc.anchor), date(t, tc.end)

			opt, err := ROption(Rule{Type: tc.typ}, anchor, end)
			require.NoError(t, err)
			r, err := rrule.NewRRule(opt)
			require.NoError(t, err)

			var want []string
			for _, occ := range r.All() {
				want = append(want, calendar.DateOf(occ).String())
			}

			got := dateStrings(generatorFor(tc.typ)(anchor, end))
			assert.Equal(t, want, got)
		})
	}
}

func TestROptionRejectsNone(t *testing.T) {
	_, err := ROption(Rule{Type: TypeNone}, date(t, "2025-01-01"), date(t, "2025-12-31"))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRRuleString(t *testing.T) {
	value, err := RRuleString(Rule{Type: TypeMonthly}, date(t, "2025-01-31"), date(t, "2025-12-31"))
	require.NoError(t, err)
	assert.Equal(t, "FREQ=MONTHLY;INTERVAL=1;UNTIL=20251231T235959Z;BYMONTHDAY=31", value)

	value, err = RRuleString(Rule{Type: TypeYearly}, date(t, "2024-02-29"), date(t, "2032-12-31"))
	require.NoError(t, err)
	assert.Equal(t, "FREQ=YEARLY;INTERVAL=1;UNTIL=20321231T235959Z;BYMONTH=2;BYMONTHDAY=29", value)
}

func TestParseRRule(t *testing.T) {
	tests := []struct {
		value   string
		want    Type
		wantEnd string
	}{
		{"", TypeNone, ""},
		{"FREQ=DAILY", TypeDaily, ""},
		{"FREQ=WEEKLY;UNTIL=20251027T000000Z", TypeWeekly, "2025-10-27"},
		{"FREQ=MONTHLY;INTERVAL=1;BYMONTHDAY=31", TypeMonthly, ""},
		{"FREQ=YEARLY;UNTIL=20321231", TypeYearly, "2032-12-31"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			rule, err := ParseRRule(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rule.Type)
			assert.Equal(t, 1, rule.Interval)
			if tt.wantEnd == "" {
				assert.Nil(t, rule.EndDate)
			} else {
				require.NotNil(t, rule.EndDate)
				assert.Equal(t, tt.wantEnd, rule.EndDate.String())
			}
		})
	}
}

func TestRRuleStringRoundTrip(t *testing.T) {
	value, err := RRuleString(Rule{Type: TypeWeekly}, date(t, "2025-10-06"), date(t, "2025-10-27"))
	require.NoError(t, err)

	rule, err := ParseRRule(value)
	require.NoError(t, err)
	assert.Equal(t, TypeWeekly, rule.Type)
	require.NotNil(t, rule.EndDate)
	assert.Equal(t, "2025-10-27", rule.EndDate.String())
}

func TestParseRRuleErrors(t *testing.T) {
	_, err := ParseRRule("FREQ=HOURLY")
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = ParseRRule("not a rule")
	assert.Error(t, err)
}
