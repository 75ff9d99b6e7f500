package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calrepeat/internal/logging"
	"calrepeat/internal/recurrence"
)

func newTestParser() *Parser {
	return NewParser(logging.Discard())
}

func TestValidateICS(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "valid basic calendar",
			data: `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:test@example.com
DTSTART:20231015T140000Z
DTEND:20231015T150000Z
SUMMARY:Test Event
END:VEVENT
END:VCALENDAR`,
			wantErr: false,
		},
		{
			name:    "missing BEGIN:VCALENDAR",
			data:    "VERSION:2.0\nEND:VCALENDAR",
			wantErr: true,
		},
		{
			name:    "missing END:VCALENDAR",
			data:    "BEGIN:VCALENDAR\nVERSION:2.0",
			wantErr: true,
		},
		{
			name: "unbalanced BEGIN/END",
			data: `BEGIN:VCALENDAR
BEGIN:VEVENT
SUMMARY:Test
END:VCALENDAR`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateICS([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateICS() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseYAML_List(t *testing.T) {
	doc := `events:
  - title: Weekly sync
    date: 2025-10-06
    startTime: "14:00"
    endTime: "15:00"
    category: work
    notificationTime: 10
    repeat:
      type: weekly
      endDate: 2025-10-27
  - title: Dentist
    date: 2025-10-15
    startTime: "08:00"
    endTime: "08:30"
`
	templates, err := newTestParser().ParseYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, templates, 2)

	sync := templates[0]
	assert.Equal(t, "Weekly sync", sync.Title)
	assert.Equal(t, "2025-10-06", sync.Date.String())
	assert.Equal(t, recurrence.TypeWeekly, sync.Repeat.Type)
	assert.Equal(t, 1, sync.Repeat.Interval)
	require.NotNil(t, sync.Repeat.EndDate)
	assert.Equal(t, "2025-10-27", sync.Repeat.EndDate.String())
	assert.Equal(t, 10, sync.NotificationTime)

	dentist := templates[1]
	assert.Equal(t, recurrence.TypeNone, dentist.Repeat.Type)
	assert.Nil(t, dentist.Repeat.EndDate)
}

func TestParseYAML_Single(t *testing.T) {
	doc := `title: Rent
date: 2025-01-31
startTime: "09:00"
endTime: "09:30"
repeat:
  type: monthly
`
	templates, err := newTestParser().ParseYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, recurrence.TypeMonthly, templates[0].Repeat.Type)
}

func TestParseYAML_Errors(t *testing.T) {
	p := newTestParser()

	_, err := p.ParseYAML(strings.NewReader(""))
	assert.Error(t, err)

	_, err = p.ParseYAML(strings.NewReader("description: no title\n"))
	assert.ErrorContains(t, err, "no events")

	_, err = p.ParseYAML(strings.NewReader(`events:
  - title: Bad
    date: 2025-02-30
    startTime: "09:00"
    endTime: "10:00"
`))
	assert.Error(t, err)

	_, err = p.ParseYAML(strings.NewReader(`events:
  - title: Hourly
    date: 2025-02-03
    startTime: "09:00"
    endTime: "10:00"
    repeat:
      type: hourly
`))
	assert.ErrorIs(t, err, recurrence.ErrUnknownType)
}

func TestParseJSON(t *testing.T) {
	doc := `{"events": [{
		"title": "Birthday",
		"date": "2024-02-29",
		"startTime": "18:00",
		"endTime": "21:00",
		"repeat": {"type": "yearly", "interval": 1, "endDate": "2032-12-31"},
		"notificationTime": 60
	}]}`

	templates, err := newTestParser().ParseJSON(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "2024-02-29", templates[0].Date.String())
	assert.Equal(t, recurrence.TypeYearly, templates[0].Repeat.Type)
	assert.Equal(t, 60, templates[0].NotificationTime)

	single, err := newTestParser().ParseJSON(strings.NewReader(
		`{"title": "Call", "date": "2025-10-01", "startTime": "10:00", "endTime": "10:15"}`))
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, "Call", single[0].Title)
}

func TestParseICS_CollapsesExpandedInstances(t *testing.T) {
	ics := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:sync@example.com
DTSTART:20251006T140000Z
DTEND:20251006T150000Z
SUMMARY:Weekly sync
DESCRIPTION:Team meeting
LOCATION:Room A
CATEGORIES:work
RRULE:FREQ=WEEKLY;UNTIL=20251027T235959Z
END:VEVENT
BEGIN:VEVENT
UID:dentist@example.com
DTSTART:20251015T080000Z
DTEND:20251015T083000Z
SUMMARY:Dentist
END:VEVENT
END:VCALENDAR
`
	templates, err := newTestParser().ParseICS(strings.NewReader(ics))
	require.NoError(t, err)
	require.Len(t, templates, 2)

	sync := templates[0]
	assert.Equal(t, "Weekly sync", sync.Title)
	assert.Equal(t, "2025-10-06", sync.Date.String())
	assert.Equal(t, "14:00", sync.StartTime)
	assert.Equal(t, "15:00", sync.EndTime)
	assert.Equal(t, "Team meeting", sync.Description)
	assert.Equal(t, "Room A", sync.Location)
	assert.Equal(t, "work", sync.Category)
	assert.Equal(t, recurrence.TypeWeekly, sync.Repeat.Type)
	require.NotNil(t, sync.Repeat.EndDate)
	assert.Equal(t, "2025-10-27", sync.Repeat.EndDate.String())

	dentist := templates[1]
	assert.Equal(t, "2025-10-15", dentist.Date.String())
	assert.Equal(t, recurrence.TypeNone, dentist.Repeat.Type)
}

func TestParseICS_Invalid(t *testing.T) {
	_, err := newTestParser().ParseICS(strings.NewReader("BEGIN:VCALENDAR\nVERSION:2.0"))
	assert.Error(t, err)
}

func TestRRuleValue(t *testing.T) {
	assert.Equal(t, "", rruleValue(nil))
	assert.Equal(t, "FREQ=MONTHLY;BYMONTHDAY=31;UNTIL=20251231T000000Z", rruleValue(map[string]string{
		"UNTIL":      "20251231T000000Z",
		"FREQ":       "MONTHLY",
		"BYMONTHDAY": "31",
	}))
}

func TestParseDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	good := write("work.yaml", `title: Standup
date: 2025-10-06
startTime: "09:00"
endTime: "09:15"
repeat:
  type: daily
  endDate: 2025-10-10
`)
	nested := write("home/chores.json", `{"title": "Trash", "date": "2025-10-07", "startTime": "19:00", "endTime": "19:10", "repeat": {"type": "weekly"}}`)
	write("broken.yml", "title: [")
	write("notes.txt", "ignored")

	result, err := newTestParser().ParseDirectory(dir)
	require.NoError(t, err)
	assert.Len(t, result, 2)
	assert.Len(t, result[good], 1)
	assert.Len(t, result[nested], 1)
	assert.Equal(t, recurrence.TypeWeekly, result[nested][0].Repeat.Type)
}

func TestParseFile_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := newTestParser().ParseFile(path)
	assert.ErrorIs(t, err, ErrUnsupportedFile)
	assert.True(t, Supported("a.YML"))
	assert.False(t, Supported("a.txt"))
}

func TestSetMaxEvents(t *testing.T) {
	p := newTestParser()
	p.SetMaxEvents(1)

	_, err := p.ParseYAML(strings.NewReader(`events:
  - {title: A, date: 2025-10-01, startTime: "09:00", endTime: "10:00"}
  - {title: B, date: 2025-10-02, startTime: "09:00", endTime: "10:00"}
`))
	assert.ErrorContains(t, err, "limit is 1")
}
