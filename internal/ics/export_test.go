package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calrepeat/internal/calendar"
	"calrepeat/internal/recurrence"
	"calrepeat/internal/testfixtures"
)

var stamp = time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)

func generate(t *testing.T, typ recurrence.Type, anchor, end string) []recurrence.Record {
	t.Helper()
	endDate := calendar.MustParseDate(end)
	engine := recurrence.NewEngine(
		recurrence.WithClock(testfixtures.NewClock(time.Time{})),
		recurrence.WithIDSource(testfixtures.NewIDGenerator("evt")),
	)
	records, err := engine.Generate(recurrence.Template{
		Title:            "Weekly sync",
		Date:             calendar.MustParseDate(anchor),
		StartTime:        "14:00",
		EndTime:          "15:00",
		Description:      "Team meeting",
		Location:         "Room A",
		Category:         "work",
		Repeat:           recurrence.Rule{Type: typ, Interval: 1, EndDate: &endDate},
		NotificationTime: 10,
	})
	require.NoError(t, err)
	return records
}

func parse(t *testing.T, buf *bytes.Buffer) *ical.Calendar {
	t.Helper()
	cal, err := ical.ParseCalendar(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	return cal
}

func propValue(event *ical.VEvent, prop ical.ComponentProperty) string {
	if p := event.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func TestExport_OneEventPerRecord(t *testing.T) {
	records := generate(t, recurrence.TypeWeekly, "2025-10-06", "2025-10-27")

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, records, Options{Stamp: stamp, Name: "Work"}))

	cal := parse(t, &buf)
	events := cal.Events()
	require.Len(t, events, 4)

	first := events[0]
	assert.Equal(t, records[0].ID, propValue(first, ical.ComponentPropertyUniqueId))
	assert.Equal(t, "20251006T140000", propValue(first, ical.ComponentPropertyDtStart))
	assert.Equal(t, "20251006T150000", propValue(first, ical.ComponentPropertyDtEnd))
	assert.Equal(t, "Weekly sync", propValue(first, ical.ComponentPropertySummary))
	assert.Equal(t, "Room A", propValue(first, ical.ComponentPropertyLocation))
	assert.Equal(t, "work", propValue(first, ical.ComponentPropertyCategories))
	assert.Equal(t, records[0].SeriesID(), propValue(first, ical.ComponentPropertyRelatedTo))
	assert.Nil(t, first.GetProperty(ical.ComponentPropertyRrule))

	alarms := first.Alarms()
	require.Len(t, alarms, 1)
	assert.Equal(t, "-PT10M", alarms[0].GetProperty(ical.ComponentPropertyTrigger).Value)
	assert.Equal(t, "DISPLAY", alarms[0].GetProperty(ical.ComponentPropertyAction).Value)

	assert.Equal(t, "20251027T140000", propValue(events[3], ical.ComponentPropertyDtStart))
	assert.Contains(t, buf.String(), "X-WR-CALNAME:Work")
}

func TestExport_CollapseSeries(t *testing.T) {
	records := generate(t, recurrence.TypeMonthly, "2025-01-31", "2025-12-31")
	require.Len(t, records, 7)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, records, Options{Collapse: true, Stamp: stamp}))

	events := parse(t, &buf).Events()
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, records[0].SeriesID(), propValue(event, ical.ComponentPropertyUniqueId))
	assert.Equal(t, "20250131T140000", propValue(event, ical.ComponentPropertyDtStart))
	assert.Equal(t, "FREQ=MONTHLY;INTERVAL=1;UNTIL=20251231T235959Z;BYMONTHDAY=31",
		propValue(event, ical.ComponentPropertyRrule))
	assert.Empty(t, event.GetProperties(ical.ComponentPropertyExdate))
	assert.Nil(t, event.GetProperty(ical.ComponentPropertyRelatedTo))
}

func TestExport_CollapseWritesExdateForRemovedOccurrences(t *testing.T) {
	records := generate(t, recurrence.TypeWeekly, "2025-10-06", "2025-10-27")
	kept := []recurrence.Record{records[0], records[1], records[3]}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, kept, Options{Collapse: true, Stamp: stamp}))

	events := parse(t, &buf).Events()
	require.Len(t, events, 1)

	exdates := events[0].GetProperties(ical.ComponentPropertyExdate)
	require.Len(t, exdates, 1)
	assert.Equal(t, "20251020T140000", exdates[0].Value)
}

func TestExport_CollapseKeepsStandaloneEvents(t *testing.T) {
	series := generate(t, recurrence.TypeDaily, "2025-10-06", "2025-10-08")
	detached := series[1]
	detached.Repeat.Type = recurrence.TypeNone
	detached.Repeat.SeriesID = ""
	detached.NotificationTime = 0

	records := []recurrence.Record{series[0], detached, series[2]}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, records, Options{Collapse: true, Stamp: stamp}))

	events := parse(t, &buf).Events()
	require.Len(t, events, 2)

	var standalone, collapsed *ical.VEvent
	for _, e := range events {
		if e.GetProperty(ical.ComponentPropertyRrule) != nil {
			collapsed = e
		} else {
			standalone = e
		}
	}
	require.NotNil(t, standalone)
	require.NotNil(t, collapsed)
	assert.Equal(t, detached.ID, propValue(standalone, ical.ComponentPropertyUniqueId))
	assert.Empty(t, standalone.Alarms())

	exdates := collapsed.GetProperties(ical.ComponentPropertyExdate)
	require.Len(t, exdates, 1)
	assert.Equal(t, "20251007T140000", exdates[0].Value)
}

func TestFloating(t *testing.T) {
	d := calendar.MustParseDate("2024-02-29")
	assert.Equal(t, "20240229T093000", floating(d, "09:30"))
	assert.Equal(t, "20240229T000000", floating(d, "bad"))
}

func TestExportIsReadableByRFCParsers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, generate(t, recurrence.TypeDaily, "2025-10-06", "2025-10-07"), Options{Stamp: stamp}))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Contains(t, out, "PRODID:-//calrepeat//Golang ICS Library")
	assert.Contains(t, out, "DTSTAMP:20251001T090000Z")
}
