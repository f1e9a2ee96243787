package ics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/ics"
)

var (
	windowStart = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC)
)

func TestStamp_Time(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name  string
		stamp ics.Stamp
		want  time.Time
	}{
		{"utc", ics.Stamp{Value: "20250305T090000Z"}, time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)},
		{"zoned", ics.Stamp{Value: "20250305T080000", TZID: "America/New_York"}, time.Date(2025, 3, 5, 8, 0, 0, 0, newYork)},
		{"utc ignores zone", ics.Stamp{Value: "20250305T090000Z", TZID: "America/New_York"}, time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)},
		{"floating", ics.Stamp{Value: "20250305T090000"}, time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)},
		{"unknown zone", ics.Stamp{Value: "20250305T090000", TZID: "Nowhere/Special"}, time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)},
		{"date", ics.Stamp{Value: "20250305", TZID: "America/New_York"}, time.Date(2025, 3, 5, 0, 0, 0, 0, newYork)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.stamp.Time()
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err = ics.Stamp{Value: "2025-03-05"}.Time()
	assert.Error(t, err)
}

func TestExpand_DurationForms(t *testing.T) {
	tests := []struct {
		duration string
		wantEnd  string
	}{
		{"PT45M", "20250306T094500Z"},
		{"P1DT2H30M", "20250307T113000Z"},
		{"P1W", "20250313T090000Z"},
	}
	for _, tt := range tests {
		t.Run(tt.duration, func(t *testing.T) {
			comps := []ics.Component{{
				UID:      "timed",
				Start:    ics.Stamp{Value: "20250306T090000Z"},
				Duration: tt.duration,
			}}
			events, err := ics.Expand("cal", comps, windowStart, windowEnd)
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantEnd, events[0].End.DateTime)
		})
	}
}

func TestExpand_BadDurationIsDropped(t *testing.T) {
	comps := []ics.Component{{
		UID:      "odd",
		Start:    ics.Stamp{Value: "20250306T090000Z"},
		Duration: "PT5",
	}}

	events, err := ics.Expand("cal", comps, windowStart, windowEnd)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestExpand_SingleEventsFilteredByWindow(t *testing.T) {
	comps := []ics.Component{
		{
			UID:     "inside",
			Summary: "Review",
			Start:   ics.Stamp{Value: "20250305T090000Z"},
			End:     ics.Stamp{Value: "20250305T100000Z"},
		},
		{
			UID:   "before",
			Start: ics.Stamp{Value: "20250201T090000Z"},
			End:   ics.Stamp{Value: "20250201T100000Z"},
		},
		{
			UID:      "duration",
			Start:    ics.Stamp{Value: "20250306T090000Z"},
			Duration: "PT45M",
		},
	}

	events, err := ics.Expand("cal", comps, windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "inside", events[0].ID)
	assert.Equal(t, "cal", events[0].CalendarID)
	assert.Equal(t, "Review", events[0].Title)
	assert.Equal(t, "20250305T090000Z", events[0].Start.DateTime)
	assert.False(t, events[0].Recurring)

	assert.Equal(t, "duration", events[1].ID)
	assert.Equal(t, "20250306T094500Z", events[1].End.DateTime)
}

func TestExpand_UnparseableEventIsPassedThrough(t *testing.T) {
	comps := []ics.Component{{UID: "broken", Start: ics.Stamp{Value: "not-a-date"}}}

	events, err := ics.Expand("cal", comps, windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "not-a-date", events[0].Start.DateTime)
}

func TestExpand_AllDayEventKeepsDateForm(t *testing.T) {
	comps := []ics.Component{{
		UID:   "holiday",
		Start: ics.Stamp{Value: "20250310"},
	}}

	events, err := ics.Expand("cal", comps, windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "20250310", events[0].Start.Date)
	assert.Equal(t, "20250311", events[0].End.Date)
	assert.Empty(t, events[0].Start.DateTime)
}

func TestExpand_RecurringWithExdateAndOverride(t *testing.T) {
	comps := []ics.Component{
		{
			UID:     "weekly",
			Summary: "Planning",
			Start:   ics.Stamp{Value: "20250303T100000", TZID: "Europe/Berlin"},
			End:     ics.Stamp{Value: "20250303T110000", TZID: "Europe/Berlin"},
			RRule:   "FREQ=WEEKLY;COUNT=4",
			ExDates: []ics.Stamp{{Value: "20250310T100000", TZID: "Europe/Berlin"}},
		},
		{
			UID:          "weekly",
			Summary:      "Planning (moved)",
			Start:        ics.Stamp{Value: "20250317T140000", TZID: "Europe/Berlin"},
			End:          ics.Stamp{Value: "20250317T150000", TZID: "Europe/Berlin"},
			RecurrenceID: ics.Stamp{Value: "20250317T100000", TZID: "Europe/Berlin"},
		},
	}

	events, err := ics.Expand("cal", comps, windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, events, 2)

	byID := map[string]int{}
	for i, ev := range events {
		byID[ev.ID] = i
		assert.True(t, ev.Recurring, ev.ID)
	}

	first, ok := byID["weekly_20250303T090000Z"]
	require.True(t, ok)
	assert.Equal(t, "Planning", events[first].Title)
	assert.Equal(t, "20250303T100000", events[first].Start.DateTime)
	assert.Equal(t, "Europe/Berlin", events[first].Start.TimeZone)
	assert.Equal(t, "20250303T110000", events[first].End.DateTime)

	moved, ok := byID["weekly_20250317T090000Z"]
	require.True(t, ok)
	assert.Equal(t, "Planning (moved)", events[moved].Title)
	assert.Equal(t, "20250317T140000", events[moved].Start.DateTime)

	_, excluded := byID["weekly_20250310T090000Z"]
	assert.False(t, excluded)
}

func TestExpand_InstanceStartedBeforeWindowIsIncluded(t *testing.T) {
	comps := []ics.Component{{
		UID:   "overnight",
		Start: ics.Stamp{Value: "20250301T220000Z"},
		End:   ics.Stamp{Value: "20250302T020000Z"},
		RRule: "FREQ=DAILY;COUNT=3",
	}}

	events, err := ics.Expand("cal", comps, windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "overnight_20250302T220000Z", events[0].ID)
	assert.Equal(t, "overnight_20250303T220000Z", events[1].ID)
	assert.Equal(t, "20250303T020000Z", events[0].End.DateTime)
}

func TestExpand_InvalidRuleFails(t *testing.T) {
	comps := []ics.Component{{
		UID:   "bad",
		Start: ics.Stamp{Value: "20250303T100000Z"},
		End:   ics.Stamp{Value: "20250303T110000Z"},
		RRule: "FREQ=SOMETIMES",
	}}

	_, err := ics.Expand("cal", comps, windowStart, windowEnd)
	assert.Error(t, err)
}
