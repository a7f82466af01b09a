package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventflow/internal/model"
	"eventflow/internal/timefmt"
)

func times(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Time)
	}
	return out
}

func TestGroupAndSortScenario(t *testing.T) {
	events := []model.Event{
		{ID: "1", Date: "2025-01-15", Time: "02:30 PM"},
		{ID: "2", Date: "2025-01-15", Time: "09:00 AM"},
		{ID: "3", Date: "2025-01-14", Time: "11:00 AM"},
	}

	groups := GroupAndSort(events, "2025-01-20")

	require.Len(t, groups, 2)
	assert.Equal(t, "2025-01-14", groups[0].Date)
	assert.Equal(t, []string{"11:00 AM"}, times(groups[0].Events))
	assert.Equal(t, "2025-01-15", groups[1].Date)
	assert.Equal(t, []string{"09:00 AM", "02:30 PM"}, times(groups[1].Events))
}

func TestGroupAndSortEmpty(t *testing.T) {
	groups := GroupAndSort(nil, "2025-01-15")
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestGroupAndSortUndatedFallsBackToToday(t *testing.T) {
	events := []model.Event{
		{ID: "1", Time: "11:00 AM"},
		{ID: "2", Date: "2025-01-15", Time: "09:00 AM"},
	}
	groups := GroupAndSort(events, "2025-01-15")
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"09:00 AM", "11:00 AM"}, times(groups[0].Events))
}

func TestGroupAndSortStableForEqualTimes(t *testing.T) {
	events := []model.Event{
		{ID: "b", Date: "2025-01-15", Time: "09:00 AM"},
		{ID: "a", Date: "2025-01-15", Time: "09:00 AM"},
		{ID: "c", Date: "2025-01-15", Time: "08:00 AM"},
	}
	groups := GroupAndSort(events, "2025-01-15")
	ids := []model.EventID{}
	for _, e := range groups[0].Events {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []model.EventID{"c", "b", "a"}, ids)
}

func TestGroupAndSortInvariants(t *testing.T) {
	events := []model.Event{
		{ID: "1", Date: "2025-03-01", Time: "12:00 AM"},
		{ID: "2", Date: "2024-12-31", Time: "11:59 PM"},
		{ID: "3", Date: "2025-03-01", Time: "12:00 PM"},
		{ID: "4", Time: "07:15 AM"},
		{ID: "5", Date: "2025-01-15", Time: "12:30 AM"},
		{ID: "6", Date: "2024-12-31", Time: "06:00 AM"},
		{ID: "7", Date: "2025-03-01", Time: "03:45 PM"},
	}
	groups := GroupAndSort(events, "2025-01-15")

	for i := 1; i < len(groups); i++ {
		assert.Less(t, groups[i-1].Date, groups[i].Date)
	}
	for _, g := range groups {
		for i := 1; i < len(g.Events); i++ {
			assert.LessOrEqual(t,
				timefmt.MinutesSinceMidnight(g.Events[i-1].Time),
				timefmt.MinutesSinceMidnight(g.Events[i].Time))
		}
	}

	again := GroupAndSort(Flatten(groups), "2025-01-15")
	assert.Equal(t, groups, again)
	assert.Len(t, Flatten(groups), len(events))
}
