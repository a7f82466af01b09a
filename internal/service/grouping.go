package service

import (
	"sort"
	"time"

	"eventflow/internal/model"
	"eventflow/internal/timefmt"
)

// DateGroup is one calendar day and its events in time order.
type DateGroup struct {
	Date   string
	Events []model.Event
}

// GroupAndSort buckets events by calendar day. Events without a date land
// under today. Days come out in ascending order; events within a day are
// ordered by time of day, keeping input order for equal times.
func GroupAndSort(events []model.Event, today string) []DateGroup {
	if len(events) == 0 {
		return []DateGroup{}
	}

	byDate := make(map[string][]model.Event)
	var keys []string
	for _, e := range events {
		key := dateKey(e.Date, today)
		if _, ok := byDate[key]; !ok {
			keys = append(keys, key)
		}
		byDate[key] = append(byDate[key], e)
	}
	sort.Strings(keys)

	groups := make([]DateGroup, 0, len(keys))
	for _, key := range keys {
		list := byDate[key]
		sort.SliceStable(list, func(i, j int) bool {
			return timefmt.MinutesSinceMidnight(list[i].Time) < timefmt.MinutesSinceMidnight(list[j].Time)
		})
		groups = append(groups, DateGroup{Date: key, Events: list})
	}
	return groups
}

// Flatten concatenates the groups back into one list.
func Flatten(groups []DateGroup) []model.Event {
	var out []model.Event
	for _, g := range groups {
		out = append(out, g.Events...)
	}
	return out
}

// dateKey canonicalises d to YYYY-MM-DD so that string order matches
// calendar order. Unparseable dates are kept verbatim.
func dateKey(d, today string) string {
	if d == "" {
		return today
	}
	t, err := timefmt.ParseDate(d, time.UTC)
	if err != nil {
		return d
	}
	return timefmt.ISO(t)
}
