package service

import (
	"fmt"
	"time"

	"eventflow/internal/model"
	"eventflow/internal/timefmt"
)

// Granularity selects how event times are compared with the clock.
type Granularity int

const (
	// GranularityMinute compares full start and end instants, honouring the
	// event date and duration.
	GranularityMinute Granularity = iota
	// GranularityHour compares hour-of-day only and ignores the date.
	GranularityHour
)

func (g Granularity) String() string {
	if g == GranularityHour {
		return "hour"
	}
	return "minute"
}

// ParseGranularity maps "minute" and "hour" to a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "", "minute":
		return GranularityMinute, nil
	case "hour":
		return GranularityHour, nil
	}
	return GranularityMinute, fmt.Errorf("unknown granularity %q", s)
}

// ReconcileResult is the outcome of one status pass.
type ReconcileResult struct {
	Changed bool
	Events  []model.Event
}

// Reconcile advances event statuses against now. Statuses only move
// forward along upcoming -> ongoing -> completed. The input is not modified.
func Reconcile(events []model.Event, now time.Time, g Granularity) ReconcileResult {
	out := make([]model.Event, len(events))
	changed := false
	for i, e := range events {
		next := nextStatus(e, now, g)
		if next != e.Status && next.Rank() > e.Status.Rank() {
			e.Status = next
			changed = true
		}
		out[i] = e
	}
	return ReconcileResult{Changed: changed, Events: out}
}

func nextStatus(e model.Event, now time.Time, g Granularity) model.Status {
	if g == GranularityHour {
		return nextStatusByHour(e, now)
	}
	return nextStatusByMinute(e, now)
}

func nextStatusByHour(e model.Event, now time.Time) model.Status {
	eventHour, err := timefmt.HourOf(e.Time)
	if err != nil {
		return e.Status
	}
	nowHour := now.Hour()
	switch {
	case eventHour < nowHour && e.Status != model.StatusCompleted:
		return model.StatusCompleted
	case eventHour == nowHour && e.Status == model.StatusUpcoming:
		return model.StatusOngoing
	}
	return e.Status
}

func nextStatusByMinute(e model.Event, now time.Time) model.Status {
	date := e.Date
	if date == "" {
		date = timefmt.ISO(now)
	}
	start, err := timefmt.At(date, e.Time, now.Location())
	if err != nil {
		return e.Status
	}
	end := start.Add(time.Duration(e.Duration()) * time.Minute)

	switch {
	case !now.Before(end) && e.Status != model.StatusCompleted:
		return model.StatusCompleted
	case !now.Before(start) && e.Status == model.StatusUpcoming:
		return model.StatusOngoing
	}
	return e.Status
}
