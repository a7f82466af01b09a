package service

import (
	"time"

	"eventflow/internal/model"
	"eventflow/internal/timefmt"
)

// SlotMinutes is the height of one calendar row.
const SlotMinutes = 15

// WeekDay is one column of the weekly calendar.
type WeekDay struct {
	Date     string
	DayName  string
	MonthDay string
	IsToday  bool
}

// Week returns days consecutive calendar days starting with the day of from.
func Week(from time.Time, days int) []WeekDay {
	y, m, d := from.Date()
	out := make([]WeekDay, 0, days)
	for i := 0; i < days; i++ {
		day := time.Date(y, m, d+i, 12, 0, 0, 0, from.Location())
		out = append(out, WeekDay{
			Date:     timefmt.ISO(day),
			DayName:  day.Format("Mon"),
			MonthDay: day.Format(timefmt.ShortDate),
			IsToday:  i == 0,
		})
	}
	return out
}

// TimeSlot is one row of the weekly calendar.
type TimeSlot struct {
	Time       string // HH:MM
	Display    string // 12-hour
	Minutes    int
	IsHourMark bool
}

// TimeSlots splits a day into SlotMinutes rows.
func TimeSlots() []TimeSlot {
	slots := make([]TimeSlot, 0, 24*60/SlotMinutes)
	for m := 0; m < 24*60; m += SlotMinutes {
		display := timefmt.FromMinutes(m)
		clock, _ := timefmt.To24Hour(display)
		slots = append(slots, TimeSlot{
			Time:       clock,
			Display:    display,
			Minutes:    m,
			IsHourMark: m%60 == 0,
		})
	}
	return slots
}

// EventAt returns the first event on date whose span covers the slot that
// starts at slotMinutes. Undated events count as today's, as in
// GroupAndSort.
func EventAt(events []model.Event, date, today string, slotMinutes int) (model.Event, bool) {
	for _, e := range events {
		if dateKey(e.Date, today) != date {
			continue
		}
		start, err := timefmt.ParseClock(e.Time)
		if err != nil {
			continue
		}
		if slotMinutes >= start && slotMinutes < start+e.Duration() {
			return e, true
		}
	}
	return model.Event{}, false
}

// SlotSpan is how many rows an event occupies, at least one.
func SlotSpan(e model.Event) int {
	n := (e.Duration() + SlotMinutes - 1) / SlotMinutes
	if n < 1 {
		return 1
	}
	return n
}
