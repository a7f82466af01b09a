// Package export renders the event list in external calendar formats.
package export

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"eventflow/internal/model"
	"eventflow/internal/timefmt"
)

const productID = "-//eventflow//events//EN"

// ICS renders events as an iCalendar document. Events without a date or
// with an unreadable time are skipped. now is written as DTSTAMP.
func ICS(events []model.Event, loc *time.Location, now time.Time) (string, error) {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName("EventFlow")

	added := 0
	for _, e := range events {
		if e.Date == "" {
			continue
		}
		start, err := timefmt.At(e.Date, e.Time, loc)
		if err != nil {
			continue
		}
		end := start.Add(time.Duration(e.Duration()) * time.Minute)

		ve := cal.AddEvent(uid(e.ID))
		ve.SetDtStampTime(now)
		ve.SetStartAt(start)
		ve.SetEndAt(end)
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		ve.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(e.Status)))
		added++
	}
	if added == 0 && len(events) > 0 {
		return "", fmt.Errorf("export ics: no dated events among %d", len(events))
	}
	return cal.Serialize(), nil
}

func uid(id model.EventID) string {
	return fmt.Sprintf("%s@eventflow", id)
}
