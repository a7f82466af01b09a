package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// EventID is an opaque event identifier. Older payloads stored numeric ids,
// so it decodes from either a JSON string or a JSON number.
type EventID string

func (id *EventID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = EventID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*id = EventID(n.String())
	return nil
}

// Status is the lifecycle state of an event.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
)

// DefaultDurationMinutes applies when an event carries no duration.
const DefaultDurationMinutes = 60

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusOngoing, StatusCompleted:
		return true
	}
	return false
}

// Rank orders statuses along upcoming -> ongoing -> completed.
func (s Status) Rank() int {
	switch s {
	case StatusOngoing:
		return 1
	case StatusCompleted:
		return 2
	default:
		return 0
	}
}

// Event is a single scheduled item on the dashboard.
type Event struct {
	ID              EventID `json:"id"`
	Title           string  `json:"title"`
	Date            string  `json:"date,omitempty"` // YYYY-MM-DD
	Time            string  `json:"time"`           // 12-hour, e.g. "02:30 PM"
	Status          Status  `json:"status"`
	DurationMinutes int     `json:"duration,omitempty"`
	Description     string  `json:"description,omitempty"`
	DateFormatted   string  `json:"dateFormatted,omitempty"`
}

// Duration returns the event length in minutes, defaulting to an hour.
func (e Event) Duration() int {
	if e.DurationMinutes <= 0 {
		return DefaultDurationMinutes
	}
	return e.DurationMinutes
}
