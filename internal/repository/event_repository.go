package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"eventflow/internal/model"
)

// EventsKey is where the event list lives.
const EventsKey = "event-dashboard-events"

// EventRepository stores the whole event list as one JSON array.
type EventRepository struct {
	kv  KeyValueStore
	key string
}

func NewEventRepository(kv KeyValueStore) *EventRepository {
	return &EventRepository{kv: kv, key: EventsKey}
}

// Load returns the stored events. ok is false when nothing usable is
// stored: a missing key, a non-array payload or an empty array.
func (r *EventRepository) Load(ctx context.Context) (events []model.Event, ok bool, err error) {
	raw, found, err := r.kv.Get(ctx, r.key)
	if err != nil {
		return nil, false, err
	}
	if !found || len(raw) == 0 {
		return nil, false, nil
	}
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, false, &PersistenceError{Op: "decode", Key: r.key, Err: err}
	}
	if len(events) == 0 {
		return nil, false, nil
	}
	return events, true, nil
}

// Save replaces the stored list.
func (r *EventRepository) Save(ctx context.Context, events []model.Event) error {
	if events == nil {
		events = []model.Event{}
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: r.key, Err: fmt.Errorf("marshal events: %w", err)}
	}
	return r.kv.Set(ctx, r.key, raw)
}
