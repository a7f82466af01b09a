package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventflow/internal/eventbus"
	"eventflow/internal/logger"
	"eventflow/internal/model"
	"eventflow/internal/repository"
	"eventflow/internal/timefmt"
)

// EventDraft is the data required to create an event. Time may be given in
// 24-hour ("14:30") or 12-hour ("02:30 PM") form.
type EventDraft struct {
	Title           string
	Date            string
	Time            string
	Status          model.Status
	DurationMinutes int
	Description     string
}

// EventPatch holds the fields to change on update. Nil fields are kept.
type EventPatch struct {
	Title           *string
	Date            *string
	Time            *string
	Status          *model.Status
	DurationMinutes *int
	Description     *string
}

// EventPersister is the durable side of the store.
type EventPersister interface {
	Load(ctx context.Context) ([]model.Event, bool, error)
	Save(ctx context.Context, events []model.Event) error
}

// EventStore owns the event collection and the team roster. All methods
// are safe for concurrent use.
type EventStore struct {
	mu       sync.Mutex
	events   []model.Event
	team     []model.TeamMember
	repo     EventPersister
	bus      eventbus.Publisher
	log      *logger.Logger
	newID    func() string
	issued   map[model.EventID]struct{}
	degraded bool
}

// StoreOption customises an EventStore.
type StoreOption func(*EventStore)

// WithIDGenerator replaces the uuid-based id source.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *EventStore) { s.newID = fn }
}

// WithEvents sets the initial events, replacing the seeds.
func WithEvents(events []model.Event) StoreOption {
	return func(s *EventStore) { s.events = append([]model.Event(nil), events...) }
}

// WithTeam sets the roster, replacing the seeds.
func WithTeam(team []model.TeamMember) StoreOption {
	return func(s *EventStore) { s.team = append([]model.TeamMember(nil), team...) }
}

// WithLogger sets the store logger.
func WithLogger(l *logger.Logger) StoreOption {
	return func(s *EventStore) { s.log = l }
}

// NewEventStore builds a store seeded with the default events and roster.
// repo and bus may be nil.
func NewEventStore(repo EventPersister, bus eventbus.Publisher, opts ...StoreOption) *EventStore {
	s := &EventStore{
		events: model.SeedEvents(),
		team:   model.SeedTeam(),
		repo:   repo,
		bus:    bus,
		log:    logger.Nop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.issued = make(map[model.EventID]struct{}, len(s.events))
	s.remember(s.events)
	return s
}

// Load adopts the persisted events when a non-empty list is stored.
// A failed read leaves the seeds in place and disables persistence for the
// session. An unreadable payload keeps the seeds and is overwritten by the
// next save. Either way the error is only a warning.
func (s *EventStore) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	events, ok, err := s.repo.Load(ctx)
	if err != nil {
		var perr *repository.PersistenceError
		if errors.As(err, &perr) && perr.Op == "decode" {
			s.log.Warn("stored events unreadable, keeping defaults", "error", err)
		} else {
			s.mu.Lock()
			perr = s.degrade(err)
			s.mu.Unlock()
		}
		s.publish(eventbus.TopicPersistenceWarning, perr)
		return err
	}
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.events = events
	s.remember(events)
	snapshot := s.snapshot()
	s.mu.Unlock()

	s.log.Info("events loaded", "count", len(events))
	s.publish(eventbus.TopicEventsChanged, snapshot)
	return nil
}

// List returns a snapshot of all events in insertion order.
func (s *EventStore) List() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Team returns the roster.
func (s *EventStore) Team() []model.TeamMember {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TeamMember(nil), s.team...)
}

// Get returns one event.
func (s *EventStore) Get(id model.EventID) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.Event{}, fmt.Errorf("get event %s: %w", id, ErrNotFound)
	}
	return s.events[i], nil
}

// Degraded reports whether persistence was switched off after a failure.
func (s *EventStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Add validates draft and appends a new event with a fresh id.
func (s *EventStore) Add(ctx context.Context, draft EventDraft) (model.Event, error) {
	event := model.Event{
		Title:           strings.TrimSpace(draft.Title),
		Date:            strings.TrimSpace(draft.Date),
		Time:            draft.Time,
		Status:          draft.Status,
		DurationMinutes: draft.DurationMinutes,
		Description:     strings.TrimSpace(draft.Description),
	}
	if event.Status == "" {
		event.Status = model.StatusUpcoming
	}
	if err := normalize(&event); err != nil {
		return model.Event{}, err
	}

	s.mu.Lock()
	event.ID = s.uniqueID()
	s.events = append(s.events, event)
	snapshot := s.snapshot()
	warning := s.persist(ctx, snapshot)
	s.mu.Unlock()

	s.log.Info("event added", "id", event.ID, "title", event.Title)
	s.commit(warning, snapshot)
	return event, nil
}

// Update merges patch into the event with id.
func (s *EventStore) Update(ctx context.Context, id model.EventID, patch EventPatch) (model.Event, error) {
	return s.mutate(ctx, id, "update", true, func(e *model.Event) {
		if patch.Title != nil {
			e.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Date != nil {
			e.Date = strings.TrimSpace(*patch.Date)
		}
		if patch.Time != nil {
			e.Time = *patch.Time
		}
		if patch.Status != nil {
			e.Status = *patch.Status
		}
		if patch.DurationMinutes != nil {
			e.DurationMinutes = *patch.DurationMinutes
		}
		if patch.Description != nil {
			e.Description = strings.TrimSpace(*patch.Description)
		}
	})
}

// Move reschedules an event. Only date and time change.
func (s *EventStore) Move(ctx context.Context, id model.EventID, date, clock string) (model.Event, error) {
	return s.mutate(ctx, id, "move", true, func(e *model.Event) {
		e.Date = strings.TrimSpace(date)
		e.Time = clock
	})
}

// Complete marks an event completed on the user's request. It does not
// revalidate, so undated seed events can be completed too.
func (s *EventStore) Complete(ctx context.Context, id model.EventID) (model.Event, error) {
	return s.mutate(ctx, id, "complete", false, func(e *model.Event) {
		e.Status = model.StatusCompleted
	})
}

// Remove deletes the event with id. Unknown ids are ignored.
func (s *EventStore) Remove(ctx context.Context, id model.EventID) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.events = append(s.events[:i], s.events[i+1:]...)
	snapshot := s.snapshot()
	warning := s.persist(ctx, snapshot)
	s.mu.Unlock()

	s.log.Info("event removed", "id", id)
	s.commit(warning, snapshot)
}

// ApplyStatuses runs the status ratchet against now and reports whether
// anything changed.
func (s *EventStore) ApplyStatuses(ctx context.Context, now time.Time, g Granularity) bool {
	s.mu.Lock()
	result := Reconcile(s.events, now, g)
	if !result.Changed {
		s.mu.Unlock()
		return false
	}
	s.events = result.Events
	snapshot := s.snapshot()
	warning := s.persist(ctx, snapshot)
	s.mu.Unlock()

	s.log.Debug("event statuses advanced", "at", now)
	s.commit(warning, snapshot)
	return true
}

func (s *EventStore) mutate(ctx context.Context, id model.EventID, op string, validate bool, apply func(*model.Event)) (model.Event, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Event{}, fmt.Errorf("%s event %s: %w", op, id, ErrNotFound)
	}

	updated := s.events[i]
	apply(&updated)
	if validate {
		if err := normalize(&updated); err != nil {
			s.mu.Unlock()
			return model.Event{}, err
		}
	}
	s.events[i] = updated
	snapshot := s.snapshot()
	warning := s.persist(ctx, snapshot)
	s.mu.Unlock()

	s.log.Info("event "+op+"d", "id", id)
	s.commit(warning, snapshot)
	return updated, nil
}

// normalize validates e and rewrites time and the display date in canonical
// form.
func normalize(e *model.Event) error {
	verr := &ValidationError{}

	if len([]rune(e.Title)) < 3 {
		verr.add("title", "Event title must be at least 3 characters")
	}
	if e.Date == "" {
		verr.add("date", "Please select a date")
	} else if _, err := timefmt.ParseDate(e.Date, time.UTC); err != nil {
		verr.add("date", "Date must be in YYYY-MM-DD format")
	}
	if strings.TrimSpace(e.Time) == "" {
		verr.add("time", "Please select a time")
	} else if t, err := timefmt.To12Hour(e.Time); err != nil {
		verr.add("time", "Time must look like 14:30 or 02:30 PM")
	} else {
		e.Time = t
	}
	if !e.Status.Valid() {
		verr.add("status", "Please select a status")
	}
	if e.DurationMinutes < 0 {
		verr.add("duration", "Duration must not be negative")
	}

	if err := verr.orNil(); err != nil {
		return err
	}
	e.DateFormatted = timefmt.FormatDisplayDate(e.Date)
	return nil
}

// uniqueID draws ids until one has never been seen by this store, so ids
// of deleted events are not handed out again. Callers hold s.mu.
func (s *EventStore) uniqueID() model.EventID {
	for {
		id := model.EventID(s.newID())
		if _, seen := s.issued[id]; id != "" && !seen {
			s.issued[id] = struct{}{}
			return id
		}
	}
}

func (s *EventStore) remember(events []model.Event) {
	for _, e := range events {
		s.issued[e.ID] = struct{}{}
	}
}

func (s *EventStore) indexOf(id model.EventID) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *EventStore) snapshot() []model.Event {
	return append([]model.Event(nil), s.events...)
}

// persist writes the full list and returns a warning when the write
// failed. Callers hold s.mu.
func (s *EventStore) persist(ctx context.Context, events []model.Event) *repository.PersistenceError {
	if s.repo == nil || s.degraded {
		return nil
	}
	if err := s.repo.Save(ctx, events); err != nil {
		return s.degrade(err)
	}
	return nil
}

// degrade switches persistence off for the rest of the session. Callers
// hold s.mu.
func (s *EventStore) degrade(err error) *repository.PersistenceError {
	s.degraded = true
	var perr *repository.PersistenceError
	if !errors.As(err, &perr) {
		perr = &repository.PersistenceError{Op: "save", Key: repository.EventsKey, Err: err}
	}
	s.log.Warn("persistence disabled for this session", "error", err)
	return perr
}

// commit notifies subscribers once the lock is released.
func (s *EventStore) commit(warning *repository.PersistenceError, snapshot []model.Event) {
	if warning != nil {
		s.publish(eventbus.TopicPersistenceWarning, warning)
	}
	s.publish(eventbus.TopicEventsChanged, snapshot)
}

func (s *EventStore) publish(topic eventbus.Topic, payload any) {
	if s.bus != nil {
		s.bus.Publish(topic, payload)
	}
}
