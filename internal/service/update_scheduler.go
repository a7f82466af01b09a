package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eventflow/internal/clock"
	"eventflow/internal/eventbus"
	"eventflow/internal/logger"
	"eventflow/internal/timefmt"
)

// SchedulerState is Stopped or Running.
type SchedulerState int

const (
	Stopped SchedulerState = iota
	Running
)

func (s SchedulerState) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// UpdateConfig sets the cadences of the periodic jobs.
type UpdateConfig struct {
	StatsInterval  time.Duration
	StatusInterval time.Duration
	ClockInterval  time.Duration
	RefreshDelay   time.Duration
	Granularity    Granularity
}

// DefaultUpdateConfig is 10s stats, 30s statuses, 1s clock, 500ms refresh.
func DefaultUpdateConfig() UpdateConfig {
	return UpdateConfig{
		StatsInterval:  10 * time.Second,
		StatusInterval: 30 * time.Second,
		ClockInterval:  time.Second,
		RefreshDelay:   500 * time.Millisecond,
		Granularity:    GranularityMinute,
	}
}

// RefreshCompleted is the payload of eventbus.TopicRefreshCompleted.
type RefreshCompleted struct {
	At time.Time
}

// UpdateScheduler drives the stats, status and clock jobs on independent
// cadences. Job bodies are serialized so that no two ever overlap.
type UpdateScheduler struct {
	store  *EventStore
	stats  StatsEngine
	clock  clock.Clock
	ticker Ticker
	bus    eventbus.Publisher
	cfg    UpdateConfig
	log    *logger.Logger

	jobMu   sync.Mutex
	stateMu sync.Mutex
	state   SchedulerState
	cancels []func()
}

func NewUpdateScheduler(store *EventStore, stats StatsEngine, clk clock.Clock, ticker Ticker, bus eventbus.Publisher, cfg UpdateConfig, log *logger.Logger) *UpdateScheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &UpdateScheduler{
		store:  store,
		stats:  stats,
		clock:  clk,
		ticker: ticker,
		bus:    bus,
		cfg:    cfg,
		log:    log,
	}
}

// State reports whether the periodic jobs are registered.
func (u *UpdateScheduler) State() SchedulerState {
	u.stateMu.Lock()
	defer u.stateMu.Unlock()
	return u.state
}

// Start registers the three periodic jobs. Calling Start while running is a
// no-op.
func (u *UpdateScheduler) Start() error {
	u.stateMu.Lock()
	defer u.stateMu.Unlock()
	if u.state == Running {
		return nil
	}

	jobs := []struct {
		name     string
		interval time.Duration
		run      func()
	}{
		{"stats", u.cfg.StatsInterval, u.TickStats},
		{"statuses", u.cfg.StatusInterval, u.TickStatuses},
		{"clock", u.cfg.ClockInterval, u.TickClock},
	}

	cancels := make([]func(), 0, len(jobs))
	for _, job := range jobs {
		cancel, err := u.ticker.Every(job.interval, job.run)
		if err != nil {
			for _, c := range cancels {
				c()
			}
			return fmt.Errorf("schedule %s updates: %w", job.name, err)
		}
		cancels = append(cancels, cancel)
	}

	u.cancels = cancels
	u.state = Running
	u.log.Info("real-time updates started",
		"stats_interval", u.cfg.StatsInterval,
		"status_interval", u.cfg.StatusInterval,
		"clock_interval", u.cfg.ClockInterval,
	)
	return nil
}

// Stop cancels the periodic jobs. Calling Stop while stopped is a no-op.
func (u *UpdateScheduler) Stop() {
	u.stateMu.Lock()
	defer u.stateMu.Unlock()
	if u.state == Stopped {
		return
	}
	for _, cancel := range u.cancels {
		cancel()
	}
	u.cancels = nil
	u.state = Stopped
	u.log.Info("real-time updates stopped")
}

// TickStats advances the stats engine once.
func (u *UpdateScheduler) TickStats() {
	u.jobMu.Lock()
	defer u.jobMu.Unlock()

	stats := u.stats.Tick()
	u.publish(eventbus.TopicStatsChanged, stats)
}

// TickStatuses runs the status ratchet once.
func (u *UpdateScheduler) TickStatuses() {
	u.jobMu.Lock()
	defer u.jobMu.Unlock()

	u.store.ApplyStatuses(context.Background(), u.clock.Now(), u.cfg.Granularity)
}

// TickClock publishes the formatted current time.
func (u *UpdateScheduler) TickClock() {
	u.jobMu.Lock()
	defer u.jobMu.Unlock()

	u.publish(eventbus.TopicClockTick, timefmt.FormatClock(u.clock.Now()))
}

// ManualRefresh runs every job once, then waits RefreshDelay before
// announcing completion. Periodic jobs keep firing meanwhile.
//
// A refresh that is allowed to finish always returns nil. Cancelling ctx
// during the delay is the one exception: ManualRefresh then returns
// ctx.Err() and does not publish refresh:completed, so a caller that gave
// up is not told the refresh succeeded.
func (u *UpdateScheduler) ManualRefresh(ctx context.Context) error {
	u.TickStats()
	u.TickStatuses()
	u.TickClock()

	select {
	case <-u.clock.After(u.cfg.RefreshDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	done := RefreshCompleted{At: u.clock.Now()}
	u.publish(eventbus.TopicRefreshCompleted, done)
	u.log.Debug("manual refresh completed", "at", done.At)
	return nil
}

func (u *UpdateScheduler) publish(topic eventbus.Topic, payload any) {
	if u.bus != nil {
		u.bus.Publish(topic, payload)
	}
}
