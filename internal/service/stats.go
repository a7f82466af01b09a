package service

import (
	"math"
	"math/rand"
	"sync"

	"eventflow/internal/model"
)

// StatsEngine owns the dashboard statistics.
type StatsEngine interface {
	Current() model.Stats
	Tick() model.Stats
}

const (
	minAvailableMembers = 15
	maxAvailableMembers = 20
	minResponseRate     = 50
)

// SimulatedStats random-walks the stats within fixed bounds to give the
// dashboard a live feel.
type SimulatedStats struct {
	mu    sync.Mutex
	stats model.Stats
	rng   *rand.Rand
}

// NewSimulatedStats starts from baseline and draws deltas from rng.
func NewSimulatedStats(baseline model.Stats, rng *rand.Rand) *SimulatedStats {
	return &SimulatedStats{stats: baseline, rng: rng}
}

func (s *SimulatedStats) Current() model.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *SimulatedStats) Tick() model.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = Step(s.stats, s.rng)
	return s.stats
}

// Step applies one bounded random change to prev. Available members move
// by -1..1 within [15,20] and never above TotalMembers, task progress by
// -2..2 within [0,100] and response rate by -1..1 within [50,100]. Other
// fields are kept.
func Step(prev model.Stats, rng *rand.Rand) model.Stats {
	next := prev

	maxMembers := maxAvailableMembers
	if prev.TotalMembers > 0 && prev.TotalMembers < maxMembers {
		maxMembers = prev.TotalMembers
	}
	// Teams smaller than the floor walk within [0, total].
	minMembers := minAvailableMembers
	if maxMembers < minMembers {
		minMembers = 0
	}
	next.AvailableMembers = clamp(prev.AvailableMembers+rng.Intn(3)-1, minMembers, maxMembers)
	next.TaskProgress = clamp(prev.TaskProgress+rng.Intn(5)-2, 0, 100)
	next.ResponseRate = clamp(prev.ResponseRate+rng.Intn(3)-1, minResponseRate, 100)
	return next
}

// EventSource is what DerivedStats reads from.
type EventSource interface {
	List() []model.Event
	Team() []model.TeamMember
}

// DerivedStats recomputes the stats from the event store on every call.
type DerivedStats struct {
	source EventSource
}

func NewDerivedStats(source EventSource) *DerivedStats {
	return &DerivedStats{source: source}
}

func (d *DerivedStats) Current() model.Stats {
	return Derive(d.source.List(), d.source.Team())
}

func (d *DerivedStats) Tick() model.Stats {
	return d.Current()
}

// Derive counts events by status. Task progress is the completed share,
// response rate the share that has started.
func Derive(events []model.Event, team []model.TeamMember) model.Stats {
	var upcoming, ongoing, completed int
	for _, e := range events {
		switch e.Status {
		case model.StatusUpcoming:
			upcoming++
		case model.StatusOngoing:
			ongoing++
		case model.StatusCompleted:
			completed++
		}
	}
	total := len(events)
	return model.Stats{
		UpcomingEvents:   upcoming,
		ResponseRate:     percent(ongoing+completed, total),
		AvailableMembers: len(team),
		TotalMembers:     len(team),
		TaskProgress:     percent(completed, total),
		RemainingTasks:   total - completed,
	}
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
