package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"eventflow/internal/logger"
)

// Ticker runs jobs on a fixed interval. The returned func cancels the job.
type Ticker interface {
	Every(interval time.Duration, job func()) (cancel func(), err error)
}

// SchedulerService wraps cron-based jobs.
type SchedulerService struct {
	cron *cron.Cron
	log  *logger.Logger
}

func NewSchedulerService(loc *time.Location, log *logger.Logger) *SchedulerService {
	if log == nil {
		log = logger.Nop()
	}
	cl := logger.CronLogger{L: log}
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: log,
	}
}

// ScheduleDaily registers a daily job at the given HH:MM time string.
func (s *SchedulerService) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// ScheduleInterval registers a periodic job every given duration.
func (s *SchedulerService) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	spec, effective := intervalSpec(interval)
	if effective != interval {
		s.log.Warn("interval rounded to whole seconds", "requested", interval, "effective", effective)
	}
	return s.cron.AddFunc(spec, job)
}

// intervalSpec renders an @every spec. cron's @every has one-second
// resolution, so interval is rounded to the nearest second, at least one.
func intervalSpec(interval time.Duration) (string, time.Duration) {
	seconds := int(interval.Round(time.Second) / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("@every %ds", seconds), time.Duration(seconds) * time.Second
}

// Every implements Ticker.
func (s *SchedulerService) Every(interval time.Duration, job func()) (func(), error) {
	id, err := s.ScheduleInterval(interval, job)
	if err != nil {
		return nil, err
	}
	return func() { s.cron.Remove(id) }, nil
}

// Entries reports the number of registered jobs.
func (s *SchedulerService) Entries() int {
	return len(s.cron.Entries())
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
