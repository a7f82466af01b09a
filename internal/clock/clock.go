// Package clock supplies wall-clock time and a virtual clock for tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is the time source used by the engines and the scheduler.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Real reads the system clock in Location (time.Local when nil).
type Real struct {
	Location *time.Location
}

func (r Real) Now() time.Time {
	if r.Location == nil {
		return time.Now()
	}
	return time.Now().In(r.Location)
}

func (Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Fake is a manually advanced clock. It also runs interval jobs so it can
// stand in for the cron ticker in tests.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	waiters []waiter
	jobs    map[int]*intervalJob
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

type intervalJob struct {
	id       int
	interval time.Duration
	next     time.Time
	fn       func()
}

// NewFake returns a Fake clock set to start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, jobs: make(map[int]*intervalJob)}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- f.now
		return ch
	}
	f.waiters = append(f.waiters, waiter{at: f.now.Add(d), ch: ch})
	return ch
}

// Waiters reports how many After channels are still pending.
func (f *Fake) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

// Set moves the clock to t without firing interval jobs.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
	f.releaseWaiters()
}

// Every registers fn to run each time the clock crosses a multiple of
// interval. The returned func removes the job.
func (f *Fake) Every(interval time.Duration, fn func()) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.jobs[id] = &intervalJob{id: id, interval: interval, next: f.now.Add(interval), fn: fn}
	return func() {
		f.mu.Lock()
		delete(f.jobs, id)
		f.mu.Unlock()
	}, nil
}

// Jobs reports the number of registered interval jobs.
func (f *Fake) Jobs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

// Advance moves the clock forward by d, running due interval jobs in time
// order and releasing After channels along the way.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		job := f.nextDue(target)
		if job == nil {
			f.now = target
			f.mu.Unlock()
			f.releaseWaiters()
			return
		}
		f.now = job.next
		job.next = job.next.Add(job.interval)
		fn := job.fn
		f.mu.Unlock()

		f.releaseWaiters()
		fn()
	}
}

func (f *Fake) nextDue(target time.Time) *intervalJob {
	due := make([]*intervalJob, 0, len(f.jobs))
	for _, j := range f.jobs {
		if !j.next.After(target) {
			due = append(due, j)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, k int) bool {
		if due[i].next.Equal(due[k].next) {
			return due[i].id < due[k].id
		}
		return due[i].next.Before(due[k].next)
	})
	return due[0]
}

func (f *Fake) releaseWaiters() {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.at.After(f.now) {
			w.ch <- f.now
			continue
		}
		kept = append(kept, w)
	}
	f.waiters = kept
}
