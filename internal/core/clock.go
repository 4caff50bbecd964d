package core

import (
	"sync"
	"time"
)

// Clock abstracts time.Now so expiry logic can run on virtual time in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall-clock implementation used outside tests.
var SystemClock Clock = systemClock{}

// Timer is a scheduled callback that can be stopped before it fires.
type Timer interface {
	Stop() bool
}

// Scheduler abstracts time.AfterFunc. The task store and upload cache use it
// for retention/expiry so tests can fire timers deterministically.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemScheduler schedules on real timers.
var SystemScheduler Scheduler = timerScheduler{}

// ManualScheduler collects scheduled callbacks and fires them only when the
// test asks. Zero value is ready to use.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []*manualTimer
}

type manualTimer struct {
	mu      *sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{mu: &s.mu, delay: d, fn: fn}
	s.pending = append(s.pending, t)
	return t
}

// Fire runs every pending callback that was scheduled at or below d,
// simulating that much time passing. Stopped timers are skipped.
func (s *ManualScheduler) Fire(d time.Duration) {
	s.mu.Lock()
	var due []*manualTimer
	for _, t := range s.pending {
		if !t.stopped && t.delay <= d {
			t.stopped = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

// ManualClock is a settable Clock for tests.
type ManualClock struct {
	T time.Time
}

func (c *ManualClock) Now() time.Time { return c.T }

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) { c.T = c.T.Add(d) }
