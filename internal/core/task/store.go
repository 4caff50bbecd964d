// Package task owns the lifecycle of background conversion jobs: an
// in-memory store with guarded state transitions and timed retention, plus
// the runner that drives a job from cached uploads to streamed markdown.
package task

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/doc2md/doc2md/internal/core"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// Snapshot is a point-in-time copy of one task, safe to hold after the
// store has moved on. ETASeconds is -1 while unknown; ThroughputBps is 0
// until the first streamed chunk arrives.
type Snapshot struct {
	ID            string
	Status        Status
	Result        string
	Progress      int
	ETASeconds    int
	ThroughputBps float64
	Err           error
	Model         string
	CreatedAt     time.Time
}

type record struct {
	snap          Snapshot
	startedAt     time.Time
	streamedBytes int64
	throughputAt  time.Time
}

// Store keeps every live task in memory. A task is evicted a fixed
// retention period after it reaches a terminal state; a client that polls
// later than that sees ErrTaskNotFound, same as for an id that never
// existed. Tasks still running are never evicted.
type Store struct {
	mu    sync.Mutex
	tasks map[string]*record

	retention time.Duration
	clock     core.Clock
	sched     core.Scheduler
	logger    *zap.Logger
}

func NewStore(retention time.Duration, clock core.Clock, sched core.Scheduler, logger *zap.Logger) *Store {
	return &Store{
		tasks:     make(map[string]*record),
		retention: retention,
		clock:     clock,
		sched:     sched,
		logger:    logger,
	}
}

// Create registers a new pending task.
func (s *Store) Create(model string) string {
	id := uuid.New().String()
	rec := &record{snap: Snapshot{
		ID:         id,
		Status:     StatusPending,
		Progress:   0,
		ETASeconds: -1,
		Model:      model,
		CreatedAt:  s.clock.Now(),
	}}

	s.mu.Lock()
	s.tasks[id] = rec
	s.mu.Unlock()

	return id
}

// Snapshot returns a copy of the task's current state.
func (s *Store) Snapshot(id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tasks[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("task %s: %w", id, core.ErrTaskNotFound)
	}
	return rec.snap, nil
}

// Len reports the number of retained tasks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// SetProcessing moves a pending task into the processing state and starts
// the throughput clock.
func (s *Store) SetProcessing(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tasks[id]
	if !ok || rec.snap.Status != StatusPending {
		return
	}
	rec.snap.Status = StatusProcessing
	rec.startedAt = s.clock.Now()
}

// SetProgress raises the task's progress. Regressions are dropped so a
// poller never sees the bar move backward; terminal tasks are immutable.
func (s *Store) SetProgress(id string, percent, etaSeconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tasks[id]
	if !ok || rec.snap.Status.Terminal() {
		return
	}
	if percent > rec.snap.Progress && percent <= 100 {
		rec.snap.Progress = percent
	}
	rec.snap.ETASeconds = etaSeconds
}

// AppendChunk adds one streamed fragment to the accumulating result, nudges
// progress by one point up to the streaming cap, and refreshes throughput
// at most once per second.
func (s *Store) AppendChunk(id, chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tasks[id]
	if !ok || rec.snap.Status.Terminal() {
		return
	}

	rec.snap.Result += chunk
	rec.streamedBytes += int64(len(chunk))
	if rec.snap.Progress < 90 {
		rec.snap.Progress++
	}

	now := s.clock.Now()
	if rec.throughputAt.IsZero() || now.Sub(rec.throughputAt) >= time.Second {
		if elapsed := now.Sub(rec.startedAt).Seconds(); elapsed > 0 {
			rec.snap.ThroughputBps = float64(rec.streamedBytes) / elapsed
			rec.throughputAt = now
		}
	}
}

// Complete finalizes the task with the backend's returned text, which may
// differ from the raw chunk concatenation when wrapping fences were
// stripped.
func (s *Store) Complete(id, result string) {
	s.mu.Lock()
	rec, ok := s.tasks[id]
	if !ok || rec.snap.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	rec.snap.Status = StatusCompleted
	rec.snap.Result = result
	rec.snap.Progress = 100
	rec.snap.ETASeconds = 0
	s.mu.Unlock()

	s.scheduleEviction(id)
}

// Fail marks the task failed, keeping the last observed progress so the
// client can show where the job died.
func (s *Store) Fail(id string, err error) {
	s.mu.Lock()
	rec, ok := s.tasks[id]
	if !ok || rec.snap.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	rec.snap.Status = StatusFailed
	rec.snap.Err = err
	rec.snap.ETASeconds = -1
	s.mu.Unlock()

	s.scheduleEviction(id)
}

// scheduleEviction starts the retention clock. Called once per task, at the
// terminal transition, so results stay pollable for the full retention
// window however long the job ran.
func (s *Store) scheduleEviction(id string) {
	s.sched.AfterFunc(s.retention, func() { s.evict(id) })
}

func (s *Store) evict(id string) {
	s.mu.Lock()
	rec, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	if ok {
		s.logger.Debug("Task evicted",
			zap.String("task_id", id),
			zap.String("status", string(rec.snap.Status)),
		)
	}
}
