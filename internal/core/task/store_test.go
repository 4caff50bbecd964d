package task

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/doc2md/doc2md/internal/core"
)

func newTestStore(t *testing.T, clock core.Clock, sched core.Scheduler) *Store {
	t.Helper()
	return NewStore(30*time.Minute, clock, sched, zaptest.NewLogger(t))
}

func TestCreateAndSnapshot(t *testing.T) {
	s := newTestStore(t, &core.ManualClock{T: time.Unix(1700000000, 0)}, &core.ManualScheduler{})

	id := s.Create("gemini-2.5-flash")
	snap, err := s.Snapshot(id)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status != StatusPending || snap.Progress != 0 || snap.ETASeconds != -1 {
		t.Fatalf("fresh task = %+v", snap)
	}
	if snap.Model != "gemini-2.5-flash" {
		t.Fatalf("Model = %q", snap.Model)
	}
}

func TestSnapshotUnknownID(t *testing.T) {
	s := newTestStore(t, core.SystemClock, &core.ManualScheduler{})
	_, err := s.Snapshot("missing")
	if !errors.Is(err, core.ErrTaskNotFound) {
		t.Fatalf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestProgressNeverRegresses(t *testing.T) {
	s := newTestStore(t, core.SystemClock, &core.ManualScheduler{})
	id := s.Create("m")
	s.SetProcessing(id)

	s.SetProgress(id, 50, 20)
	s.SetProgress(id, 40, 10)

	snap, _ := s.Snapshot(id)
	if snap.Progress != 50 {
		t.Fatalf("Progress = %d, want 50 after regression attempt", snap.Progress)
	}
	if snap.ETASeconds != 10 {
		t.Fatalf("ETASeconds = %d, want the fresher estimate 10", snap.ETASeconds)
	}
}

func TestTerminalTaskIsImmutable(t *testing.T) {
	s := newTestStore(t, core.SystemClock, &core.ManualScheduler{})
	id := s.Create("m")
	s.SetProcessing(id)
	s.Complete(id, "# done")

	s.SetProgress(id, 50, 5)
	s.AppendChunk(id, "late chunk")
	s.Fail(id, errors.New("too late"))

	snap, _ := s.Snapshot(id)
	if snap.Status != StatusCompleted || snap.Result != "# done" || snap.Progress != 100 {
		t.Fatalf("completed task mutated: %+v", snap)
	}
	if snap.Err != nil {
		t.Fatalf("completed task gained error %v", snap.Err)
	}
}

func TestFailKeepsLastProgress(t *testing.T) {
	s := newTestStore(t, core.SystemClock, &core.ManualScheduler{})
	id := s.Create("m")
	s.SetProcessing(id)
	s.SetProgress(id, 42, 7)

	wantErr := errors.New("encode blew up")
	s.Fail(id, wantErr)

	snap, _ := s.Snapshot(id)
	if snap.Status != StatusFailed || !errors.Is(snap.Err, wantErr) {
		t.Fatalf("failed task = %+v", snap)
	}
	if snap.Progress != 42 {
		t.Fatalf("Progress = %d, want 42 preserved across failure", snap.Progress)
	}
}

func TestAppendChunkAccumulatesAndCapsProgress(t *testing.T) {
	s := newTestStore(t, core.SystemClock, &core.ManualScheduler{})
	id := s.Create("m")
	s.SetProcessing(id)
	s.SetProgress(id, 88, -1)

	s.AppendChunk(id, "# Doc\n")
	s.AppendChunk(id, "body")
	s.AppendChunk(id, "!")
	s.AppendChunk(id, "!")

	snap, _ := s.Snapshot(id)
	if snap.Result != "# Doc\nbody!!" {
		t.Fatalf("Result = %q", snap.Result)
	}
	if snap.Progress != 90 {
		t.Fatalf("Progress = %d, want capped at 90 while streaming", snap.Progress)
	}
}

func TestThroughputRecomputedAtMostOncePerSecond(t *testing.T) {
	clock := &core.ManualClock{T: time.Unix(1700000000, 0)}
	s := newTestStore(t, clock, &core.ManualScheduler{})
	id := s.Create("m")
	s.SetProcessing(id)

	clock.Advance(2 * time.Second)
	s.AppendChunk(id, "1234") // 4 bytes over 2s
	snap, _ := s.Snapshot(id)
	if snap.ThroughputBps != 2 {
		t.Fatalf("ThroughputBps = %v, want 2", snap.ThroughputBps)
	}

	s.AppendChunk(id, "12345678") // within the same second, no recompute
	snap, _ = s.Snapshot(id)
	if snap.ThroughputBps != 2 {
		t.Fatalf("ThroughputBps = %v, want still 2 inside throttle window", snap.ThroughputBps)
	}

	clock.Advance(2 * time.Second)
	s.AppendChunk(id, "1234") // 16 bytes over 4s
	snap, _ = s.Snapshot(id)
	if snap.ThroughputBps != 4 {
		t.Fatalf("ThroughputBps = %v, want 4 after window passes", snap.ThroughputBps)
	}
}

func TestRetentionEvictsTerminalTasks(t *testing.T) {
	sched := &core.ManualScheduler{}
	s := newTestStore(t, core.SystemClock, sched)

	done := s.Create("m")
	s.SetProcessing(done)
	s.Complete(done, "# out")
	failed := s.Create("m")
	s.SetProcessing(failed)
	s.Fail(failed, errors.New("boom"))

	sched.Fire(30 * time.Minute)

	if _, err := s.Snapshot(done); !errors.Is(err, core.ErrTaskNotFound) {
		t.Fatalf("completed task after retention: err = %v, want ErrTaskNotFound", err)
	}
	if _, err := s.Snapshot(failed); !errors.Is(err, core.ErrTaskNotFound) {
		t.Fatalf("failed task after retention: err = %v, want ErrTaskNotFound", err)
	}
	if s.Len() != 0 {
		t.Fatalf("store still holds %d tasks", s.Len())
	}
}

func TestRetentionClockStartsAtTerminalTransition(t *testing.T) {
	sched := &core.ManualScheduler{}
	s := newTestStore(t, core.SystemClock, sched)

	id := s.Create("m")
	s.SetProcessing(id)
	s.SetProgress(id, 42, 30)

	// A whole retention window passes while the job is still running; the
	// task must survive and still accept its completion.
	sched.Fire(30 * time.Minute)

	snap, err := s.Snapshot(id)
	if err != nil {
		t.Fatalf("running task evicted mid-flight: %v", err)
	}
	if snap.Status != StatusProcessing || snap.Progress != 42 {
		t.Fatalf("snapshot = %+v", snap)
	}

	s.Complete(id, "# out")
	snap, err = s.Snapshot(id)
	if err != nil || snap.Status != StatusCompleted || snap.Result != "# out" {
		t.Fatalf("completion dropped: snap = %+v, err = %v", snap, err)
	}

	// Only now does the retention window apply.
	sched.Fire(30 * time.Minute)
	if _, err := s.Snapshot(id); !errors.Is(err, core.ErrTaskNotFound) {
		t.Fatalf("err = %v, want ErrTaskNotFound after post-terminal retention", err)
	}
}
