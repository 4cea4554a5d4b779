package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTask struct {
	name    string
	runs    atomic.Int64
	active  atomic.Int64
	overlap atomic.Bool
	hold    time.Duration
	err     error
}

func (t *countingTask) Name() string { return t.name }

func (t *countingTask) Run(ctx context.Context) error {
	if t.active.Add(1) > 1 {
		t.overlap.Store(true)
	}
	defer t.active.Add(-1)
	t.runs.Add(1)
	if t.hold > 0 {
		select {
		case <-time.After(t.hold):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return t.err
}

type blockingTask struct {
	release chan struct{}
	started chan struct{}
	stopped atomic.Bool
}

func (t *blockingTask) Name() string { return "blocking" }

func (t *blockingTask) Run(ctx context.Context) error {
	t.started <- struct{}{}
	<-t.release
	t.stopped.Store(true)
	return nil
}

type panicTask struct{}

func (panicTask) Name() string                  { return "panics" }
func (panicTask) Run(ctx context.Context) error { panic("boom") }

func statusOf(t *testing.T, s *Scheduler, name string) JobStatus {
	t.Helper()
	for _, st := range s.Status() {
		if st.Name == name {
			return st
		}
	}
	t.Fatalf("no status for %s", name)
	return JobStatus{}
}

func TestRunsOnInterval(t *testing.T) {
	task := &countingTask{name: "fast"}
	s := New(nil, Job{Task: task, Interval: 10 * time.Millisecond})
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return task.runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	st := statusOf(t, s, "fast")
	assert.GreaterOrEqual(t, st.Runs, int64(3))
	assert.Zero(t, st.Failures)
	assert.NotEmpty(t, st.LastRunID)
	assert.False(t, st.Running)
}

func TestNoOverlapSkipsFires(t *testing.T) {
	task := &countingTask{name: "slow", hold: 60 * time.Millisecond}
	s := New(nil, Job{Task: task, Interval: 5 * time.Millisecond, Immediate: true})
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return statusOf(t, s, "slow").Skipped >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	assert.False(t, task.overlap.Load(), "a task must never run concurrently with itself")
}

func TestImmediateRun(t *testing.T) {
	task := &countingTask{name: "now"}
	s := New(nil, Job{Task: task, Interval: time.Hour, Immediate: true})
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return statusOf(t, s, "now").Runs == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	assert.Equal(t, int64(1), task.runs.Load())
}

func TestFailuresAreIsolated(t *testing.T) {
	bad := &countingTask{name: "bad", err: errors.New("source down")}
	good := &countingTask{name: "good"}
	s := New(nil,
		Job{Task: bad, Interval: 10 * time.Millisecond},
		Job{Task: good, Interval: 10 * time.Millisecond},
		Job{Task: panicTask{}, Interval: 10 * time.Millisecond},
	)
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		return statusOf(t, s, "bad").Failures >= 2 &&
			statusOf(t, s, "good").Runs >= 2 &&
			statusOf(t, s, "panics").Failures >= 2
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, "source down", statusOf(t, s, "bad").LastError)
	assert.Contains(t, statusOf(t, s, "panics").LastError, "panicked")
	assert.Zero(t, statusOf(t, s, "good").Failures)
}

func TestStopWaitsForInFlightRun(t *testing.T) {
	task := &blockingTask{release: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(nil, Job{Task: task, Interval: time.Hour, Immediate: true})
	require.NoError(t, s.Start(context.Background()))
	<-task.started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(task.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.True(t, task.stopped.Load())
}

func TestCancelledRunIsNotAFailure(t *testing.T) {
	task := &countingTask{name: "long", hold: time.Hour}
	s := New(nil, Job{Task: task, Interval: time.Hour, Immediate: true})
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return task.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	st := statusOf(t, s, "long")
	assert.Equal(t, int64(1), st.Runs)
	assert.Zero(t, st.Failures)
}

func TestStartTwice(t *testing.T) {
	s := New(nil, Job{Task: &countingTask{name: "x"}, Interval: time.Hour})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Error(t, s.Start(context.Background()))
}

func TestRejectsZeroInterval(t *testing.T) {
	s := New(nil, Job{Task: &countingTask{name: "x"}})
	assert.Error(t, s.Start(context.Background()))
	s.Stop()
}
