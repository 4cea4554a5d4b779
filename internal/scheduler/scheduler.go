// Package scheduler runs each scanner task on its own fixed interval.
//
// A job never overlaps itself: a timer fire that finds the previous run
// still in progress is skipped and counted. Runs report back over a
// completion channel to a single collector that owns status, logging and
// metrics. Different jobs run concurrently.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"trustclaw/internal/metrics"
	"trustclaw/logger"
)

type Task interface {
	Name() string
	Run(ctx context.Context) error
}

type Job struct {
	Task     Task
	Interval time.Duration
	// Immediate runs the task once at start instead of waiting a full interval.
	Immediate bool
}

type JobStatus struct {
	Name         string        `json:"name"`
	Interval     time.Duration `json:"interval"`
	Running      bool          `json:"running"`
	Runs         int64         `json:"runs"`
	Skipped      int64         `json:"skipped"`
	Failures     int64         `json:"failures"`
	LastRunID    string        `json:"last_run_id,omitempty"`
	LastStart    time.Time     `json:"last_start,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
}

// Completion is sent by a finished run to the collector.
type Completion struct {
	Job      string
	RunID    string
	Started  time.Time
	Duration time.Duration
	Err      error
}

type job struct {
	Job
	busy atomic.Bool

	mu     sync.Mutex
	status JobStatus
}

type Scheduler struct {
	jobs []*job
	root *logger.Log
	log  *logger.Entry

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	loops     sync.WaitGroup
	runs      sync.WaitGroup
	done      chan Completion
	collected chan struct{}
}

func New(log *logger.Log, jobs ...Job) *Scheduler {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &Scheduler{root: log, log: log.WithComponent("scheduler")}
	for _, j := range jobs {
		s.jobs = append(s.jobs, &job{
			Job:    j,
			status: JobStatus{Name: j.Task.Name(), Interval: j.Interval},
		})
	}
	return s
}

// Start launches one timer loop per job. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	for _, j := range s.jobs {
		if j.Interval <= 0 {
			return fmt.Errorf("job %s: interval must be positive", j.status.Name)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.done = make(chan Completion, len(s.jobs))
	s.collected = make(chan struct{})

	go s.collect(s.done, s.collected)

	for _, j := range s.jobs {
		s.loops.Add(1)
		go s.loop(ctx, j)
	}

	s.log.WithField("jobs", len(s.jobs)).Info("scheduler started")
	return nil
}

// Stop cancels all loops and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.loops.Wait()
	s.runs.Wait()
	close(s.done)
	<-s.collected
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) Status() []JobStatus {
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.mu.Lock()
		out = append(out, j.status)
		j.mu.Unlock()
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.loops.Done()

	if j.Immediate {
		s.fire(ctx, j)
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, j)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, j *job) {
	if ctx.Err() != nil {
		return
	}
	if !j.busy.CompareAndSwap(false, true) {
		j.mu.Lock()
		j.status.Skipped++
		j.mu.Unlock()
		metrics.TaskSkipped(j.status.Name)
		logger.RecordTaskSkip()
		s.log.WithField("task", j.status.Name).Warn("previous run still in progress; skipping")
		return
	}

	runID := uuid.NewString()
	started := time.Now()
	j.mu.Lock()
	j.status.Running = true
	j.status.LastRunID = runID
	j.status.LastStart = started
	j.mu.Unlock()

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		err := runTask(ctx, j.Task)
		s.done <- Completion{
			Job:      j.status.Name,
			RunID:    runID,
			Started:  started,
			Duration: time.Since(started),
			Err:      err,
		}
	}()
}

func runTask(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name(), r)
		}
	}()
	return t.Run(ctx)
}

func (s *Scheduler) collect(done <-chan Completion, collected chan<- struct{}) {
	defer close(collected)

	index := make(map[string]*job, len(s.jobs))
	for _, j := range s.jobs {
		index[j.status.Name] = j
	}

	for c := range done {
		j := index[c.Job]
		cancelled := c.Err != nil && errors.Is(c.Err, context.Canceled)

		j.mu.Lock()
		j.status.Running = false
		j.status.Runs++
		j.status.LastDuration = c.Duration
		j.status.LastError = ""
		if c.Err != nil && !cancelled {
			j.status.Failures++
			j.status.LastError = c.Err.Error()
		}
		j.mu.Unlock()
		j.busy.Store(false)

		metrics.TaskRun(c.Job, c.Duration, c.Err)
		metrics.EmitMetric(s.root, "scheduler", "task_run", float64(c.Duration.Nanoseconds())/1e6, "timer", logger.Fields{
			"task":    c.Job,
			"outcome": runOutcome(c.Err, cancelled),
		})
		logger.RecordTaskRun()

		log := s.log.WithFields(logger.Fields{
			"task":   c.Job,
			"run_id": c.RunID,
		})
		switch {
		case cancelled:
			log.Debug("run cancelled")
		case c.Err != nil:
			log.WithError(c.Err).WithField("duration_ms", c.Duration.Milliseconds()).Error("task run failed")
		default:
			logger.LogPerformanceEntry(log, "scheduler", "task_run", c.Duration, nil)
		}
	}
}

func runOutcome(err error, cancelled bool) string {
	switch {
	case cancelled:
		return "cancelled"
	case err != nil:
		return "error"
	}
	return "ok"
}
