package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ieee-registration-bot/internal/logger"
)

// Job is the unit the scheduler runs on every tick.
type Job interface {
	RunReconciliation(ctx context.Context)
}

// Scheduler runs a job repeatedly with a fixed pause between the end of one
// run and the start of the next. Each run is a one-shot cron entry that is
// replaced when the run finishes, whether it returned or panicked.
type Scheduler struct {
	cron       *cron.Cron
	ctx        context.Context
	job        Job
	wrapped    cron.Job
	interval   time.Duration
	runOnStart bool
	now        func() time.Time

	mu      sync.Mutex
	entry   cron.EntryID
	started bool
	stopped bool
	initial sync.WaitGroup
}

// NewScheduler registers job to run interval after each previous run
// completes. A trigger that arrives while a run is still going is skipped,
// and a panic in the job is logged rather than taking the process down.
func NewScheduler(ctx context.Context, job Job, interval time.Duration, runOnStart bool, loc *time.Location) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %s", interval)
	}
	if loc == nil {
		loc = time.UTC
	}

	l := cronLogger{}
	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(loc), cron.WithLogger(l)),
		ctx:        ctx,
		job:        job,
		interval:   interval,
		runOnStart: runOnStart,
		now:        time.Now,
	}
	s.wrapped = cron.NewChain(cron.Recover(l), cron.SkipIfStillRunning(l)).Then(cron.FuncJob(s.run))

	logger.Info("Reconciliation job registered", "interval", interval.String(), "run_on_start", runOnStart)
	return s, nil
}

// run executes the job and arms the next run from its completion time.
func (s *Scheduler) run() {
	defer s.arm()
	s.job.RunReconciliation(s.ctx)
}

// arm replaces the current entry with a one-shot run interval from now.
func (s *Scheduler) arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	next := s.now().Add(s.interval)
	s.entry = s.cron.Schedule(runAt{at: next}, s.wrapped)
	logger.Debug("Next reconciliation armed", "at", next)
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	s.cron.Start()
	if s.runOnStart {
		s.initial.Add(1)
		go func() {
			defer s.initial.Done()
			s.wrapped.Run()
		}()
	} else {
		s.arm()
	}
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler and waits for a running job
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.initial.Wait()
	logger.Info("Cron scheduler stopped")
}

// Next returns the time of the next scheduled run, or the zero time while a
// run is in progress.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// IsRunning returns true if the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.stopped
}

// runAt is a cron.Schedule that fires once.
type runAt struct {
	at time.Time
}

func (r runAt) Next(t time.Time) time.Time {
	if t.Before(r.at) {
		return r.at
	}
	return time.Time{}
}

// cronLogger routes cron's own messages into slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
