package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"ieee-registration-bot/internal/config"
	"ieee-registration-bot/internal/logger"
	"ieee-registration-bot/internal/repository"
	"ieee-registration-bot/internal/service"
)

// ErrCycleInProgress is returned when a cycle is requested while one runs.
var ErrCycleInProgress = errors.New("reconciliation cycle already in progress")

// JobRunner owns the reconciliation engine and its bookkeeping
type JobRunner struct {
	ledger   repository.LedgerRepository
	services *Services
	config   *config.Config

	now     func() time.Time
	tracer  trace.Tracer
	running atomic.Bool
	state   runnerState
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Roster service.RosterService
	Email  service.EmailService
	Inbox  service.InboxService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(ledger repository.LedgerRepository, services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		ledger:   ledger,
		services: services,
		config:   cfg,
		now:      time.Now,
		tracer:   otel.Tracer("ieee-registration-bot/jobs"),
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// Phase returns the phase of the running cycle, or IDLE.
func (jr *JobRunner) Phase() Phase {
	return jr.state.getPhase()
}

// LastReport returns the report of the most recently finished cycle.
func (jr *JobRunner) LastReport() *CycleReport {
	jr.state.mu.RLock()
	defer jr.state.mu.RUnlock()
	return jr.state.last
}

// ConsecutiveFailures counts aborted cycles since the last successful one.
func (jr *JobRunner) ConsecutiveFailures() int {
	jr.state.mu.RLock()
	defer jr.state.mu.RUnlock()
	return jr.state.failures
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
			err = fmt.Errorf("%s panicked: %v", jobName, r)
		}
	}()

	logger.Debug("Starting job", "job", jobName)
	err = jobFunc()
	logger.Debug("Job completed", "job", jobName, "error", err)
	return err
}

// RunReconciliation is the scheduled entry point. It never returns an error;
// outcomes are logged and kept for the status endpoint.
func (jr *JobRunner) RunReconciliation(ctx context.Context) {
	_, _ = jr.RunCycle(ctx)
}

// RunCycle runs one cycle and handles its outcome: an aborted cycle is logged
// and, on the first abort of a failure streak, reported to the maintainers.
func (jr *JobRunner) RunCycle(ctx context.Context) (*CycleReport, error) {
	report, err := jr.Reconcile(ctx)
	if errors.Is(err, ErrCycleInProgress) {
		logger.Warn("Skipping reconciliation, previous cycle still running")
		return nil, err
	}

	jr.state.mu.Lock()
	if err != nil {
		jr.state.failures++
	} else {
		jr.state.failures = 0
	}
	streak := jr.state.failures
	jr.state.mu.Unlock()

	if err == nil {
		logger.Info("Reconciliation cycle finished",
			"cycle_id", report.ID,
			"decisions", len(report.Decisions),
			"failures", len(report.Failures),
			"dry_run", report.DryRun,
		)
		return report, nil
	}

	logger.Error("Reconciliation cycle aborted", "cycle_id", report.ID, "phase", report.Phase, "error", err, "consecutive_failures", streak)
	if streak == 1 {
		jr.notifyCritical(ctx, report, err)
	}
	return report, err
}

// notifyCritical emails the maintainers. Its own failure is only logged.
func (jr *JobRunner) notifyCritical(ctx context.Context, report *CycleReport, cause error) {
	if report.DryRun {
		logger.Info("Dry run, critical email suppressed", "cycle_id", report.ID)
		return
	}
	msg := fmt.Sprintf("Reconciliation cycle %s aborted during %s: %v", report.ID, report.Phase, cause)
	if err := jr.services.Email.SendCritical(ctx, msg); err != nil {
		logger.Error("Failed to send critical error email", "cycle_id", report.ID, "error", err)
	}
}
