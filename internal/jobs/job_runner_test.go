package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ieee-registration-bot/internal/domain"
)

func TestReconcile_RosterFailureAborts(t *testing.T) {
	h := newHarness(newMemLedger(bob), nil)
	h.roster.On("FetchApplicants", mock.Anything).Return(nil, errors.New("svgGrid did not appear"))

	report, err := h.runner.Reconcile(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to fetch roster")
	assert.True(t, report.Aborted())
	assert.Equal(t, PhaseFetching, report.Phase)
	assert.Zero(t, h.ledger.writes)
	assert.Equal(t, PhaseIdle, h.runner.Phase())
}

func TestReconcile_LedgerFailureAborts(t *testing.T) {
	ledger := newMemLedger()
	ledger.listErr = errors.New("permission denied")
	h := newHarness(ledger, []domain.Applicant{alice})

	report, err := h.runner.Reconcile(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to read ledger")
	assert.Empty(t, report.Decisions)
	h.email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_PanicAbortsAndReleases(t *testing.T) {
	h := newHarness(newMemLedger(), nil)
	h.roster.On("FetchApplicants", mock.Anything).Run(func(mock.Arguments) {
		panic("nil map write")
	}).Return(nil, nil).Once()
	h.roster.On("FetchApplicants", mock.Anything).Return([]domain.Applicant{}, nil)

	report, err := h.runner.Reconcile(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "panicked")
	assert.True(t, report.Aborted())
	assert.Equal(t, PhaseIdle, h.runner.Phase())

	_, err = h.runner.Reconcile(context.Background())
	assert.NoError(t, err, "runner is usable after a panic")
}

func TestReconcile_RejectsConcurrentCycle(t *testing.T) {
	h := newHarness(newMemLedger(), nil)
	started := make(chan struct{})
	release := make(chan struct{})
	h.roster.On("FetchApplicants", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return([]domain.Applicant{}, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := h.runner.Reconcile(context.Background())
		done <- err
	}()

	<-started
	assert.Equal(t, PhaseFetching, h.runner.Phase())

	report, err := h.runner.Reconcile(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)
	assert.Nil(t, report)

	_, err = h.runner.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)
	assert.Zero(t, h.runner.ConsecutiveFailures(), "a skipped cycle is not a failure")

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("cycle did not finish")
	}
	assert.Equal(t, PhaseIdle, h.runner.Phase())
}

func TestRunCycle_CriticalEmailOncePerFailureStreak(t *testing.T) {
	h := newHarness(newMemLedger(), nil)
	h.roster.On("FetchApplicants", mock.Anything).Return(nil, errors.New("login page changed")).Twice()
	h.roster.On("FetchApplicants", mock.Anything).Return([]domain.Applicant{}, nil).Once()
	h.roster.On("FetchApplicants", mock.Anything).Return(nil, errors.New("timeout")).Once()
	h.email.On("SendCritical", mock.Anything, mock.MatchedBy(func(msg string) bool {
		return len(msg) > 0
	})).Return(nil)

	_, err := h.runner.RunCycle(context.Background())
	require.Error(t, err)
	_, err = h.runner.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, h.runner.ConsecutiveFailures())
	h.email.AssertNumberOfCalls(t, "SendCritical", 1)

	_, err = h.runner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, h.runner.ConsecutiveFailures())

	_, err = h.runner.RunCycle(context.Background())
	require.Error(t, err)
	h.email.AssertNumberOfCalls(t, "SendCritical", 2)
}

func TestRunCycle_CriticalEmailFailureIsOnlyLogged(t *testing.T) {
	h := newHarness(newMemLedger(), nil)
	cause := errors.New("portal down")
	h.roster.On("FetchApplicants", mock.Anything).Return(nil, cause)
	h.email.On("SendCritical", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

	_, err := h.runner.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	h.email.AssertExpectations(t)
}

func TestRunCycle_DryRunSuppressesCriticalEmail(t *testing.T) {
	h := newHarness(newMemLedger(), nil)
	h.cfg.Reconcile.DryRun = true
	h.roster.On("FetchApplicants", mock.Anything).Return(nil, errors.New("portal down"))

	_, err := h.runner.RunCycle(context.Background())
	require.Error(t, err)
	h.email.AssertNotCalled(t, "SendCritical", mock.Anything, mock.Anything)
}

func TestRunReconciliation_KeepsLastReport(t *testing.T) {
	h := newHarness(newMemLedger(), []domain.Applicant{})

	h.runner.RunReconciliation(context.Background())
	require.NotNil(t, h.runner.LastReport())
	assert.False(t, h.runner.LastReport().Aborted())
}
