package jobs

import (
	"sync"
	"time"
)

// Phase is the step of a reconciliation cycle currently executing.
type Phase string

const (
	PhaseIdle                  Phase = "IDLE"
	PhaseFetching              Phase = "FETCHING"
	PhaseDiffing               Phase = "DIFFING"
	PhaseIntake                Phase = "INTAKE"
	PhaseResponseCheck         Phase = "RESPONSE_CHECK"
	PhaseReminding             Phase = "REMINDING"
	PhaseExpiring              Phase = "EXPIRING"
	PhaseApplyingRosterActions Phase = "APPLYING_ROSTER_ACTIONS"
)

// Action names one decision the engine made about a member.
type Action string

const (
	ActionIntake       Action = "intake"
	ActionWithdraw     Action = "withdraw"
	ActionApprove      Action = "approve"
	ActionReaccept     Action = "reaccept"
	ActionRemind       Action = "remind"
	ActionExpire       Action = "expire"
	ActionRosterAccept Action = "roster_accept"
	ActionRosterReject Action = "roster_reject"
)

// Decision is recorded before its side effect is attempted, so a dry run
// yields the same trace as a live run over the same state.
type Decision struct {
	Action       Action `json:"action"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	MembershipID string `json:"membership_id,omitempty"`
}

// Failure is a per-member problem that was logged and skipped.
type Failure struct {
	Phase     Phase  `json:"phase"`
	Email     string `json:"email"`
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

// CycleReport summarizes one reconciliation cycle.
type CycleReport struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	DryRun     bool       `json:"dry_run"`
	Phase      Phase      `json:"phase_reached"`
	Decisions  []Decision `json:"decisions"`
	Failures   []Failure  `json:"failures,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Aborted reports whether the cycle stopped before finishing every phase.
func (r *CycleReport) Aborted() bool {
	return r.Error != ""
}

// Actions lists the decision actions in order, mostly for assertions and logs.
func (r *CycleReport) Actions() []Action {
	out := make([]Action, len(r.Decisions))
	for i, d := range r.Decisions {
		out[i] = d.Action
	}
	return out
}

// Count returns how many decisions carry the given action.
func (r *CycleReport) Count(action Action) int {
	n := 0
	for _, d := range r.Decisions {
		if d.Action == action {
			n++
		}
	}
	return n
}

// runnerState is the part of the runner read concurrently by the status
// endpoint.
type runnerState struct {
	mu       sync.RWMutex
	phase    Phase
	last     *CycleReport
	failures int
}

func (s *runnerState) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *runnerState) getPhase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.phase == "" {
		return PhaseIdle
	}
	return s.phase
}
