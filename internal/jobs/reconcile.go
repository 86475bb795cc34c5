package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ieee-registration-bot/internal/domain"
	"ieee-registration-bot/internal/logger"
	"ieee-registration-bot/internal/repository"
	"ieee-registration-bot/internal/service"
)

// cycle is the working state of one reconciliation pass.
type cycle struct {
	jr     *JobRunner
	ctx    context.Context
	log    *slog.Logger
	report *CycleReport
	today  time.Time
	dryRun bool

	roster      []domain.Applicant
	rosterIndex map[string]domain.Applicant
	ledger      []domain.Member
	ledgerIndex map[string]bool
	handled     map[string]bool

	acceptBatch []domain.Applicant
	rejectBatch []domain.Applicant

	phaseSpan trace.Span
}

// Reconcile runs one full cycle: fetch the roster and ledger, take in new
// applicants, look for membership IDs, remind, expire, then approve or deny
// on the roster. Per-member failures are recorded in the report and skipped.
// A roster or ledger read failure, or a panic, aborts the cycle; work already
// committed stays committed.
func (jr *JobRunner) Reconcile(ctx context.Context) (*CycleReport, error) {
	if !jr.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer jr.running.Store(false)

	loc := jr.config.Location()
	started := jr.now().In(loc)
	report := &CycleReport{
		ID:        uuid.NewString(),
		StartedAt: started,
		DryRun:    jr.config.Reconcile.DryRun,
		Phase:     PhaseIdle,
		Decisions: []Decision{},
	}

	ctx, span := jr.tracer.Start(ctx, "reconcile.cycle", trace.WithAttributes(
		attribute.String("cycle.id", report.ID),
		attribute.Bool("cycle.dry_run", report.DryRun),
	))
	defer span.End()

	c := &cycle{
		jr:      jr,
		ctx:     ctx,
		log:     logger.WithCycle(report.ID),
		report:  report,
		today:   domain.DateOf(started),
		dryRun:  report.DryRun,
		handled: make(map[string]bool),
	}
	c.log.Info("Starting reconciliation cycle", "dry_run", c.dryRun, "today", c.today.Format(domain.ISODateLayout))

	err := jr.runWithRecovery("reconcile", c.run)
	c.endPhase(err)
	jr.state.setPhase(PhaseIdle)

	report.FinishedAt = jr.now().In(loc)
	if err != nil {
		report.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.Int("cycle.decisions", len(report.Decisions)),
		attribute.Int("cycle.failures", len(report.Failures)),
	)

	jr.state.mu.Lock()
	jr.state.last = report
	jr.state.mu.Unlock()

	return report, err
}

func (c *cycle) run() error {
	c.enter(PhaseFetching)
	if err := c.fetch(); err != nil {
		return err
	}

	c.enter(PhaseDiffing)
	pending := c.diff()

	c.enter(PhaseIntake)
	c.intake(pending)
	c.pruneWithdrawn()

	c.enter(PhaseResponseCheck)
	c.checkResponses()

	c.enter(PhaseReminding)
	c.remind()

	c.enter(PhaseExpiring)
	c.expire()

	c.enter(PhaseApplyingRosterActions)
	c.applyRosterActions()
	return nil
}

func (c *cycle) enter(p Phase) {
	c.endPhase(nil)
	c.report.Phase = p
	c.jr.state.setPhase(p)
	_, c.phaseSpan = c.jr.tracer.Start(c.ctx, "reconcile."+string(p))
	c.log.Debug("Entering phase", "phase", p)
}

func (c *cycle) endPhase(err error) {
	if c.phaseSpan == nil {
		return
	}
	if err != nil {
		c.phaseSpan.RecordError(err)
		c.phaseSpan.SetStatus(codes.Error, err.Error())
	}
	c.phaseSpan.End()
	c.phaseSpan = nil
}

func (c *cycle) fetch() error {
	roster, err := c.jr.services.Roster.FetchApplicants(c.ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch roster: %w", err)
	}
	ledger, err := c.jr.ledger.ListMembers(c.ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}
	c.log.Info("Fetched roster and ledger", "roster", len(roster), "ledger", len(ledger))

	c.rosterIndex = make(map[string]domain.Applicant, len(roster))
	for _, a := range roster {
		key := domain.NormalizeEmail(a.Email)
		if key == "" {
			continue
		}
		if _, dup := c.rosterIndex[key]; dup {
			continue
		}
		c.rosterIndex[key] = a
		c.roster = append(c.roster, a)
	}

	c.ledger = ledger
	c.ledgerIndex = make(map[string]bool, len(ledger))
	for _, m := range ledger {
		email := domain.NormalizeEmail(m.Email)
		c.ledgerIndex[email] = true
		// The row exists, so the applicant is never re-intaken, but nothing
		// can be decided for it until an officer fixes the status.
		if !m.Status.IsKnown() {
			c.handled[email] = true
			c.fail(email, "read_status", fmt.Errorf("unrecognized ledger status %q", m.RawStatus))
		}
	}
	return nil
}

// diff returns roster applicants with no ledger row, in roster order.
func (c *cycle) diff() []domain.Applicant {
	var pending []domain.Applicant
	for _, a := range c.roster {
		if !c.ledgerIndex[domain.NormalizeEmail(a.Email)] {
			pending = append(pending, a)
		}
	}
	c.log.Info("Computed roster diff", "pending", len(pending))
	return pending
}

func (c *cycle) onRoster(email string) (domain.Applicant, bool) {
	a, ok := c.rosterIndex[domain.NormalizeEmail(email)]
	return a, ok
}

func (c *cycle) decide(action Action, email, name, membershipID string) {
	c.report.Decisions = append(c.report.Decisions, Decision{
		Action:       action,
		Email:        domain.NormalizeEmail(email),
		Name:         name,
		MembershipID: membershipID,
	})
}

func (c *cycle) fail(email, operation string, err error) {
	c.report.Failures = append(c.report.Failures, Failure{
		Phase:     c.report.Phase,
		Email:     domain.NormalizeEmail(email),
		Operation: operation,
		Error:     err.Error(),
	})
	c.log.Warn("Skipping member", "phase", c.report.Phase, "email", email, "operation", operation, "error", err)
}

// intake emails every new applicant and records them as EMAIL SENT. Rows an
// officer left in NEW go through the same step. The email is sent first so
// a row is only written for applicants who were actually contacted.
func (c *cycle) intake(pending []domain.Applicant) {
	for _, a := range pending {
		email := domain.NormalizeEmail(a.Email)
		c.decide(ActionIntake, email, a.Name, "")
		c.handled[email] = true
		if c.dryRun {
			continue
		}
		if err := c.jr.services.Email.Send(c.ctx, service.TemplateInterest, a); err != nil {
			c.fail(email, "send_interest", err)
			continue
		}
		member := &domain.Member{
			Name:       a.Name,
			Email:      email,
			Status:     domain.MemberStatusEmailSent,
			StatusDate: c.today,
		}
		if err := c.jr.ledger.AppendMember(c.ctx, member); err != nil {
			c.log.Error("Interest email sent but ledger append failed, applicant will be emailed again next cycle",
				"email", email, "error", err)
			c.fail(email, "append_member", err)
		}
	}

	for i := range c.ledger {
		m := &c.ledger[i]
		email := domain.NormalizeEmail(m.Email)
		if m.Status != domain.MemberStatusNew || c.handled[email] {
			continue
		}
		a, ok := c.onRoster(email)
		if !ok {
			continue
		}
		c.decide(ActionIntake, email, a.Name, "")
		c.handled[email] = true
		if c.dryRun {
			continue
		}
		if err := c.jr.services.Email.Send(c.ctx, service.TemplateInterest, a); err != nil {
			c.fail(email, "send_interest", err)
			continue
		}
		if err := c.jr.ledger.UpdateStatus(c.ctx, email, domain.MemberStatusEmailSent, c.today, ""); err != nil {
			c.log.Error("Interest email sent but ledger update failed, applicant will be emailed again next cycle",
				"email", email, "error", err)
			c.fail(email, "update_status", err)
		}
	}
}

// pruneWithdrawn deletes open ledger rows whose applicant has left the
// roster. An empty roster snapshot never prunes.
func (c *cycle) pruneWithdrawn() {
	if !c.jr.config.Reconcile.PruneWithdrawn || len(c.roster) == 0 {
		return
	}
	for _, m := range c.ledger {
		email := domain.NormalizeEmail(m.Email)
		if m.Status.IsTerminal() || c.handled[email] {
			continue
		}
		if _, ok := c.onRoster(email); ok {
			continue
		}
		c.decide(ActionWithdraw, email, m.Name, "")
		c.handled[email] = true
		if c.dryRun {
			continue
		}
		if err := c.jr.ledger.DeleteMember(c.ctx, email); err != nil {
			c.fail(email, "delete_member", err)
			continue
		}
		c.log.Info("Removed withdrawn applicant from ledger", "email", email)
	}
}

// checkResponses looks for a membership ID from every open applicant still on
// the roster, and re-queues approved members the roster still lists.
func (c *cycle) checkResponses() {
	domains := c.jr.config.InstitutionDomains()
	for _, m := range c.ledger {
		email := domain.NormalizeEmail(m.Email)
		if c.handled[email] {
			continue
		}
		a, ok := c.onRoster(email)
		if !ok {
			continue
		}

		if m.Status == domain.MemberStatusApproved {
			c.decide(ActionReaccept, email, a.Name, m.MembershipID)
			c.handled[email] = true
			c.acceptBatch = append(c.acceptBatch, a)
			continue
		}
		if m.Status.IsTerminal() {
			continue
		}

		id, found, err := c.jr.services.Inbox.SearchMembershipID(c.ctx, domains.CandidateAddresses(email))
		if err != nil {
			c.fail(email, "search_inbox", err)
			continue
		}
		if !found {
			continue
		}

		c.decide(ActionApprove, email, a.Name, id)
		c.handled[email] = true
		if c.dryRun {
			c.acceptBatch = append(c.acceptBatch, a)
			continue
		}
		if err := c.jr.ledger.UpdateStatus(c.ctx, email, domain.MemberStatusApproved, c.today, id); err != nil {
			c.fail(email, "update_status", err)
			continue
		}
		c.log.Info("Member approved", "email", email, "membership_id", id)
		if err := c.jr.services.Email.Send(c.ctx, service.TemplateWelcome, a); err != nil {
			c.fail(email, "send_welcome", err)
		}
		c.acceptBatch = append(c.acceptBatch, a)
	}
}

// daysSince returns the age of a status date, or false for rows whose date
// could not be read.
func (c *cycle) daysSince(m domain.Member) (int, bool) {
	if m.StatusDate.IsZero() {
		c.fail(m.Email, "read_status_date", errors.New("missing or unparseable status date"))
		return 0, false
	}
	return domain.DaysBetween(m.StatusDate, c.today), true
}

// remind nudges EMAIL SENT applicants once the reminder threshold has passed,
// whether or not they are still on the roster.
func (c *cycle) remind() {
	threshold := c.jr.config.Reconcile.ReminderAfterDays
	for _, m := range c.ledger {
		email := domain.NormalizeEmail(m.Email)
		if c.handled[email] || m.Status != domain.MemberStatusEmailSent {
			continue
		}
		days, ok := c.daysSince(m)
		if !ok || days <= threshold {
			continue
		}

		c.decide(ActionRemind, email, m.Name, "")
		c.handled[email] = true
		if c.dryRun {
			continue
		}
		if err := c.jr.services.Email.Send(c.ctx, service.TemplateReminder, m.Applicant()); err != nil {
			c.fail(email, "send_reminder", err)
			continue
		}
		if err := c.jr.ledger.UpdateStatus(c.ctx, email, domain.MemberStatusReminderSent, c.today, ""); err != nil {
			c.fail(email, "update_status", err)
		}
	}
}

// expire drops REMINDER SENT applicants past the expiry threshold and queues
// them for denial if the roster still lists them.
func (c *cycle) expire() {
	threshold := c.jr.config.Reconcile.ExpireAfterDays
	for _, m := range c.ledger {
		email := domain.NormalizeEmail(m.Email)
		if c.handled[email] || m.Status != domain.MemberStatusReminderSent {
			continue
		}
		days, ok := c.daysSince(m)
		if !ok || days <= threshold {
			continue
		}

		c.decide(ActionExpire, email, m.Name, "")
		c.handled[email] = true
		a, listed := c.onRoster(email)
		if c.dryRun {
			if listed {
				c.rejectBatch = append(c.rejectBatch, a)
			}
			continue
		}
		if err := c.jr.ledger.DeleteMember(c.ctx, email); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				err = fmt.Errorf("ledger row vanished: %w", err)
			}
			c.fail(email, "delete_member", err)
			continue
		}
		if err := c.jr.services.Email.Send(c.ctx, service.TemplateRejection, m.Applicant()); err != nil {
			c.fail(email, "send_rejection", err)
		}
		if listed {
			c.rejectBatch = append(c.rejectBatch, a)
		}
	}
}

// applyRosterActions approves then denies the queued applicants, one portal
// call each. Misses and failures are recorded, never retried in-cycle.
func (c *cycle) applyRosterActions() {
	apply := func(action Action, batch []domain.Applicant, call func(context.Context, domain.Applicant) (bool, error)) {
		for _, a := range batch {
			email := domain.NormalizeEmail(a.Email)
			c.decide(action, email, a.Name, "")
			if c.dryRun {
				continue
			}
			found, err := call(c.ctx, a)
			switch {
			case err != nil:
				c.fail(email, string(action), err)
			case !found:
				c.fail(email, string(action), fmt.Errorf("%s not listed on any roster page", a.Name))
			}
		}
	}
	apply(ActionRosterAccept, c.acceptBatch, c.jr.services.Roster.Accept)
	apply(ActionRosterReject, c.rejectBatch, c.jr.services.Roster.Reject)
	c.log.Info("Applied roster actions", "accepted", len(c.acceptBatch), "rejected", len(c.rejectBatch))
}
