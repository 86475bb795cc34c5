package app

import (
	"fmt"

	"github.com/olekukonko/tablewriter"

	"ieee-registration-bot/internal/domain"
	"ieee-registration-bot/internal/jobs"
)

func (a *App) printMembers(members []domain.Member) error {
	table := tablewriter.NewTable(a.stdout)
	table.Header("Name", "Email", "Membership ID", "Status", "Status Date")
	for _, m := range members {
		date := ""
		if !m.StatusDate.IsZero() {
			date = m.StatusDate.Format(domain.ISODateLayout)
		}
		if err := table.Append(m.Name, m.Email, m.MembershipID, m.DisplayStatus(), date); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	a.printf("%d members\n", len(members))
	return nil
}

func (a *App) printReport(report *jobs.CycleReport) error {
	mode := "live"
	if report.DryRun {
		mode = "dry run"
	}
	a.printf("Cycle %s (%s), reached %s\n", report.ID, mode, report.Phase)

	if len(report.Decisions) > 0 {
		table := tablewriter.NewTable(a.stdout)
		table.Header("Action", "Email", "Name", "Membership ID")
		for _, d := range report.Decisions {
			if err := table.Append(string(d.Action), d.Email, d.Name, d.MembershipID); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	if len(report.Failures) > 0 {
		table := tablewriter.NewTable(a.stdout)
		table.Header("Phase", "Email", "Operation", "Error")
		for _, f := range report.Failures {
			if err := table.Append(string(f.Phase), f.Email, f.Operation, f.Error); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("%d decisions, %d failures", len(report.Decisions), len(report.Failures))
	if report.Aborted() {
		summary += ", aborted: " + report.Error
	}
	a.printf("%s\n", summary)
	return nil
}
