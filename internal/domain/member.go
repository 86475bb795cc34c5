package domain

import (
	"fmt"
	"strings"
	"time"
)

type MemberStatus string

const (
	MemberStatusNew          MemberStatus = "NEW"
	MemberStatusEmailSent    MemberStatus = "EMAIL SENT"
	MemberStatusReminderSent MemberStatus = "REMINDER SENT"
	MemberStatusApproved     MemberStatus = "APPROVED"
	MemberStatusRejected     MemberStatus = "REJECTED"

	// MemberStatusUnknown marks a stored row whose status text is blank or
	// not one of the above. Member.RawStatus keeps the text.
	MemberStatusUnknown MemberStatus = ""
)

// ParseMemberStatus accepts the ledger spelling ("EMAIL SENT") as well as the
// underscore form ("EMAIL_SENT"), case-insensitively.
func ParseMemberStatus(s string) (MemberStatus, error) {
	norm := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, "_", " ")))
	switch MemberStatus(norm) {
	case MemberStatusNew, MemberStatusEmailSent, MemberStatusReminderSent, MemberStatusApproved, MemberStatusRejected:
		return MemberStatus(norm), nil
	}
	return "", fmt.Errorf("unknown member status %q", s)
}

// IsKnown reports whether s is a lifecycle status.
func (s MemberStatus) IsKnown() bool {
	return s.rank() >= 0
}

// IsTerminal reports whether no further lifecycle transition is possible.
func (s MemberStatus) IsTerminal() bool {
	return s == MemberStatusApproved || s == MemberStatusRejected
}

// rank orders statuses along the lifecycle. Terminal statuses share a rank.
func (s MemberStatus) rank() int {
	switch s {
	case MemberStatusNew:
		return 0
	case MemberStatusEmailSent:
		return 1
	case MemberStatusReminderSent:
		return 2
	case MemberStatusApproved, MemberStatusRejected:
		return 3
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle monotonic.
func (s MemberStatus) CanTransitionTo(next MemberStatus) bool {
	if s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}

// Applicant is a prospective member as listed on the roster.
type Applicant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FirstName is the first whitespace-separated token of the applicant's name.
func (a Applicant) FirstName() string {
	fields := strings.Fields(a.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Member is one ledger row.
type Member struct {
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	MembershipID string       `json:"membership_id,omitempty"`
	Status       MemberStatus `json:"status"`
	StatusDate   time.Time    `json:"status_date"` // date the current status was entered
	RawStatus    string       `json:"raw_status,omitempty"`
}

func (m Member) Applicant() Applicant {
	return Applicant{Name: m.Name, Email: m.Email}
}

// DisplayStatus is the status as the ledger shows it.
func (m Member) DisplayStatus() string {
	if !m.Status.IsKnown() {
		return m.RawStatus
	}
	return string(m.Status)
}

// NormalizeEmail is the ledger key form of an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
