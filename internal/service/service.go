package service

import (
	"context"

	"ieee-registration-bot/internal/domain"
)

// RosterService is the engagement portal's prospective member list.
// Accept and Reject report found=false when the applicant is not listed on
// any page; err is reserved for failures talking to the portal.
type RosterService interface {
	FetchApplicants(ctx context.Context) ([]domain.Applicant, error)
	Accept(ctx context.Context, applicant domain.Applicant) (found bool, err error)
	Reject(ctx context.Context, applicant domain.Applicant) (found bool, err error)
}

// EmailService sends the templated applicant emails and the maintainer alert.
type EmailService interface {
	Send(ctx context.Context, tmpl Template, applicant domain.Applicant) error
	SendCritical(ctx context.Context, message string) error
}

// InboxService searches the branch inbox for a membership number sent from
// any of the given addresses.
type InboxService interface {
	SearchMembershipID(ctx context.Context, addresses []string) (id string, found bool, err error)
}

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, msg OutgoingMessage) error
}

// OutgoingMessage is a rendered HTML email.
type OutgoingMessage struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}
