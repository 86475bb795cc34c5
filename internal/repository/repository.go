package repository

import (
	"context"
	"errors"
	"time"

	"ieee-registration-bot/internal/domain"
)

// ErrNotFound is returned when no ledger row matches the given email.
var ErrNotFound = errors.New("ledger row not found")

// LedgerRepository is the membership ledger. Rows are keyed by normalized
// email. Implementations do not provide compare-and-swap; callers must not run
// two writers at once.
type LedgerRepository interface {
	ListMembers(ctx context.Context) ([]domain.Member, error)
	AppendMember(ctx context.Context, member *domain.Member) error
	UpdateStatus(ctx context.Context, email string, status domain.MemberStatus, date time.Time, membershipID string) error
	DeleteMember(ctx context.Context, email string) error
}
