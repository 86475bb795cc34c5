package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"ieee-registration-bot/internal/domain"
	"ieee-registration-bot/internal/repository"
	"ieee-registration-bot/internal/service"
)

type MockRoster struct {
	mock.Mock
}

func (m *MockRoster) FetchApplicants(ctx context.Context) ([]domain.Applicant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Applicant), args.Error(1)
}

func (m *MockRoster) Accept(ctx context.Context, applicant domain.Applicant) (bool, error) {
	args := m.Called(ctx, applicant)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoster) Reject(ctx context.Context, applicant domain.Applicant) (bool, error) {
	args := m.Called(ctx, applicant)
	return args.Bool(0), args.Error(1)
}

type MockEmail struct {
	mock.Mock
}

func (m *MockEmail) Send(ctx context.Context, tmpl service.Template, applicant domain.Applicant) error {
	args := m.Called(ctx, tmpl, applicant)
	return args.Error(0)
}

func (m *MockEmail) SendCritical(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

type MockInbox struct {
	mock.Mock
}

func (m *MockInbox) SearchMembershipID(ctx context.Context, addresses []string) (string, bool, error) {
	args := m.Called(ctx, addresses)
	return args.String(0), args.Bool(1), args.Error(2)
}

// memLedger is an in-memory ledger that refuses non-monotonic status changes,
// so any backwards transition the engine attempts surfaces as a failure.
type memLedger struct {
	mu      sync.Mutex
	rows    []domain.Member
	writes  int
	failOn  map[string]error // "op:email" -> error
	listErr error
}

func newMemLedger(rows ...domain.Member) *memLedger {
	return &memLedger{rows: rows, failOn: map[string]error{}}
}

func (l *memLedger) ListMembers(ctx context.Context) ([]domain.Member, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listErr != nil {
		return nil, l.listErr
	}
	out := make([]domain.Member, len(l.rows))
	copy(out, l.rows)
	return out, nil
}

func (l *memLedger) AppendMember(ctx context.Context, member *domain.Member) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failOn["append:"+member.Email]; err != nil {
		return err
	}
	l.writes++
	l.rows = append(l.rows, *member)
	return nil
}

func (l *memLedger) UpdateStatus(ctx context.Context, email string, status domain.MemberStatus, date time.Time, membershipID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failOn["update:"+email]; err != nil {
		return err
	}
	for i := range l.rows {
		if domain.NormalizeEmail(l.rows[i].Email) != email {
			continue
		}
		if !l.rows[i].Status.CanTransitionTo(status) {
			return fmt.Errorf("illegal transition %s -> %s", l.rows[i].Status, status)
		}
		l.writes++
		l.rows[i].Status = status
		l.rows[i].StatusDate = date
		l.rows[i].MembershipID = membershipID
		return nil
	}
	return repository.ErrNotFound
}

func (l *memLedger) DeleteMember(ctx context.Context, email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failOn["delete:"+email]; err != nil {
		return err
	}
	for i := range l.rows {
		if domain.NormalizeEmail(l.rows[i].Email) == email {
			l.writes++
			l.rows = append(l.rows[:i], l.rows[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (l *memLedger) get(email string) (domain.Member, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.rows {
		if m.Email == email {
			return m, true
		}
	}
	return domain.Member{}, false
}
