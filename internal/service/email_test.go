package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ieee-registration-bot/internal/domain"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg OutgoingMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func newTestEmailService(t *testing.T, sender Sender) EmailService {
	t.Helper()
	ts, err := LoadTemplates("")
	require.NoError(t, err)
	return NewEmailService(sender, ts, "Pat Doe", "ieeesb@g.clemson.edu")
}

func TestEmailService_Send(t *testing.T) {
	sender := new(MockSender)
	svc := newTestEmailService(t, sender)
	alice := domain.Applicant{Name: "Alice Smith", Email: "alice@clemson.edu"}

	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg OutgoingMessage) bool {
		return msg.To == "alice@clemson.edu" &&
			msg.ToName == "Alice Smith" &&
			msg.Subject == "Thank you for your interest in Clemson IEEE!"
	})).Return(nil).Once()

	require.NoError(t, svc.Send(context.Background(), TemplateInterest, alice))
	sender.AssertExpectations(t)
}

func TestEmailService_Send_Failure(t *testing.T) {
	sender := new(MockSender)
	svc := newTestEmailService(t, sender)

	sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("quota exceeded"))

	err := svc.Send(context.Background(), TemplateReminder, domain.Applicant{Name: "Bob", Email: "bob@clemson.edu"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bob@clemson.edu")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestEmailService_SendCritical(t *testing.T) {
	sender := new(MockSender)
	svc := newTestEmailService(t, sender)

	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg OutgoingMessage) bool {
		return msg.To == "ieeesb@g.clemson.edu" &&
			msg.Subject == "CRITICAL ERROR in IEEE Registration Bot"
	})).Return(nil).Once()

	require.NoError(t, svc.SendCritical(context.Background(), "roster unreachable"))
	sender.AssertExpectations(t)
}
