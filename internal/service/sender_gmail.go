package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/api/gmail/v1"

	"ieee-registration-bot/internal/logger"
	"ieee-registration-bot/internal/workspace"
)

type gmailSender struct {
	svc      *gmail.Service
	user     string
	from     string
	fromName string
}

// NewGmailSender sends through the Gmail API as user ("me" for the token owner).
func NewGmailSender(svc *gmail.Service, user, from, fromName string) Sender {
	return &gmailSender{svc: svc, user: user, from: from, fromName: fromName}
}

func (s *gmailSender) Send(ctx context.Context, msg OutgoingMessage) error {
	var buf bytes.Buffer
	if _, err := composeMessage(s.from, s.fromName, msg).WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to compose message: %w", err)
	}
	raw := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(buf.Bytes())}

	logger.ExternalServiceCall("gmail", "messages.send", "to", msg.To)
	err := workspace.Do(ctx, func(ctx context.Context) error {
		_, err := s.svc.Users.Messages.Send(s.user, raw).Context(ctx).Do()
		return err
	})
	logger.ExternalServiceResult("gmail", "messages.send", err, "to", msg.To)
	if err != nil {
		return fmt.Errorf("failed to send email via gmail: %w", err)
	}
	return nil
}
