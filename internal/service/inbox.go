package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/gmail/v1"

	"ieee-registration-bot/internal/logger"
	"ieee-registration-bot/internal/workspace"
)

var errStopPaging = errors.New("stop paging")

type gmailInbox struct {
	svc  *gmail.Service
	user string
}

// NewGmailInbox searches the mailbox of user ("me" for the token owner).
func NewGmailInbox(svc *gmail.Service, user string) InboxService {
	return &gmailInbox{svc: svc, user: user}
}

// SearchMembershipID walks every message sent from one of addresses in the
// order the Gmail API lists them and returns the first membership ID found
// in a plain-text body.
func (s *gmailInbox) SearchMembershipID(ctx context.Context, addresses []string) (string, bool, error) {
	query := senderQuery(addresses)
	if query == "" {
		return "", false, nil
	}

	logger.ExternalServiceCall("gmail", "messages.list", "query", query)
	var (
		id    string
		found bool
	)
	err := s.svc.Users.Messages.List(s.user).Q(query).Pages(ctx, func(page *gmail.ListMessagesResponse) error {
		for _, ref := range page.Messages {
			msg, err := s.getMessage(ctx, ref.Id)
			if err != nil {
				return err
			}
			if id, found = ExtractMembershipID(plainText(msg)); found {
				return errStopPaging
			}
		}
		return nil
	})
	if errors.Is(err, errStopPaging) {
		err = nil
	}
	logger.ExternalServiceResult("gmail", "messages.list", err, "query", query, "found", found)
	if err != nil {
		return "", false, fmt.Errorf("failed to search inbox: %w", err)
	}
	return id, found, nil
}

func (s *gmailInbox) getMessage(ctx context.Context, id string) (*gmail.Message, error) {
	var msg *gmail.Message
	err := workspace.Do(ctx, func(ctx context.Context) error {
		var err error
		msg, err = s.svc.Users.Messages.Get(s.user, id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return msg, nil
}

// senderQuery builds a Gmail search matching mail from any of addresses.
func senderQuery(addresses []string) string {
	terms := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if a = strings.TrimSpace(a); a != "" {
			terms = append(terms, "from:"+a)
		}
	}
	if len(terms) == 0 {
		return ""
	}
	return "{" + strings.Join(terms, " ") + "}"
}

// plainText concatenates the text/plain parts of msg. Messages without one
// fall back to the snippet.
func plainText(msg *gmail.Message) string {
	var b strings.Builder
	collectPlain(msg.Payload, &b)
	if b.Len() == 0 {
		return msg.Snippet
	}
	return b.String()
}

func collectPlain(part *gmail.MessagePart, b *strings.Builder) {
	if part == nil {
		return
	}
	if strings.EqualFold(part.MimeType, "text/plain") && part.Body != nil && part.Body.Data != "" {
		data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
		if err == nil {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.Write(data)
		}
	}
	for _, child := range part.Parts {
		collectPlain(child, b)
	}
}
