package service

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"ieee-registration-bot/internal/logger"
)

type smtpSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
}

func NewSMTPSender(host string, port int, username, password, from, fromName string) Sender {
	return &smtpSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
	}
}

func (s *smtpSender) Send(ctx context.Context, msg OutgoingMessage) error {
	m := composeMessage(s.from, s.fromName, msg)
	d := gomail.NewDialer(s.host, s.port, s.username, s.password)

	logger.ExternalServiceCall("smtp", "send", "to", msg.To)
	err := d.DialAndSend(m)
	logger.ExternalServiceResult("smtp", "send", err, "to", msg.To)
	if err != nil {
		return fmt.Errorf("failed to send email via gomail: %w", err)
	}
	return nil
}

// composeMessage builds the MIME message shared by the SMTP and Gmail senders.
func composeMessage(from, fromName string, msg OutgoingMessage) *gomail.Message {
	m := gomail.NewMessage()
	if fromName != "" {
		m.SetAddressHeader("From", from, fromName)
	} else {
		m.SetHeader("From", from)
	}
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	return m
}
