package service

import (
	"context"
	"fmt"

	"ieee-registration-bot/internal/domain"
	"ieee-registration-bot/internal/logger"
)

type emailService struct {
	sender            Sender
	templates         *TemplateSet
	presidentName     string
	criticalRecipient string
}

func NewEmailService(sender Sender, templates *TemplateSet, presidentName, criticalRecipient string) EmailService {
	return &emailService{
		sender:            sender,
		templates:         templates,
		presidentName:     presidentName,
		criticalRecipient: criticalRecipient,
	}
}

func (s *emailService) Send(ctx context.Context, tmpl Template, applicant domain.Applicant) error {
	subject, body, err := s.templates.Render(tmpl, applicant, s.presidentName)
	if err != nil {
		return err
	}

	msg := OutgoingMessage{
		To:      applicant.Email,
		ToName:  applicant.Name,
		Subject: subject,
		HTML:    body,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s email to %s: %w", tmpl, applicant.Email, err)
	}

	logger.Debug("Email sent", "template", tmpl, "name", applicant.Name, "email", applicant.Email)
	return nil
}

func (s *emailService) SendCritical(ctx context.Context, message string) error {
	subject, body := s.templates.RenderCritical(message)
	msg := OutgoingMessage{
		To:      s.criticalRecipient,
		Subject: subject,
		HTML:    body,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send critical error email: %w", err)
	}

	logger.Debug("Critical error email sent", "to", s.criticalRecipient)
	return nil
}
