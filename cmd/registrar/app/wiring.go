package app

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"ieee-registration-bot/internal/jobs"
	"ieee-registration-bot/internal/logger"
	"ieee-registration-bot/internal/repository"
	"ieee-registration-bot/internal/repository/gsheets"
	"ieee-registration-bot/internal/repository/sqlstore"
	"ieee-registration-bot/internal/roster"
	"ieee-registration-bot/internal/service"
	"ieee-registration-bot/internal/workspace"
)

func (a *App) google(ctx context.Context) (*http.Client, error) {
	if a.googleClient != nil {
		return a.googleClient, nil
	}
	client, err := workspace.NewHTTPClient(ctx, a.cfg.Google.CredentialsFile, a.cfg.Google.TokenFile)
	if err != nil {
		return nil, err
	}
	a.googleClient = client
	return client, nil
}

func (a *App) gmailService(ctx context.Context) (*gmail.Service, error) {
	client, err := a.google(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	return svc, nil
}

// buildLedger opens the configured ledger backend.
func (a *App) buildLedger(ctx context.Context) (repository.LedgerRepository, error) {
	switch a.cfg.Ledger.Backend {
	case "sheets":
		client, err := a.google(ctx)
		if err != nil {
			return nil, err
		}
		svc, err := sheets.NewService(ctx, option.WithHTTPClient(client))
		if err != nil {
			return nil, fmt.Errorf("failed to create sheets client: %w", err)
		}
		logger.Info("Using Google Sheets ledger", "spreadsheet_id", a.cfg.Ledger.Sheets.SpreadsheetID, "sheet", a.cfg.Ledger.Sheets.SheetName)
		return gsheets.NewLedgerRepository(svc, a.cfg.Ledger.Sheets.SpreadsheetID, a.cfg.Ledger.Sheets.SheetName), nil
	default:
		driver, dsn := a.cfg.GetDatabaseConnectionString()
		logger.Info("Connecting to ledger database...", "driver", driver, "host", a.cfg.Ledger.Database.Host, "path", a.cfg.Ledger.Database.Path)
		db, err := sqlstore.Open(ctx, driver, dsn)
		if err != nil {
			return nil, err
		}
		a.onClose(db.Close)
		return sqlstore.NewLedgerRepository(db, sqlstore.DialectFor(driver)), nil
	}
}

// buildSender picks the outgoing mail transport.
func (a *App) buildSender(ctx context.Context) (service.Sender, error) {
	mail := a.cfg.Mail
	switch mail.Provider {
	case "smtp":
		return service.NewSMTPSender(mail.SMTP.Host, mail.SMTP.Port, mail.SMTP.User, mail.SMTP.Password, mail.From, mail.FromName), nil
	case "sendgrid":
		return service.NewSendGridSender(mail.SendGrid.APIKey, mail.From, mail.FromName), nil
	default:
		svc, err := a.gmailService(ctx)
		if err != nil {
			return nil, err
		}
		return service.NewGmailSender(svc, a.cfg.Google.User, mail.From, mail.FromName), nil
	}
}

func (a *App) buildEmail(ctx context.Context) (service.EmailService, error) {
	templates, err := service.LoadTemplates(a.cfg.Mail.TemplateDir)
	if err != nil {
		return nil, err
	}
	sender, err := a.buildSender(ctx)
	if err != nil {
		return nil, err
	}
	return service.NewEmailService(sender, templates, a.cfg.Mail.PresidentName, a.cfg.Mail.CriticalRecipient), nil
}

func (a *App) buildInbox(ctx context.Context) (service.InboxService, error) {
	svc, err := a.gmailService(ctx)
	if err != nil {
		return nil, err
	}
	return service.NewGmailInbox(svc, a.cfg.Google.User), nil
}

// buildRunner assembles the reconciliation engine from the configuration.
func (a *App) buildRunner(ctx context.Context) (*jobs.JobRunner, error) {
	ledger, err := a.buildLedger(ctx)
	if err != nil {
		return nil, err
	}
	email, err := a.buildEmail(ctx)
	if err != nil {
		return nil, err
	}
	inbox, err := a.buildInbox(ctx)
	if err != nil {
		return nil, err
	}
	portal := roster.NewPortal(a.cfg.Roster, roster.ChromeFactory(a.cfg.Roster))

	return jobs.NewJobRunner(ledger, &jobs.Services{
		Roster: portal,
		Email:  email,
		Inbox:  inbox,
	}, a.cfg), nil
}
