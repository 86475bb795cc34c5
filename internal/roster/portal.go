// Package roster drives the student engagement portal's prospective member
// list: reading applicants and approving or denying them.
package roster

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ieee-registration-bot/internal/config"
	"ieee-registration-bot/internal/domain"
	"ieee-registration-bot/internal/logger"
	"ieee-registration-bot/internal/service"
)

const (
	listReadySelector    = ".svgGrid"
	profileReadySelector = ".userCard-section"

	// maxPages bounds pagination if the portal ever links a page to itself.
	maxPages = 200
)

// Browser is one authenticated browsing session against the portal.
type Browser interface {
	// Load navigates to rawURL, signs in if redirected to the login page,
	// waits up to timeout for selector and returns the rendered document.
	Load(ctx context.Context, rawURL, selector string, timeout time.Duration) (string, error)
	// Eval runs a script in the current page.
	Eval(ctx context.Context, script string) error
	Close()
}

// BrowserFactory opens a new session. One session is used per operation.
type BrowserFactory func(ctx context.Context) (Browser, error)

type Portal struct {
	cfg        config.RosterConfig
	newBrowser BrowserFactory
}

func NewPortal(cfg config.RosterConfig, newBrowser BrowserFactory) *Portal {
	return &Portal{cfg: cfg, newBrowser: newBrowser}
}

var _ service.RosterService = (*Portal)(nil)

// FetchApplicants walks every page of the prospective member grid and opens
// each profile to read the applicant's name and email.
func (p *Portal) FetchApplicants(ctx context.Context) ([]domain.Applicant, error) {
	logger.ExternalServiceCall("roster", "fetch_applicants", "url", p.cfg.ProspectiveMemberURL)
	applicants, err := p.fetchApplicants(ctx)
	logger.ExternalServiceResult("roster", "fetch_applicants", err, "count", len(applicants))
	return applicants, err
}

func (p *Portal) fetchApplicants(ctx context.Context) ([]domain.Applicant, error) {
	b, err := p.newBrowser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	defer b.Close()

	var applicants []domain.Applicant
	err = p.eachPage(ctx, b, func(page *ListPage) (bool, error) {
		for _, profileURL := range page.ProfileURLs {
			doc, err := b.Load(ctx, profileURL, profileReadySelector, p.cfg.ProfileTimeout)
			if err != nil {
				return false, fmt.Errorf("failed to load profile %s: %w", profileURL, err)
			}
			applicant, err := ParseProfile(strings.NewReader(doc))
			if err != nil {
				return false, fmt.Errorf("failed to read profile %s: %w", profileURL, err)
			}
			logger.Debug("Found roster applicant", "name", applicant.Name, "email", applicant.Email)
			applicants = append(applicants, applicant)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return applicants, nil
}

// Accept approves the applicant's pending request.
func (p *Portal) Accept(ctx context.Context, applicant domain.Applicant) (bool, error) {
	return p.act(ctx, "accept", applicant, func(id string) string {
		return fmt.Sprintf("ApproveMember(%s);", jsString(p.cfg.ApproveURL+id))
	})
}

// Reject denies the applicant's pending request.
func (p *Portal) Reject(ctx context.Context, applicant domain.Applicant) (bool, error) {
	return p.act(ctx, "reject", applicant, func(id string) string {
		return fmt.Sprintf("DenyMember(%s);", jsString(p.cfg.DenyURL+id))
	})
}

// act finds the row whose checkbox is titled with the applicant's name and
// runs the script built from its id. found is false when no page lists them.
func (p *Portal) act(ctx context.Context, operation string, applicant domain.Applicant, script func(id string) string) (bool, error) {
	logger.ExternalServiceCall("roster", operation, "name", applicant.Name, "email", applicant.Email)
	found, err := p.actOn(ctx, applicant, script)
	logger.ExternalServiceResult("roster", operation, err, "name", applicant.Name, "found", found)
	return found, err
}

func (p *Portal) actOn(ctx context.Context, applicant domain.Applicant, script func(id string) string) (bool, error) {
	b, err := p.newBrowser(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to start browser: %w", err)
	}
	defer b.Close()

	found := false
	err = p.eachPage(ctx, b, func(page *ListPage) (bool, error) {
		id, ok := page.RowIDs[applicant.Name]
		if !ok || id == "" {
			return true, nil
		}
		found = true
		if err := b.Eval(ctx, script(id)); err != nil {
			return false, fmt.Errorf("failed to run roster action for %s: %w", applicant.Name, err)
		}
		return false, nil
	})
	if err != nil {
		return found, err
	}
	return found, nil
}

// eachPage loads the list and follows "next" links, calling visit on every
// page until it returns false or the last page is reached.
func (p *Portal) eachPage(ctx context.Context, b Browser, visit func(*ListPage) (bool, error)) error {
	next := p.cfg.ProspectiveMemberURL
	seen := make(map[string]bool)

	for pages := 0; next != "" && !seen[next]; pages++ {
		if pages >= maxPages {
			return errors.New("roster pagination did not terminate")
		}
		seen[next] = true

		doc, err := b.Load(ctx, next, listReadySelector, p.cfg.ListTimeout)
		if err != nil {
			return fmt.Errorf("failed to load roster page %s: %w", next, err)
		}
		base, err := url.Parse(next)
		if err != nil {
			return fmt.Errorf("invalid roster url %s: %w", next, err)
		}
		page, err := ParseListPage(strings.NewReader(doc), base)
		if err != nil {
			return err
		}

		more, err := visit(page)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		next = page.NextURL
	}
	return nil
}

func jsString(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`).Replace(s) + "'"
}
