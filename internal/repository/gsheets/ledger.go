// Package gsheets keeps the membership ledger in a Google Sheet.
//
// Layout: row 1 is a header; each following row is
// Name | Email | Membership ID | Status | Status Date (MM/DD/YY).
package gsheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/sheets/v4"

	"ieee-registration-bot/internal/domain"
	"ieee-registration-bot/internal/logger"
	"ieee-registration-bot/internal/repository"
	"ieee-registration-bot/internal/workspace"
)

const firstDataRow = 2

type ledgerRepository struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewLedgerRepository(svc *sheets.Service, spreadsheetID, sheetName string) repository.LedgerRepository {
	return &ledgerRepository{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func (r *ledgerRepository) a1(cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(r.sheetName, "'", "''"), cells)
}

func (r *ledgerRepository) ListMembers(ctx context.Context) ([]domain.Member, error) {
	logger.ExternalServiceCall("sheets", "values.get", "spreadsheet_id", r.spreadsheetID)
	var resp *sheets.ValueRange
	err := workspace.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = r.svc.Spreadsheets.Values.Get(r.spreadsheetID, r.a1(fmt.Sprintf("A%d:E", firstDataRow))).
			Context(ctx).Do()
		return err
	})
	logger.ExternalServiceResult("sheets", "values.get", err)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger sheet: %w", err)
	}

	members := make([]domain.Member, 0, len(resp.Values))
	for i, row := range resp.Values {
		m, ok := memberFromRow(row)
		if !ok {
			logger.Warn("Skipping ledger row without an email", "row", i+firstDataRow)
			continue
		}
		members = append(members, m)
	}
	return members, nil
}

func (r *ledgerRepository) AppendMember(ctx context.Context, m *domain.Member) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{rowFromMember(m)}}
	logger.ExternalServiceCall("sheets", "values.append", "email", m.Email)
	err := workspace.Do(ctx, func(ctx context.Context) error {
		_, err := r.svc.Spreadsheets.Values.Append(r.spreadsheetID, r.a1("A:E"), vr).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		return err
	})
	logger.ExternalServiceResult("sheets", "values.append", err, "email", m.Email)
	if err != nil {
		return fmt.Errorf("failed to append ledger row: %w", err)
	}
	return nil
}

func (r *ledgerRepository) UpdateStatus(ctx context.Context, email string, status domain.MemberStatus, date time.Time, membershipID string) error {
	row, err := r.findRow(ctx, email)
	if err != nil {
		return err
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{{membershipID, string(status), date.Format(domain.SheetDateLayout)}}}
	logger.ExternalServiceCall("sheets", "values.update", "email", email, "row", row)
	err = workspace.Do(ctx, func(ctx context.Context) error {
		_, err := r.svc.Spreadsheets.Values.Update(r.spreadsheetID, r.a1(fmt.Sprintf("C%d:E%d", row, row)), vr).
			ValueInputOption("RAW").
			Context(ctx).Do()
		return err
	})
	logger.ExternalServiceResult("sheets", "values.update", err, "email", email)
	if err != nil {
		return fmt.Errorf("failed to update ledger row: %w", err)
	}
	return nil
}

func (r *ledgerRepository) DeleteMember(ctx context.Context, email string) error {
	row, err := r.findRow(ctx, email)
	if err != nil {
		return err
	}
	sheetID, err := r.sheetID(ctx)
	if err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}
	logger.ExternalServiceCall("sheets", "batchUpdate.deleteDimension", "email", email, "row", row)
	err = workspace.Do(ctx, func(ctx context.Context) error {
		_, err := r.svc.Spreadsheets.BatchUpdate(r.spreadsheetID, req).Context(ctx).Do()
		return err
	})
	logger.ExternalServiceResult("sheets", "batchUpdate.deleteDimension", err, "email", email)
	if err != nil {
		return fmt.Errorf("failed to delete ledger row: %w", err)
	}
	return nil
}

// findRow returns the 1-based sheet row holding email.
func (r *ledgerRepository) findRow(ctx context.Context, email string) (int, error) {
	var resp *sheets.ValueRange
	err := workspace.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = r.svc.Spreadsheets.Values.Get(r.spreadsheetID, r.a1(fmt.Sprintf("B%d:B", firstDataRow))).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger emails: %w", err)
	}
	want := domain.NormalizeEmail(email)
	for i, row := range resp.Values {
		if len(row) > 0 && domain.NormalizeEmail(cell(row, 0)) == want {
			return i + firstDataRow, nil
		}
	}
	return 0, fmt.Errorf("%s: %w", email, repository.ErrNotFound)
}

func (r *ledgerRepository) sheetID(ctx context.Context) (int64, error) {
	var ss *sheets.Spreadsheet
	err := workspace.Do(ctx, func(ctx context.Context) error {
		var err error
		ss, err = r.svc.Spreadsheets.Get(r.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read spreadsheet properties: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == r.sheetName {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", r.sheetName)
}

func memberFromRow(row []interface{}) (domain.Member, bool) {
	email := domain.NormalizeEmail(cell(row, 1))
	if email == "" {
		return domain.Member{}, false
	}
	m := domain.Member{
		Name:         strings.TrimSpace(cell(row, 0)),
		Email:        email,
		MembershipID: strings.TrimSpace(cell(row, 2)),
	}
	status, err := domain.ParseMemberStatus(cell(row, 3))
	if err != nil {
		logger.Warn("Ledger row has unrecognized status", "email", email, "status", cell(row, 3))
		m.RawStatus = cell(row, 3)
	}
	m.Status = status
	if d, ok := domain.ParseDate(strings.TrimSpace(cell(row, 4)), domain.SheetDateLayout, "1/2/2006", domain.ISODateLayout); ok {
		m.StatusDate = d
	} else {
		logger.Warn("Ledger row has malformed status date", "email", email, "status_date", cell(row, 4))
	}
	return m, true
}

func rowFromMember(m *domain.Member) []interface{} {
	return []interface{}{
		m.Name,
		domain.NormalizeEmail(m.Email),
		m.MembershipID,
		string(m.Status),
		m.StatusDate.Format(domain.SheetDateLayout),
	}
}

func cell(row []interface{}, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return fmt.Sprint(row[i])
}
