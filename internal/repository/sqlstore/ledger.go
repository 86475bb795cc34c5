package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ieee-registration-bot/internal/domain"
	"ieee-registration-bot/internal/logger"
	"ieee-registration-bot/internal/repository"
)

type ledgerRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewLedgerRepository(db *sql.DB, dialect Dialect) repository.LedgerRepository {
	return &ledgerRepository{db: db, dialect: dialect, now: time.Now}
}

func (r *ledgerRepository) ListMembers(ctx context.Context) ([]domain.Member, error) {
	query := `SELECT name, email, COALESCE(membership_id, ''), status, status_date FROM members ORDER BY created_on, email`
	logger.DatabaseCall("list_members", query)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logger.DatabaseResult("list_members", 0, err)
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var (
			m          domain.Member
			status     string
			statusDate string
		)
		if err := rows.Scan(&m.Name, &m.Email, &m.MembershipID, &status, &statusDate); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Status, err = domain.ParseMemberStatus(status)
		if err != nil {
			logger.Warn("Ledger row has unrecognized status", "email", m.Email, "status", status)
			m.RawStatus = status
		}
		if d, ok := domain.ParseDate(statusDate, domain.ISODateLayout); ok {
			m.StatusDate = d
		} else {
			logger.Warn("Ledger row has malformed status date", "email", m.Email, "status_date", statusDate)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	logger.DatabaseResult("list_members", int64(len(members)), nil)
	return members, nil
}

func (r *ledgerRepository) AppendMember(ctx context.Context, m *domain.Member) error {
	query := r.dialect.Rebind(`INSERT INTO members (email, name, membership_id, status, status_date, created_on) VALUES (?, ?, ?, ?, ?, ?)`)
	logger.DatabaseCall("append_member", query, "email", m.Email)
	_, err := r.db.ExecContext(ctx, query,
		domain.NormalizeEmail(m.Email),
		m.Name,
		nullable(m.MembershipID),
		string(m.Status),
		m.StatusDate.Format(domain.ISODateLayout),
		r.now().UTC().Format(time.RFC3339Nano),
	)
	logger.DatabaseResult("append_member", 1, err)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

func (r *ledgerRepository) UpdateStatus(ctx context.Context, email string, status domain.MemberStatus, date time.Time, membershipID string) error {
	query := r.dialect.Rebind(`UPDATE members SET status = ?, status_date = ?, membership_id = ? WHERE email = ?`)
	logger.DatabaseCall("update_status", query, "email", email, "status", status)
	res, err := r.db.ExecContext(ctx, query, string(status), date.Format(domain.ISODateLayout), nullable(membershipID), domain.NormalizeEmail(email))
	if err != nil {
		logger.DatabaseResult("update_status", 0, err)
		return fmt.Errorf("failed to update member status: %w", err)
	}
	return r.expectOne(res, "update_status", email)
}

func (r *ledgerRepository) DeleteMember(ctx context.Context, email string) error {
	query := r.dialect.Rebind(`DELETE FROM members WHERE email = ?`)
	logger.DatabaseCall("delete_member", query, "email", email)
	res, err := r.db.ExecContext(ctx, query, domain.NormalizeEmail(email))
	if err != nil {
		logger.DatabaseResult("delete_member", 0, err)
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return r.expectOne(res, "delete_member", email)
}

func (r *ledgerRepository) expectOne(res sql.Result, operation, email string) error {
	n, err := res.RowsAffected()
	logger.DatabaseResult(operation, n, err)
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", operation, email, repository.ErrNotFound)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
