package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"ieee-registration-bot/internal/logger"
)

const schema = `CREATE TABLE IF NOT EXISTS members (
	email         TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	membership_id TEXT,
	status        TEXT NOT NULL,
	status_date   TEXT NOT NULL,
	created_on    TEXT NOT NULL
)`

// Dialect adapts "?" placeholders to the driver in use.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) Dialect {
	if driver == "postgres" {
		return DialectPostgres
	}
	return DialectSQLite
}

// Rebind rewrites each "?" into "$n" for postgres.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Open connects to the ledger database and makes sure the members table exists.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the members table when it is missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	logger.DatabaseCall("ensure_schema", schema)
	_, err := db.ExecContext(ctx, schema)
	logger.DatabaseResult("ensure_schema", 0, err)
	if err != nil {
		return fmt.Errorf("failed to create members table: %w", err)
	}
	return nil
}
