package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'waiting',
			party_a_id TEXT,
			party_b_id TEXT,
			created_by TEXT NOT NULL,
			settlement_text TEXT,
			settlement_amount TEXT,
			is_settled INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			sender_id TEXT,
			sender_role TEXT NOT NULL,
			content TEXT NOT NULL,
			message_type TEXT NOT NULL DEFAULT 'text',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at, message_id)`,
		`CREATE TABLE IF NOT EXISTS envelopes (
			envelope_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'sent',
			party_a_signed INTEGER NOT NULL DEFAULT 0,
			party_b_signed INTEGER NOT NULL DEFAULT 0,
			completed_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			checkout_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			amount_cents INTEGER NOT NULL,
			discount_code TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_session ON payments(session_id)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			profile_id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL,
			email TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Columns added after the first schema (SQLite has limited ALTER TABLE support).
	columns := []struct{ name, ddl string }{
		{"party_a_position", "ALTER TABLE sessions ADD COLUMN party_a_position TEXT"},
		{"party_b_position", "ALTER TABLE sessions ADD COLUMN party_b_position TEXT"},
		{"category", "ALTER TABLE sessions ADD COLUMN category TEXT"},
		{"ai_proposal", "ALTER TABLE sessions ADD COLUMN ai_proposal TEXT"},
		{"party_a_edits", "ALTER TABLE sessions ADD COLUMN party_a_edits INTEGER NOT NULL DEFAULT 0"},
		{"party_b_edits", "ALTER TABLE sessions ADD COLUMN party_b_edits INTEGER NOT NULL DEFAULT 0"},
		{"manual_stage", "ALTER TABLE sessions ADD COLUMN manual_stage INTEGER NOT NULL DEFAULT 0"},
		{"manual_progress", "ALTER TABLE sessions ADD COLUMN manual_progress INTEGER NOT NULL DEFAULT 0"},
		{"payment_confirmed", "ALTER TABLE sessions ADD COLUMN payment_confirmed INTEGER NOT NULL DEFAULT 0"},
		{"envelope_requested", "ALTER TABLE sessions ADD COLUMN envelope_requested INTEGER NOT NULL DEFAULT 0"},
		{"failure_reason", "ALTER TABLE sessions ADD COLUMN failure_reason TEXT"},
		{"pending_envelope_id", "ALTER TABLE sessions ADD COLUMN pending_envelope_id TEXT"},
	}
	for _, c := range columns {
		if err := s.ensureColumn("sessions", c.name, c.ddl); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
