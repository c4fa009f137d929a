package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Entry is one submitted request as seen by the API.
type Entry struct {
	ID         int64     `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	RequestID  string    `json:"request_id"`
	Signer     string    `json:"signer"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// Store persists entries in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open SQLite handle. Call Migrate before use.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the audit table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            occurred_at INTEGER NOT NULL,
            request_id TEXT NOT NULL DEFAULT '',
            signer TEXT NOT NULL DEFAULT '',
            method TEXT NOT NULL,
            path TEXT NOT NULL,
            status INTEGER NOT NULL,
            error TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE INDEX IF NOT EXISTS audit_log_signer_idx ON audit_log(signer);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate audit log: %w", err)
		}
	}
	return nil
}

// Record appends an entry.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO audit_log (occurred_at, request_id, signer, method, path, status, error)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.OccurredAt.UTC().UnixMilli(), e.RequestID, e.Signer, e.Method, e.Path, e.Status, e.Error)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, occurred_at, request_id, signer, method, path, status, error
        FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.ID, &ms, &e.RequestID, &e.Signer, &e.Method, &e.Path, &e.Status, &e.Error); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.OccurredAt = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
