// Package audit records handled invocations in SQLite. Recording is
// best-effort observability: a write failure is logged and never affects the
// relay pipeline.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bedrockbot/internal/domain"

	_ "modernc.org/sqlite"
)

// Record is one handled dispatch, success or failure.
type Record struct {
	ID        int64
	Model     domain.ModelID
	ChannelID string
	Outcome   string // "ok" | "error" | "dropped"
	Detail    string // failure description, empty on success
	CreatedAt time.Time
}

const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeDropped = "dropped"
)

// Store is a SQLite-backed invocation log.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (and migrates) the audit database at dbPath.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invocations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		model       TEXT NOT NULL,
		channel_id  TEXT,
		outcome     TEXT NOT NULL,
		detail      TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_invocations_time ON invocations(created_at);
	CREATE INDEX IF NOT EXISTS idx_invocations_model ON invocations(model, outcome);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordInvocation appends one record. Failures are logged, not returned: the
// audit trail must never break the pipeline.
func (s *Store) RecordInvocation(ctx context.Context, rec Record) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (model, channel_id, outcome, detail) VALUES (?, ?, ?, ?)`,
		string(rec.Model), rec.ChannelID, rec.Outcome, rec.Detail,
	)
	if err != nil {
		s.logger.Error("audit record failed", "model", rec.Model, "outcome", rec.Outcome, "err", err)
	}
}

// Recent returns the latest n records, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model, channel_id, outcome, detail, created_at
		 FROM invocations ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var model string
		if err := rows.Scan(&rec.ID, &model, &rec.ChannelID, &rec.Outcome, &rec.Detail, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Model = domain.ModelID(model)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes records older than the retention window.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM invocations WHERE created_at < ?`, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
