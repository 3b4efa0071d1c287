package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/electrowiki/assistant/domain"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
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
		`CREATE TABLE IF NOT EXISTS completions (
			request_id TEXT PRIMARY KEY,
			caller TEXT NOT NULL,
			prompt_chars INTEGER NOT NULL,
			model TEXT NOT NULL,
			outcome TEXT NOT NULL,
			detail TEXT,
			latency_ms INTEGER NOT NULL,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_completions_created ON completions(created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordCompletion records one settled gateway call.
func (s *SQLiteStore) RecordCompletion(ctx context.Context, rec *domain.CompletionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completions
		 (request_id, caller, prompt_chars, model, outcome, detail, latency_ms,
		  prompt_tokens, completion_tokens, total_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Caller, rec.PromptChars, rec.Model, string(rec.Outcome),
		rec.Detail, rec.LatencyMs, rec.PromptTokens, rec.CompletionTokens,
		rec.TotalTokens, rec.CreatedAt)
	return err
}

// ListCompletions returns the most recent completion records, newest first.
func (s *SQLiteStore) ListCompletions(ctx context.Context, limit int) ([]domain.CompletionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, caller, prompt_chars, model, outcome, detail,
		        latency_ms, prompt_tokens, completion_tokens, total_tokens, created_at
		 FROM completions
		 ORDER BY created_at DESC, request_id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.CompletionRecord
	for rows.Next() {
		var rec domain.CompletionRecord
		var detail sql.NullString
		var outcome string
		if err := rows.Scan(&rec.RequestID, &rec.Caller, &rec.PromptChars, &rec.Model,
			&outcome, &detail, &rec.LatencyMs, &rec.PromptTokens,
			&rec.CompletionTokens, &rec.TotalTokens, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Outcome = domain.CompletionOutcome(outcome)
		if detail.Valid {
			rec.Detail = detail.String
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Ensure SQLiteStore implements Store interface.
var _ Store = (*SQLiteStore)(nil)
