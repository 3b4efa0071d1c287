// Package store defines the audit storage interface and implementations.
package store

import (
	"context"

	"github.com/electrowiki/assistant/domain"
)

// Store defines the interface for audit persistence.
type Store interface {
	// RecordCompletion records one settled gateway call.
	RecordCompletion(ctx context.Context, rec *domain.CompletionRecord) error

	// ListCompletions returns the most recent completion records,
	// newest first.
	ListCompletions(ctx context.Context, limit int) ([]domain.CompletionRecord, error)

	// Lifecycle
	Close() error
}
