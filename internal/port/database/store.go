// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/subinesh21/codelens-ai/internal/domain/analysis"
)

// Store is the port interface for the analysis history store.
// Implementations return domain.ErrNotFound for missing records.
type Store interface {
	InsertAnalysis(ctx context.Context, rec analysis.Record) error
	ListAnalyses(ctx context.Context, limit int) ([]analysis.Record, error)
	GetAnalysis(ctx context.Context, id string) (*analysis.Record, error)
	DeleteAnalysis(ctx context.Context, id string) error
}
