package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subinesh21/codelens-ai/internal/domain"
	"github.com/subinesh21/codelens-ai/internal/domain/analysis"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const analysisColumns = `id, operation, language, fingerprint, cached, duration_ms,
	model, tokens_in, tokens_out, summary, created_at`

// InsertAnalysis persists one completed dispatch record.
func (s *Store) InsertAnalysis(ctx context.Context, rec analysis.Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analyses (id, operation, language, fingerprint, cached, duration_ms,
			model, tokens_in, tokens_out, summary, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, string(rec.Operation), rec.Language, rec.Fingerprint, rec.Cached,
		rec.DurationMS, rec.Model, rec.TokensIn, rec.TokensOut, rec.Summary, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// ListAnalyses returns the most recent records, newest first.
func (s *Store) ListAnalyses(ctx context.Context, limit int) ([]analysis.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+analysisColumns+` FROM analyses ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var recs []analysis.Record
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// GetAnalysis returns one record by ID.
func (s *Store) GetAnalysis(ctx context.Context, id string) (*analysis.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id)

	rec, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get analysis %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get analysis %s: %w", id, err)
	}
	return &rec, nil
}

// DeleteAnalysis removes one record by ID.
func (s *Store) DeleteAnalysis(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete analysis %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete analysis %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// scannable abstracts pgx.Row and pgx.Rows for the shared scan helper.
type scannable interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scannable) (analysis.Record, error) {
	var rec analysis.Record
	var op string
	err := row.Scan(&rec.ID, &op, &rec.Language, &rec.Fingerprint, &rec.Cached,
		&rec.DurationMS, &rec.Model, &rec.TokensIn, &rec.TokensOut, &rec.Summary, &rec.CreatedAt)
	if err != nil {
		return analysis.Record{}, err
	}
	rec.Operation = analysis.Operation(op)
	return rec, nil
}
