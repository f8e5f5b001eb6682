package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// AnalysisStore implements domain.AnalysisStore. The full result is kept as
// JSONB; the queried fields are duplicated into columns.
type AnalysisStore struct {
	pool *pgxpool.Pool
}

// NewAnalysisStore creates an AnalysisStore on pool.
func NewAnalysisStore(pool *pgxpool.Pool) *AnalysisStore {
	return &AnalysisStore{pool: pool}
}

// Insert stores a finished analysis run.
func (s *AnalysisStore) Insert(ctx context.Context, res domain.AnalysisResult) error {
	doc, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("postgres: marshal analysis %s: %w", res.ID, err)
	}
	degraded := res.Degraded
	if degraded == nil {
		degraded = []string{}
	}

	const query = `
		INSERT INTO analysis_runs (
			id, event_id, sport_key, match, prediction, placeholder, degraded, result, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.pool.Exec(ctx, query,
		res.ID, res.EventID, res.SportKey, res.Match, res.Prediction,
		res.Placeholder, degraded, doc, res.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert analysis %s: %w", res.ID, err)
	}
	return nil
}

// GetByID returns one run or domain.ErrNotFound.
func (s *AnalysisStore) GetByID(ctx context.Context, id string) (domain.AnalysisResult, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT result FROM analysis_runs WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AnalysisResult{}, domain.ErrNotFound
		}
		return domain.AnalysisResult{}, fmt.Errorf("postgres: get analysis %s: %w", id, err)
	}
	var res domain.AnalysisResult
	if err := json.Unmarshal(doc, &res); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("postgres: decode analysis %s: %w", id, err)
	}
	return res, nil
}

// ListByEvent returns the runs for one event, newest first.
func (s *AnalysisStore) ListByEvent(ctx context.Context, eventID string, opts domain.ListOpts) ([]domain.AnalysisResult, error) {
	query, args := listQuery(`SELECT result FROM analysis_runs WHERE event_id = $1`,
		[]any{eventID}, 2, "generated_at", opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list analyses for %s: %w", eventID, err)
	}
	defer rows.Close()

	out := []domain.AnalysisResult{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("postgres: scan analysis: %w", err)
		}
		var res domain.AnalysisResult
		if err := json.Unmarshal(doc, &res); err != nil {
			return nil, fmt.Errorf("postgres: decode analysis: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: analysis rows: %w", err)
	}
	return out, nil
}
