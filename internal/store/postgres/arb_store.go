package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// ArbStore implements domain.ArbStore.
type ArbStore struct {
	pool *pgxpool.Pool
}

// NewArbStore creates an ArbStore on pool.
func NewArbStore(pool *pgxpool.Pool) *ArbStore {
	return &ArbStore{pool: pool}
}

const arbCols = `id, event_id, sport_key, sport_title, match,
	combined_implied_probability, profit_margin_percent, stake_legs, detected_at`

// Insert stores an opportunity. Re-inserting the same ID is a no-op.
func (s *ArbStore) Insert(ctx context.Context, opp domain.ArbOpportunity) error {
	legs, err := json.Marshal(opp.Legs)
	if err != nil {
		return fmt.Errorf("postgres: marshal stake legs %s: %w", opp.ID, err)
	}

	const query = `
		INSERT INTO arb_opportunities (` + arbCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`
	_, err = s.pool.Exec(ctx, query,
		opp.ID, opp.EventID, opp.SportKey, opp.SportTitle, opp.Match,
		opp.CombinedImpliedProbability, opp.ProfitMarginPercent, legs, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert arb opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns up to limit opportunities, newest first.
func (s *ArbStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbOpportunity, error) {
	query, args := listQuery(`SELECT `+arbCols+` FROM arb_opportunities WHERE TRUE`, nil, 1,
		"detected_at", domain.ListOpts{Limit: limit})
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent arbs: %w", err)
	}
	return collectArbs(rows)
}

// ListBySport returns opportunities for one sport within opts' window.
func (s *ArbStore) ListBySport(ctx context.Context, sportKey string, opts domain.ListOpts) ([]domain.ArbOpportunity, error) {
	query, args := listQuery(`SELECT `+arbCols+` FROM arb_opportunities WHERE sport_key = $1`,
		[]any{sportKey}, 2, "detected_at", opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list arbs for %s: %w", sportKey, err)
	}
	return collectArbs(rows)
}

func collectArbs(rows pgx.Rows) ([]domain.ArbOpportunity, error) {
	defer rows.Close()

	opps := []domain.ArbOpportunity{}
	for rows.Next() {
		var (
			opp  domain.ArbOpportunity
			legs []byte
		)
		if err := rows.Scan(
			&opp.ID, &opp.EventID, &opp.SportKey, &opp.SportTitle, &opp.Match,
			&opp.CombinedImpliedProbability, &opp.ProfitMarginPercent, &legs, &opp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan arb: %w", err)
		}
		if err := json.Unmarshal(legs, &opp.Legs); err != nil {
			return nil, fmt.Errorf("postgres: decode stake legs %s: %w", opp.ID, err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: arb rows: %w", err)
	}
	return opps, nil
}
