package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ArbStore persists arbitrage opportunity history.
type ArbStore interface {
	Insert(ctx context.Context, opp ArbOpportunity) error
	ListRecent(ctx context.Context, limit int) ([]ArbOpportunity, error)
	ListBySport(ctx context.Context, sportKey string, opts ListOpts) ([]ArbOpportunity, error)
}

// AnalysisStore persists completed analysis runs.
type AnalysisStore interface {
	Insert(ctx context.Context, res AnalysisResult) error
	GetByID(ctx context.Context, id string) (AnalysisResult, error)
	ListByEvent(ctx context.Context, eventID string, opts ListOpts) ([]AnalysisResult, error)
}
