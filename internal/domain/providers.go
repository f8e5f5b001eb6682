package domain

import "context"

// OddsProvider fetches the sports catalog and per-sport odds.
type OddsProvider interface {
	FetchSports(ctx context.Context) ([]Sport, error)
	FetchOdds(ctx context.Context, sportKey string) ([]Event, error)
}

// HistoryProvider looks up a short encyclopedic summary for a team. It never
// fails; problems are reported through HistoryResult.Status.
type HistoryProvider interface {
	FetchSummary(ctx context.Context, team string) HistoryResult
}

// SentimentProvider reports public sentiment for a "{home} vs {away}" label.
type SentimentProvider interface {
	FetchSentiment(ctx context.Context, label string) (SentimentData, error)
}

// PredictionProvider produces a free-text match prediction.
type PredictionProvider interface {
	Predict(ctx context.Context, req PredictionRequest) (string, error)
}
