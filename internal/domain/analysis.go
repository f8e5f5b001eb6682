package domain

import (
	"strconv"
	"time"
)

// NotAvailable is the sentinel forwarded downstream for a missing value.
const NotAvailable = "N/A"

// Price is an optional decimal price. An unavailable price renders as N/A
// rather than zero.
type Price struct {
	Value     float64 `json:"value"`
	Available bool    `json:"available"`
}

// PriceOf wraps v, treating non-positive values as unavailable.
func PriceOf(v float64) Price {
	if v <= 0 {
		return Price{}
	}
	return Price{Value: v, Available: true}
}

func (p Price) String() string {
	if !p.Available {
		return NotAvailable
	}
	return strconv.FormatFloat(p.Value, 'f', -1, 64)
}

// OddsData is the best home and away price forwarded to the prediction stage.
type OddsData struct {
	Home Price `json:"home_team_odds"`
	Away Price `json:"away_team_odds"`
}

// HistoryStatus classifies a history lookup.
type HistoryStatus string

const (
	HistoryFound       HistoryStatus = "found"
	HistoryAbsent      HistoryStatus = "absent"
	HistoryUnavailable HistoryStatus = "unavailable"
)

// NoHistoryText is shown when a team summary could not be obtained at all.
const NoHistoryText = "No data available."

// HistoryResult is a typed team-history lookup. Summary always holds display
// text: the summary itself when found, an explanation otherwise.
type HistoryResult struct {
	Team    string        `json:"team"`
	Summary string        `json:"summary"`
	Status  HistoryStatus `json:"status"`
}

// Text returns the display string for the result.
func (h HistoryResult) Text() string {
	if h.Summary == "" {
		return NoHistoryText
	}
	return h.Summary
}

// HistoricalData holds both teams' history for an analysis.
type HistoricalData struct {
	Home HistoryResult `json:"home_team_history"`
	Away HistoryResult `json:"away_team_history"`
}

// SentimentData is the public-sentiment breakdown for a matchup. Ratios are
// in [0,1] and sum to roughly 1; the producer owns normalization.
type SentimentData struct {
	PositiveRatio float64 `json:"positive_ratio"`
	NeutralRatio  float64 `json:"neutral_ratio"`
	NegativeRatio float64 `json:"negative_ratio"`
	TweetCount    int     `json:"tweet_count"`
	Available     bool    `json:"available"`
}

// PredictionRequest is everything the prediction collaborator receives.
type PredictionRequest struct {
	HomeTeam  string
	AwayTeam  string
	Odds      OddsData
	Sentiment SentimentData
	History   HistoricalData
}

// AnalysisResult is the outcome of one analysis pipeline run. Degraded lists
// the stages that fell back to a default value.
type AnalysisResult struct {
	ID          string         `json:"id"`
	EventID     string         `json:"event_id"`
	SportKey    string         `json:"sport_key"`
	Match       string         `json:"match"`
	Odds        OddsData       `json:"odds"`
	BestPrices  BestPriceView  `json:"best_prices"`
	Sentiment   SentimentData  `json:"sentiment"`
	History     HistoricalData `json:"history"`
	Prediction  string         `json:"prediction"`
	Placeholder bool           `json:"placeholder"`
	Degraded    []string       `json:"degraded,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
}
