package domain

import "time"

// BestPriceView is the best available price per h2h slot across all of an
// event's bookmaker quotes. Zero price and empty bookmaker mean no valid
// quote was found for that slot.
type BestPriceView struct {
	HomePrice     float64 `json:"home_price"`
	HomeBookmaker string  `json:"home_bookmaker"`
	AwayPrice     float64 `json:"away_price"`
	AwayBookmaker string  `json:"away_bookmaker"`
}

// Complete reports whether both slots had at least one valid quote.
func (v BestPriceView) Complete() bool {
	return v.HomePrice > 0 && v.AwayPrice > 0
}

// StakeLeg is one bet of an arbitrage opportunity. StakeFraction is the share
// of the bankroll to place on this leg so every outcome pays the same.
type StakeLeg struct {
	OutcomeName   string  `json:"outcome_name"`
	Price         float64 `json:"price"`
	Bookmaker     string  `json:"bookmaker"`
	StakeFraction float64 `json:"stake_fraction"`
}

// ArbOpportunity is a two-outcome cross-bookmaker arbitrage. It only exists
// when CombinedImpliedProbability is strictly below 1.
type ArbOpportunity struct {
	ID                         string     `json:"id"`
	EventID                    string     `json:"event_id"`
	SportKey                   string     `json:"sport_key"`
	SportTitle                 string     `json:"sport_title"`
	Match                      string     `json:"match"`
	CombinedImpliedProbability float64    `json:"combined_implied_probability"`
	ProfitMarginPercent        float64    `json:"profit_margin_percent"`
	Legs                       []StakeLeg `json:"stake_legs"`
	DetectedAt                 time.Time  `json:"detected_at"`
}
