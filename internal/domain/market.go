package domain

import "time"

// MarketH2H is the head-to-head (moneyline) market key. It is the only market
// the arbitrage and analysis code consumes; other markets pass through.
const MarketH2H = "h2h"

// Sport is one entry of the bookmaker sports catalog.
type Sport struct {
	Key    string `json:"key"`
	Group  string `json:"group"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// Outcome is a single priced result inside a market. Price is a decimal
// payout multiplier (2.50 pays 2.50 per unit staked), never American odds.
type Outcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Market is one bookmaker market for an event. A valid h2h market carries
// exactly two outcomes: index 0 is the home side, index 1 the away side.
type Market struct {
	Key      string    `json:"key"`
	Outcomes []Outcome `json:"outcomes"`
}

// BookmakerQuote is the set of markets one bookmaker offers for an event,
// keyed by market key.
type BookmakerQuote struct {
	Key     string            `json:"key"`
	Title   string            `json:"title"`
	Markets map[string]Market `json:"markets"`
}

// Event is an upcoming match with every bookmaker quote fetched for it.
// Events are treated as immutable once fetched; identity is ID.
type Event struct {
	ID           string           `json:"id"`
	SportKey     string           `json:"sport_key"`
	SportTitle   string           `json:"sport_title"`
	HomeTeam     string           `json:"home_team"`
	AwayTeam     string           `json:"away_team"`
	CommenceTime time.Time        `json:"commence_time"`
	Quotes       []BookmakerQuote `json:"bookmakers"`
}

// Matchup returns the "{home} vs {away}" label used for display and as the
// sentiment query.
func (e Event) Matchup() string {
	return e.HomeTeam + " vs " + e.AwayTeam
}

// FindEvent returns the event with the given id, or false.
func FindEvent(events []Event, id string) (Event, bool) {
	for _, e := range events {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}
