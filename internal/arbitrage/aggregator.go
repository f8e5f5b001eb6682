// Package arbitrage finds cross-bookmaker two-outcome arbitrage in head-to-head
// markets.
package arbitrage

import "github.com/alanyoungcy/oddsbot/internal/domain"

// BestPrices returns the best home and away price across every bookmaker
// quote of ev.
//
// Outcomes are matched by position: index 0 must name the home team and
// index 1 the away team. A market only ever improves one slot; the away slot
// is considered only when the home outcome did not improve the running best.
// Markets that are not h2h, or h2h markets without exactly two outcomes,
// contribute nothing.
func BestPrices(ev domain.Event) domain.BestPriceView {
	var v domain.BestPriceView
	for _, q := range ev.Quotes {
		m, ok := q.Markets[domain.MarketH2H]
		if !ok || len(m.Outcomes) != 2 {
			continue
		}
		home, away := m.Outcomes[0], m.Outcomes[1]
		if home.Name == ev.HomeTeam && home.Price > v.HomePrice {
			v.HomePrice = home.Price
			v.HomeBookmaker = q.Title
		} else if away.Name == ev.AwayTeam && away.Price > v.AwayPrice {
			v.AwayPrice = away.Price
			v.AwayBookmaker = q.Title
		}
	}
	return v
}

// OddsFor converts a best-price view into the form forwarded to prediction,
// marking missing slots as unavailable.
func OddsFor(v domain.BestPriceView) domain.OddsData {
	return domain.OddsData{
		Home: domain.PriceOf(v.HomePrice),
		Away: domain.PriceOf(v.AwayPrice),
	}
}
