package arbitrage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// Detector turns events into arbitrage opportunities. It holds no state
// besides its clock and id source and is safe for concurrent use.
type Detector struct {
	now   func() time.Time
	newID func() string
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithDetectorClock overrides the timestamp source.
func WithDetectorClock(now func() time.Time) DetectorOption {
	return func(d *Detector) { d.now = now }
}

// WithIDSource overrides opportunity id generation.
func WithIDSource(newID func() string) DetectorOption {
	return func(d *Detector) { d.newID = newID }
}

// NewDetector creates a Detector.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns one opportunity per event whose best prices imply a combined
// probability strictly below 1, in input order. It never returns nil.
func (d *Detector) Detect(events []domain.Event) []domain.ArbOpportunity {
	opps := make([]domain.ArbOpportunity, 0)
	for _, ev := range events {
		if opp, ok := d.Evaluate(ev); ok {
			opps = append(opps, opp)
		}
	}
	return opps
}

// Evaluate checks a single event.
func (d *Detector) Evaluate(ev domain.Event) (domain.ArbOpportunity, bool) {
	best := BestPrices(ev)
	if !best.Complete() {
		return domain.ArbOpportunity{}, false
	}

	combined := 1/best.HomePrice + 1/best.AwayPrice
	if combined >= 1.0 {
		return domain.ArbOpportunity{}, false
	}

	return domain.ArbOpportunity{
		ID:                         d.newID(),
		EventID:                    ev.ID,
		SportKey:                   ev.SportKey,
		SportTitle:                 ev.SportTitle,
		Match:                      ev.Matchup(),
		CombinedImpliedProbability: combined,
		ProfitMarginPercent:        ProfitMargin(combined),
		Legs: []domain.StakeLeg{
			leg(ev.HomeTeam, best.HomePrice, best.HomeBookmaker, combined),
			leg(ev.AwayTeam, best.AwayPrice, best.AwayBookmaker, combined),
		},
		DetectedAt: d.now().UTC(),
	}, true
}

// ProfitMargin returns (1 - combined) * 100 rounded half away from zero to
// two decimal places.
func ProfitMargin(combined float64) float64 {
	return decimal.NewFromInt(1).
		Sub(decimal.NewFromFloat(combined)).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}

// leg sizes the stake so that every leg pays out the same amount.
func leg(name string, price float64, bookmaker string, combined float64) domain.StakeLeg {
	fraction := decimal.NewFromFloat(1 / price).
		Div(decimal.NewFromFloat(combined)).
		Round(4).
		InexactFloat64()
	return domain.StakeLeg{
		OutcomeName:   name,
		Price:         price,
		Bookmaker:     bookmaker,
		StakeFraction: fraction,
	}
}
