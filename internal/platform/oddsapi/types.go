package oddsapi

import (
	"time"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// APISport is one entry of GET /v4/sports.
type APISport struct {
	Key          string `json:"key" validate:"required"`
	Group        string `json:"group"`
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description"`
	Active       bool   `json:"active"`
	HasOutrights bool   `json:"has_outrights"`
}

// APIEvent is one entry of GET /v4/sports/{sport}/odds.
type APIEvent struct {
	ID           string         `json:"id" validate:"required"`
	SportKey     string         `json:"sport_key" validate:"required"`
	SportTitle   string         `json:"sport_title"`
	CommenceTime time.Time      `json:"commence_time"`
	HomeTeam     string         `json:"home_team" validate:"required"`
	AwayTeam     string         `json:"away_team" validate:"required,nefield=HomeTeam"`
	Bookmakers   []APIBookmaker `json:"bookmakers"`
}

// APIBookmaker is a bookmaker's quote for an event.
type APIBookmaker struct {
	Key        string      `json:"key" validate:"required"`
	Title      string      `json:"title" validate:"required"`
	LastUpdate time.Time   `json:"last_update"`
	Markets    []APIMarket `json:"markets"`
}

// APIMarket is one market of a bookmaker quote.
type APIMarket struct {
	Key        string       `json:"key" validate:"required"`
	LastUpdate time.Time    `json:"last_update"`
	Outcomes   []APIOutcome `json:"outcomes" validate:"required,min=1,dive"`
}

// APIOutcome is a priced outcome. Prices are requested in decimal format.
type APIOutcome struct {
	Name  string   `json:"name" validate:"required"`
	Price float64  `json:"price" validate:"gte=1"`
	Point *float64 `json:"point,omitempty"`
}

// ToDomainSport converts the API sport into a domain.Sport.
func (s APISport) ToDomainSport() domain.Sport {
	return domain.Sport{Key: s.Key, Group: s.Group, Title: s.Title, Active: s.Active}
}

func (m APIMarket) toDomain() domain.Market {
	out := domain.Market{Key: m.Key, Outcomes: make([]domain.Outcome, 0, len(m.Outcomes))}
	for _, o := range m.Outcomes {
		out.Outcomes = append(out.Outcomes, domain.Outcome{Name: o.Name, Price: o.Price})
	}
	return out
}
