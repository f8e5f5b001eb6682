package session

import "strings"

// Actions understood by the machine.
const (
	ActionStart     = "start"
	ActionHome      = "home"
	ActionSports    = "sports"
	ActionArbitrage = "arbitrage"
	ActionSport     = "sport"
	ActionEvent     = "event"
	ActionAnalyze   = "analyze"
	ActionHistory   = "history"
)

// History discriminators.
const (
	SideHome = "home"
	SideAway = "away"
)

// Callback identifiers carried by chat buttons.
const (
	callbackStart    = "/start"
	callbackAnalyze  = "run_ai_analysis"
	prefixSport      = "sport_"
	prefixEvent      = "event_"
	prefixGetHistory = "get_history_"
)

// Action is one next step offered to the user.
type Action struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// ParseCallback maps a button callback identifier to an action and its
// payload. Only the known prefix is trimmed, so sport keys containing
// underscores survive. Unrecognized data is returned as the action itself.
func ParseCallback(data string) (action, payload string) {
	data = strings.TrimSpace(data)
	switch data {
	case callbackStart, ActionStart:
		return ActionStart, ""
	case ActionHome, ActionSports, ActionArbitrage:
		return data, ""
	case callbackAnalyze:
		return ActionAnalyze, ""
	}
	switch {
	case strings.HasPrefix(data, prefixGetHistory):
		return ActionHistory, strings.TrimPrefix(data, prefixGetHistory)
	case strings.HasPrefix(data, prefixSport):
		return ActionSport, strings.TrimPrefix(data, prefixSport)
	case strings.HasPrefix(data, prefixEvent):
		return ActionEvent, strings.TrimPrefix(data, prefixEvent)
	}
	return data, ""
}

func sportCallback(key string) string { return prefixSport + key }
func eventCallback(id string) string { return prefixEvent + id }
func historyCallback(side string) string { return prefixGetHistory + side }

func mainMenu() []Action {
	return []Action{
		{Label: "⚽ Sports", Data: ActionSports},
		{Label: "📊 Arbitrage", Data: ActionArbitrage},
		{Label: "🏠 Home", Data: ActionHome},
	}
}

func backToEvents(sportKey string) Action {
	return Action{Label: "« Back to Events", Data: sportCallback(sportKey)}
}
