package domain

import "time"

// SessionState is the navigation state of one user's conversation.
type SessionState string

const (
	StateHome             SessionState = "home"
	StateSportsList       SessionState = "sports_list"
	StateEventsList       SessionState = "events_list"
	StateEventSelected    SessionState = "event_selected"
	StateAnalysisRunning  SessionState = "analysis_running"
	StateHistoryRequested SessionState = "history_requested"
)

// SessionContext is the per-user context carried between stateless turns.
// SelectedEvent is required in event_selected, analysis_running and
// history_requested.
type SessionContext struct {
	State         SessionState
	SelectedSport string
	SelectedEvent *Event
	UpdatedAt     time.Time
}

// Reset returns the context to Home and clears every selection.
func (c *SessionContext) Reset() {
	c.State = StateHome
	c.SelectedSport = ""
	c.SelectedEvent = nil
}
