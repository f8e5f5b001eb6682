// Package session drives one user's navigation from the sports catalog down
// to a single match and its enrichment, one stateless turn at a time.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/oddsbot/internal/analysis"
	"github.com/alanyoungcy/oddsbot/internal/arbitrage"
	"github.com/alanyoungcy/oddsbot/internal/domain"
	"github.com/alanyoungcy/oddsbot/internal/metrics"
)

// List sizes shown per turn.
const (
	MaxSports = 10
	MaxEvents = 5
)

// User-visible texts.
const (
	TextWelcome        = "Welcome to the Sports Betting Bot! Please choose an option:"
	TextWelcomeBack    = "Welcome back! Please choose an option:"
	TextSelectSport    = "Please select a sport:"
	TextSelectMatch    = "Please select a match:"
	TextSportsFailed   = "Could not fetch sports list. Please try again later."
	TextSportLost      = "Error: Sport context lost. Please start over."
	TextEventNotFound  = "Error: Could not find event details. Please try again."
	TextNoEvent        = "Error: No event selected. Please start over."
	TextScanFailed     = "Could not complete the arbitrage scan. Please try again later."
	TextUnknown        = "Sorry, I didn't understand that command."
	TextFetchingSports = "Fetching sports list..."
	TextScanning       = "Analyzing odds for arbitrage opportunities across popular sports..."
)

// Catalog serves sports and their current events.
type Catalog interface {
	Sports(ctx context.Context) ([]domain.Sport, error)
	Events(ctx context.Context, sportKey string) ([]domain.Event, error)
	Event(ctx context.Context, sportKey, eventID string) (domain.Event, error)
}

// Analyzer runs match enrichment.
type Analyzer interface {
	Analyze(ctx context.Context, ev domain.Event) domain.AnalysisResult
	History(ctx context.Context, team string) domain.HistoryResult
}

// ScanFunc runs one arbitrage sweep across the popular sports.
type ScanFunc func(ctx context.Context) ([]domain.ArbOpportunity, error)

// Response is the outcome of one turn.
type Response struct {
	Text     string              `json:"display_text"`
	Actions  []Action            `json:"next_available_actions"`
	State    domain.SessionState `json:"state"`
	Progress string              `json:"progress,omitempty"`
}

// Config wires a Machine.
type Config struct {
	Store    *Store
	Catalog  Catalog
	Analyzer Analyzer
	Scan     ScanFunc
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// Machine applies user actions to per-session contexts.
type Machine struct {
	store    *Store
	catalog  Catalog
	analyzer Analyzer
	scan     ScanFunc
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewMachine creates a Machine.
func NewMachine(cfg Config) *Machine {
	m := &Machine{
		store:    cfg.Store,
		catalog:  cfg.Catalog,
		analyzer: cfg.Analyzer,
		scan:     cfg.Scan,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if m.store == nil {
		m.store = NewStore()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With(slog.String("component", "session"))
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Store returns the session store.
func (m *Machine) Store() *Store { return m.store }

// HandleTurn applies one action to the session. Turns on the same session
// are processed one at a time. Every turn produces display text.
func (m *Machine) HandleTurn(ctx context.Context, sessionID, action, payload string) Response {
	start := time.Now()
	e := m.store.acquire(sessionID)
	defer e.mu.Unlock()

	sc := &e.ctx
	from := sc.State
	resp := m.dispatch(ctx, sc, action, payload)
	sc.UpdatedAt = m.now()
	resp.State = sc.State

	m.metrics.ObserveTurn(metricAction(action), string(resp.State), time.Since(start))
	m.metrics.SetActiveSessions(m.store.Len())
	m.logger.DebugContext(ctx, "session: turn handled",
		slog.String("session_id", sessionID),
		slog.String("action", action),
		slog.String("from", string(from)),
		slog.String("to", string(resp.State)),
		slog.Duration("took", time.Since(start)),
	)
	return resp
}

func (m *Machine) dispatch(ctx context.Context, sc *domain.SessionContext, action, payload string) Response {
	switch action {
	case ActionStart:
		sc.Reset()
		return Response{Text: TextWelcome, Actions: mainMenu()}
	case ActionHome:
		sc.Reset()
		return Response{Text: TextWelcomeBack, Actions: mainMenu()}
	case ActionSports:
		return m.sports(ctx, sc)
	case ActionArbitrage:
		return m.arbitrage(ctx, sc)
	case ActionSport:
		return m.selectSport(ctx, sc, payload)
	case ActionEvent:
		return m.selectEvent(ctx, sc, payload)
	case ActionAnalyze:
		return m.analyze(ctx, sc)
	case ActionHistory:
		return m.history(ctx, sc, payload)
	default:
		return Response{Text: TextUnknown}
	}
}

func (m *Machine) sports(ctx context.Context, sc *domain.SessionContext) Response {
	progress(ctx, TextFetchingSports)
	sports, err := m.catalog.Sports(ctx)
	if err != nil {
		m.logFallback(ctx, "session: sports list unavailable", err)
		sc.Reset()
		return Response{Text: TextSportsFailed, Actions: mainMenu(), Progress: TextFetchingSports}
	}

	if len(sports) > MaxSports {
		sports = sports[:MaxSports]
	}
	actions := make([]Action, 0, len(sports)+1)
	for _, s := range sports {
		actions = append(actions, Action{Label: s.Title, Data: sportCallback(s.Key)})
	}
	actions = append(actions, Action{Label: "« Back to Home", Data: ActionHome})

	sc.State = domain.StateSportsList
	sc.SelectedSport = ""
	sc.SelectedEvent = nil
	return Response{Text: TextSelectSport, Actions: actions, Progress: TextFetchingSports}
}

func (m *Machine) arbitrage(ctx context.Context, sc *domain.SessionContext) Response {
	progress(ctx, TextScanning)
	sc.Reset()
	if m.scan == nil {
		return Response{Text: TextScanFailed, Actions: mainMenu(), Progress: TextScanning}
	}
	opps, err := m.scan(ctx)
	if err != nil {
		m.logFallback(ctx, "session: arbitrage scan aborted", err)
		return Response{Text: TextScanFailed, Actions: mainMenu(), Progress: TextScanning}
	}
	return Response{Text: arbitrage.FormatReport(opps), Actions: mainMenu(), Progress: TextScanning}
}

// selectSport is valid from any state but Home, so "Back to Events" works
// from every screen below the sports list.
func (m *Machine) selectSport(ctx context.Context, sc *domain.SessionContext, sportKey string) Response {
	if sportKey == "" || sc.State == domain.StateHome {
		return m.inconsistent(ctx, sc, TextSportLost, "sport selected outside the sports flow")
	}

	sc.SelectedSport = sportKey
	sc.SelectedEvent = nil
	note := fmt.Sprintf("Fetching upcoming events for %s...", sportKey)
	progress(ctx, note)

	events, err := m.catalog.Events(ctx, sportKey)
	if err != nil {
		m.logFallback(ctx, "session: events unavailable", err, slog.String("sport", sportKey))
	}
	if len(events) == 0 {
		sc.Reset()
		return Response{
			Text:     fmt.Sprintf("No upcoming events found for %s.", sportKey),
			Actions:  mainMenu(),
			Progress: note,
		}
	}

	if len(events) > MaxEvents {
		events = events[:MaxEvents]
	}
	actions := make([]Action, 0, len(events)+1)
	for _, ev := range events {
		actions = append(actions, Action{Label: ev.Matchup(), Data: eventCallback(ev.ID)})
	}
	actions = append(actions, Action{Label: "« Back to Sports", Data: ActionSports})

	sc.State = domain.StateEventsList
	return Response{Text: TextSelectMatch, Actions: actions, Progress: note}
}

func (m *Machine) selectEvent(ctx context.Context, sc *domain.SessionContext, eventID string) Response {
	if sc.SelectedSport == "" || !belowEvents(sc.State) {
		return m.inconsistent(ctx, sc, TextSportLost, "event selected without a sport")
	}

	ev, err := m.catalog.Event(ctx, sc.SelectedSport, eventID)
	if err != nil {
		m.logFallback(ctx, "session: event lookup failed", err,
			slog.String("sport", sc.SelectedSport),
			slog.String("event_id", eventID),
		)
		sc.Reset()
		return Response{Text: TextEventNotFound, Actions: mainMenu()}
	}

	sc.SelectedEvent = &ev
	sc.State = domain.StateEventSelected
	return Response{
		Text:    "You selected: " + ev.Matchup(),
		Actions: eventMenu(sc.SelectedSport, ev),
	}
}

func (m *Machine) analyze(ctx context.Context, sc *domain.SessionContext) Response {
	if sc.SelectedEvent == nil || !eventScoped(sc.State) {
		return m.inconsistent(ctx, sc, TextNoEvent, "analysis requested without an event")
	}

	ev := *sc.SelectedEvent
	note := fmt.Sprintf("🤖 Running AI analysis for %s...", ev.Matchup())
	progress(ctx, note)
	sc.State = domain.StateAnalysisRunning

	res := m.analyzer.Analyze(ctx, ev)
	return Response{
		Text:     analysis.Format(res),
		Actions:  []Action{backToEvents(sc.SelectedSport)},
		Progress: note,
	}
}

func (m *Machine) history(ctx context.Context, sc *domain.SessionContext, side string) Response {
	if sc.SelectedEvent == nil || !eventScoped(sc.State) {
		return m.inconsistent(ctx, sc, TextNoEvent, "history requested without an event")
	}

	var team string
	switch side {
	case SideHome:
		team = sc.SelectedEvent.HomeTeam
	case SideAway:
		team = sc.SelectedEvent.AwayTeam
	default:
		return Response{Text: TextUnknown}
	}

	note := fmt.Sprintf("📜 Fetching history for %s...", team)
	progress(ctx, note)
	sc.State = domain.StateHistoryRequested

	res := m.analyzer.History(ctx, team)
	return Response{
		Text:     res.Text(),
		Actions:  []Action{backToEvents(sc.SelectedSport)},
		Progress: note,
	}
}

// inconsistent resets the session to Home with a recoverable message.
func (m *Machine) inconsistent(ctx context.Context, sc *domain.SessionContext, text, reason string) Response {
	m.logger.InfoContext(ctx, "session: state inconsistency",
		slog.String("state", string(sc.State)),
		slog.String("reason", reason),
		slog.String("error", domain.ErrStateInconsistency.Error()),
	)
	sc.Reset()
	return Response{Text: text, Actions: mainMenu()}
}

func (m *Machine) logFallback(ctx context.Context, msg string, err error, attrs ...any) {
	level := slog.LevelWarn
	if !expected(err) {
		level = slog.LevelError
	}
	m.logger.Log(ctx, level, msg, append(attrs,
		slog.String("error", err.Error()),
		slog.String("outcome", metrics.Classify(err)),
	)...)
}

func eventMenu(sportKey string, ev domain.Event) []Action {
	return []Action{
		{Label: "🤖 Run AI Analysis", Data: callbackAnalyze},
		{Label: "📜 Get History: " + ev.HomeTeam, Data: historyCallback(SideHome)},
		{Label: "📜 Get History: " + ev.AwayTeam, Data: historyCallback(SideAway)},
		backToEvents(sportKey),
	}
}

// metricAction bounds the turn metric's label set.
func metricAction(action string) string {
	switch action {
	case ActionStart, ActionHome, ActionSports, ActionArbitrage,
		ActionSport, ActionEvent, ActionAnalyze, ActionHistory:
		return action
	}
	return "unknown"
}

// belowEvents reports whether an event may be picked from state s.
func belowEvents(s domain.SessionState) bool {
	return s == domain.StateEventsList || eventScoped(s)
}

// eventScoped reports whether s requires a selected event.
func eventScoped(s domain.SessionState) bool {
	switch s {
	case domain.StateEventSelected, domain.StateAnalysisRunning, domain.StateHistoryRequested:
		return true
	}
	return false
}
