package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsbot/internal/arbitrage"
	"github.com/alanyoungcy/oddsbot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCatalog struct {
	sports    []domain.Sport
	sportsErr error
	events    map[string][]domain.Event
	eventsErr error
}

func (f *fakeCatalog) Sports(context.Context) ([]domain.Sport, error) {
	return f.sports, f.sportsErr
}

func (f *fakeCatalog) Events(_ context.Context, sportKey string) ([]domain.Event, error) {
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}
	return f.events[sportKey], nil
}

func (f *fakeCatalog) Event(ctx context.Context, sportKey, eventID string) (domain.Event, error) {
	events, err := f.Events(ctx, sportKey)
	if err != nil {
		return domain.Event{}, err
	}
	ev, ok := domain.FindEvent(events, eventID)
	if !ok {
		return domain.Event{}, fmt.Errorf("catalog: %w", domain.ErrNotFound)
	}
	return ev, nil
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	analyzed []string
	teams    []string
	gate     chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeAnalyzer) Analyze(_ context.Context, ev domain.Event) domain.AnalysisResult {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxSeen.Load()
		if n <= cur || f.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.analyzed = append(f.analyzed, ev.ID)
	f.mu.Unlock()
	return domain.AnalysisResult{Match: ev.Matchup(), Prediction: ev.HomeTeam + " to win."}
}

func (f *fakeAnalyzer) History(_ context.Context, team string) domain.HistoryResult {
	f.teams = append(f.teams, team)
	return domain.HistoryResult{Team: team, Summary: team + " history.", Status: domain.HistoryFound}
}

func nbaEvents(n int) []domain.Event {
	out := make([]domain.Event, n)
	for i := range out {
		out[i] = domain.Event{
			ID:       fmt.Sprintf("ev%d", i),
			SportKey: "basketball_nba",
			HomeTeam: fmt.Sprintf("Home%d", i),
			AwayTeam: fmt.Sprintf("Away%d", i),
		}
	}
	return out
}

func newTestMachine(cat *fakeCatalog, an *fakeAnalyzer, scan ScanFunc) *Machine {
	return NewMachine(Config{Catalog: cat, Analyzer: an, Scan: scan, Logger: discardLogger()})
}

func defaultCatalog() *fakeCatalog {
	sports := make([]domain.Sport, 12)
	for i := range sports {
		sports[i] = domain.Sport{Key: fmt.Sprintf("sport_%d", i), Title: fmt.Sprintf("Sport %d", i)}
	}
	sports[0] = domain.Sport{Key: "basketball_nba", Title: "NBA"}
	return &fakeCatalog{
		sports: sports,
		events: map[string][]domain.Event{"basketball_nba": nbaEvents(7)},
	}
}

func datas(actions []Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.Data
	}
	return out
}

func TestHandleTurn_AnalyzeFromHomeIsInconsistent(t *testing.T) {
	an := &fakeAnalyzer{}
	m := newTestMachine(defaultCatalog(), an, nil)

	resp := m.HandleTurn(context.Background(), "u1", ActionAnalyze, "")

	assert.Equal(t, TextNoEvent, resp.Text)
	assert.Equal(t, domain.StateHome, resp.State)
	assert.Equal(t, mainMenu(), resp.Actions)
	assert.Empty(t, an.analyzed)
}

func TestHandleTurn_HistoryFromHomeIsInconsistent(t *testing.T) {
	m := newTestMachine(defaultCatalog(), &fakeAnalyzer{}, nil)

	resp := m.HandleTurn(context.Background(), "u1", ActionHistory, SideHome)
	assert.Equal(t, TextNoEvent, resp.Text)
	assert.Equal(t, domain.StateHome, resp.State)
}

func TestHandleTurn_FullFlow(t *testing.T) {
	an := &fakeAnalyzer{}
	m := newTestMachine(defaultCatalog(), an, nil)
	ctx := context.Background()

	resp := m.HandleTurn(ctx, "u1", ActionStart, "")
	assert.Equal(t, TextWelcome, resp.Text)
	assert.Equal(t, domain.StateHome, resp.State)

	resp = m.HandleTurn(ctx, "u1", ActionSports, "")
	assert.Equal(t, TextSelectSport, resp.Text)
	assert.Equal(t, domain.StateSportsList, resp.State)
	require.Len(t, resp.Actions, MaxSports+1)
	assert.Equal(t, "sport_basketball_nba", resp.Actions[0].Data)
	assert.Equal(t, ActionHome, resp.Actions[MaxSports].Data)

	resp = m.HandleTurn(ctx, "u1", ActionSport, "basketball_nba")
	assert.Equal(t, TextSelectMatch, resp.Text)
	assert.Equal(t, domain.StateEventsList, resp.State)
	assert.Equal(t, "Fetching upcoming events for basketball_nba...", resp.Progress)
	require.Len(t, resp.Actions, MaxEvents+1)
	assert.Equal(t, Action{Label: "Home0 vs Away0", Data: "event_ev0"}, resp.Actions[0])
	assert.Equal(t, ActionSports, resp.Actions[MaxEvents].Data)

	resp = m.HandleTurn(ctx, "u1", ActionEvent, "ev2")
	assert.Equal(t, "You selected: Home2 vs Away2", resp.Text)
	assert.Equal(t, domain.StateEventSelected, resp.State)
	assert.Equal(t, []string{"run_ai_analysis", "get_history_home", "get_history_away", "sport_basketball_nba"}, datas(resp.Actions))

	resp = m.HandleTurn(ctx, "u1", ActionAnalyze, "")
	assert.Equal(t, domain.StateAnalysisRunning, resp.State)
	assert.True(t, strings.HasPrefix(resp.Text, "Home2 to win."))
	assert.Equal(t, "🤖 Running AI analysis for Home2 vs Away2...", resp.Progress)
	assert.Equal(t, []string{"sport_basketball_nba"}, datas(resp.Actions))
	assert.Equal(t, []string{"ev2"}, an.analyzed)

	resp = m.HandleTurn(ctx, "u1", ActionHistory, SideAway)
	assert.Equal(t, domain.StateHistoryRequested, resp.State)
	assert.Equal(t, "Away2 history.", resp.Text)
	assert.Equal(t, []string{"Away2"}, an.teams)

	// Back to events clears the selected event.
	resp = m.HandleTurn(ctx, "u1", ActionSport, "basketball_nba")
	assert.Equal(t, domain.StateEventsList, resp.State)
	snap, ok := m.Store().Snapshot("u1")
	require.True(t, ok)
	assert.Nil(t, snap.SelectedEvent)
	assert.Equal(t, "basketball_nba", snap.SelectedSport)

	resp = m.HandleTurn(ctx, "u1", ActionHome, "")
	assert.Equal(t, TextWelcomeBack, resp.Text)
	snap, _ = m.Store().Snapshot("u1")
	assert.Equal(t, domain.StateHome, snap.State)
	assert.Empty(t, snap.SelectedSport)
	assert.Nil(t, snap.SelectedEvent)
}

func TestHandleTurn_Failures(t *testing.T) {
	tests := []struct {
		name      string
		catalog   func() *fakeCatalog
		turns     [][2]string
		wantText  string
		wantState domain.SessionState
	}{
		{
			name: "sports unavailable",
			catalog: func() *fakeCatalog {
				return &fakeCatalog{sportsErr: fmt.Errorf("odds: %w", domain.ErrTransport)}
			},
			turns:     [][2]string{{ActionSports, ""}},
			wantText:  TextSportsFailed,
			wantState: domain.StateHome,
		},
		{
			name:      "sport from home",
			catalog:   defaultCatalog,
			turns:     [][2]string{{ActionSport, "basketball_nba"}},
			wantText:  TextSportLost,
			wantState: domain.StateHome,
		},
		{
			name:      "event without sport",
			catalog:   defaultCatalog,
			turns:     [][2]string{{ActionEvent, "ev1"}},
			wantText:  TextSportLost,
			wantState: domain.StateHome,
		},
		{
			name:      "event no longer listed",
			catalog:   defaultCatalog,
			turns:     [][2]string{{ActionSports, ""}, {ActionSport, "basketball_nba"}, {ActionEvent, "gone"}},
			wantText:  TextEventNotFound,
			wantState: domain.StateHome,
		},
		{
			name:      "no events for sport",
			catalog:   defaultCatalog,
			turns:     [][2]string{{ActionSports, ""}, {ActionSport, "sport_3"}},
			wantText:  "No upcoming events found for sport_3.",
			wantState: domain.StateHome,
		},
		{
			name: "events fetch fails",
			catalog: func() *fakeCatalog {
				c := defaultCatalog()
				c.eventsErr = errors.New("unexpected")
				return c
			},
			turns:     [][2]string{{ActionSports, ""}, {ActionSport, "basketball_nba"}},
			wantText:  "No upcoming events found for basketball_nba.",
			wantState: domain.StateHome,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMachine(tt.catalog(), &fakeAnalyzer{}, nil)
			var resp Response
			for _, turn := range tt.turns {
				resp = m.HandleTurn(context.Background(), "u1", turn[0], turn[1])
			}
			assert.Equal(t, tt.wantText, resp.Text)
			assert.Equal(t, tt.wantState, resp.State)
			assert.Equal(t, mainMenu(), resp.Actions)

			snap, ok := m.Store().Snapshot("u1")
			require.True(t, ok)
			assert.Empty(t, snap.SelectedSport, "home carries no sport")
			assert.Nil(t, snap.SelectedEvent)
		})
	}
}

func TestHandleTurn_UnknownLeavesState(t *testing.T) {
	m := newTestMachine(defaultCatalog(), &fakeAnalyzer{}, nil)
	ctx := context.Background()

	m.HandleTurn(ctx, "u1", ActionSports, "")
	resp := m.HandleTurn(ctx, "u1", "/help", "")
	assert.Equal(t, TextUnknown, resp.Text)
	assert.Equal(t, domain.StateSportsList, resp.State)
	assert.Empty(t, resp.Actions)
}

func TestHandleTurn_Arbitrage(t *testing.T) {
	opps := []domain.ArbOpportunity{{
		Match:               "A vs B",
		SportTitle:          "NBA",
		ProfitMarginPercent: 3.26,
		Legs: []domain.StakeLeg{
			{OutcomeName: "A", Price: 2.2, Bookmaker: "X", StakeFraction: 0.4699},
			{OutcomeName: "B", Price: 1.95, Bookmaker: "Y", StakeFraction: 0.5301},
		},
	}}

	tests := []struct {
		name string
		scan ScanFunc
		want string
	}{
		{
			name: "found",
			scan: func(context.Context) ([]domain.ArbOpportunity, error) { return opps, nil },
			want: arbitrage.FormatReport(opps),
		},
		{
			name: "none",
			scan: func(context.Context) ([]domain.ArbOpportunity, error) { return []domain.ArbOpportunity{}, nil },
			want: arbitrage.NoOpportunitiesText,
		},
		{
			name: "cancelled",
			scan: func(context.Context) ([]domain.ArbOpportunity, error) { return nil, context.Canceled },
			want: TextScanFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMachine(defaultCatalog(), &fakeAnalyzer{}, tt.scan)
			ctx := context.Background()
			m.HandleTurn(ctx, "u1", ActionSports, "")

			resp := m.HandleTurn(ctx, "u1", ActionArbitrage, "")
			assert.Equal(t, tt.want, resp.Text)
			assert.Equal(t, domain.StateHome, resp.State)
			assert.Equal(t, mainMenu(), resp.Actions)
		})
	}
}

func TestHandleTurn_Progress(t *testing.T) {
	m := newTestMachine(defaultCatalog(), &fakeAnalyzer{}, nil)
	var notes []string
	ctx := WithProgress(context.Background(), func(text string) { notes = append(notes, text) })

	m.HandleTurn(ctx, "u1", ActionSports, "")
	m.HandleTurn(ctx, "u1", ActionSport, "basketball_nba")

	assert.Equal(t, []string{TextFetchingSports, "Fetching upcoming events for basketball_nba..."}, notes)
}

func selectEvent(t *testing.T, m *Machine, sessionID string) {
	t.Helper()
	ctx := context.Background()
	m.HandleTurn(ctx, sessionID, ActionSports, "")
	m.HandleTurn(ctx, sessionID, ActionSport, "basketball_nba")
	resp := m.HandleTurn(ctx, sessionID, ActionEvent, "ev0")
	require.Equal(t, domain.StateEventSelected, resp.State)
}

func TestHandleTurn_SerializedPerSession(t *testing.T) {
	an := &fakeAnalyzer{gate: make(chan struct{})}
	m := newTestMachine(defaultCatalog(), an, nil)
	selectEvent(t, m, "u1")

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.HandleTurn(context.Background(), "u1", ActionAnalyze, "")
		}()
	}
	for i := 0; i < 3; i++ {
		an.gate <- struct{}{}
	}
	wg.Wait()

	assert.Equal(t, int32(1), an.maxSeen.Load())
	assert.Len(t, an.analyzed, 3)
}

func TestHandleTurn_ParallelAcrossSessions(t *testing.T) {
	an := &fakeAnalyzer{gate: make(chan struct{})}
	m := newTestMachine(defaultCatalog(), an, nil)
	selectEvent(t, m, "u1")
	selectEvent(t, m, "u2")

	var wg sync.WaitGroup
	for _, id := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.HandleTurn(context.Background(), id, ActionAnalyze, "")
		}(id)
	}
	require.Eventually(t, func() bool { return an.inFlight.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(an.gate)
	wg.Wait()
	assert.Equal(t, int32(2), an.maxSeen.Load())
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data        string
		wantAction  string
		wantPayload string
	}{
		{"/start", ActionStart, ""},
		{"home", ActionHome, ""},
		{"sports", ActionSports, ""},
		{"arbitrage", ActionArbitrage, ""},
		{"sport_basketball_nba", ActionSport, "basketball_nba"},
		{"event_e912304de2b2ede8d9d3b0d3e0a1f2c3", ActionEvent, "e912304de2b2ede8d9d3b0d3e0a1f2c3"},
		{"run_ai_analysis", ActionAnalyze, ""},
		{"get_history_home", ActionHistory, SideHome},
		{"get_history_away", ActionHistory, SideAway},
		{"/help", "/help", ""},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			action, payload := ParseCallback(tt.data)
			assert.Equal(t, tt.wantAction, action)
			assert.Equal(t, tt.wantPayload, payload)
		})
	}
}

func TestStore_Prune(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.acquire("old").mu.Unlock()
	now = now.Add(2 * time.Hour)
	s.acquire("new").mu.Unlock()

	busy := s.acquire("busy")
	busy.ctx.UpdatedAt = now.Add(-3 * time.Hour)

	assert.Equal(t, 1, s.Prune(time.Hour))
	busy.mu.Unlock()

	_, ok := s.Snapshot("old")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestStore_AcquireRetriesPrunedEntry(t *testing.T) {
	s := NewStore()
	stale := s.acquire("u1")

	got := make(chan *entry, 1)
	go func() { got <- s.acquire("u1") }()

	// The waiter holds a reference to stale; drop it from the store the
	// way Prune would before the waiter gets the lock.
	time.Sleep(20 * time.Millisecond)
	s.mu.Lock()
	delete(s.entries, "u1")
	s.mu.Unlock()
	stale.mu.Unlock()

	var e *entry
	select {
	case e = <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("acquire did not return")
	}
	defer e.mu.Unlock()

	assert.NotSame(t, stale, e)
	s.mu.Lock()
	assert.Same(t, e, s.entries["u1"])
	s.mu.Unlock()
}
