package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsbot/internal/cache"
	"github.com/alanyoungcy/oddsbot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOdds struct {
	mu          sync.Mutex
	sports      []domain.Sport
	sportsErr   error
	sportsCalls int
	events      map[string][]domain.Event
	eventsErr   error
	delay       time.Duration
}

func (f *fakeOdds) FetchSports(ctx context.Context) ([]domain.Sport, error) {
	f.mu.Lock()
	f.sportsCalls++
	f.mu.Unlock()
	return f.sports, f.sportsErr
}

func (f *fakeOdds) FetchOdds(ctx context.Context, sportKey string) ([]domain.Event, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}
	return f.events[sportKey], nil
}

func TestOddsService_SportsCached(t *testing.T) {
	odds := &fakeOdds{sports: []domain.Sport{{Key: "soccer_epl", Title: "EPL"}}}
	svc := NewOddsService(odds, cache.New[[]domain.Sport](time.Hour), time.Second, nil, discardLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := svc.Sports(ctx)
		require.NoError(t, err)
		assert.Equal(t, odds.sports, got)
	}
	assert.Equal(t, 1, odds.sportsCalls)
}

func TestOddsService_SportsFailureNotCached(t *testing.T) {
	odds := &fakeOdds{sportsErr: fmt.Errorf("oddsapi: %w", domain.ErrTransport)}
	svc := NewOddsService(odds, cache.New[[]domain.Sport](time.Hour), time.Second, nil, discardLogger())
	ctx := context.Background()

	_, err := svc.Sports(ctx)
	assert.ErrorIs(t, err, domain.ErrTransport)

	odds.sportsErr = nil
	_, err = svc.Sports(ctx)
	assert.ErrorIs(t, err, domain.ErrDataAbsent, "empty catalog")

	odds.sports = []domain.Sport{{Key: "basketball_nba"}}
	got, err := svc.Sports(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 3, odds.sportsCalls)
}

func TestOddsService_EventsTimeout(t *testing.T) {
	odds := &fakeOdds{delay: time.Second}
	svc := NewOddsService(odds, cache.New[[]domain.Sport](time.Hour), 20*time.Millisecond, nil, discardLogger())

	_, err := svc.Events(context.Background(), "soccer_epl")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, Expected(err))
}

func TestOddsService_Event(t *testing.T) {
	odds := &fakeOdds{events: map[string][]domain.Event{
		"soccer_epl": {{ID: "a", HomeTeam: "Arsenal", AwayTeam: "Chelsea"}},
	}}
	svc := NewOddsService(odds, cache.New[[]domain.Sport](time.Hour), time.Second, nil, discardLogger())
	ctx := context.Background()

	ev, err := svc.Event(ctx, "soccer_epl", "a")
	require.NoError(t, err)
	assert.Equal(t, "Arsenal", ev.HomeTeam)

	_, err = svc.Event(ctx, "soccer_epl", "gone")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExpected(t *testing.T) {
	assert.True(t, Expected(fmt.Errorf("x: %w", domain.ErrDataAbsent)))
	assert.True(t, Expected(context.DeadlineExceeded))
	assert.False(t, Expected(errors.New("nil map write")))
}

type memArbStore struct {
	mu   sync.Mutex
	opps []domain.ArbOpportunity
	err  error
}

func (m *memArbStore) Insert(_ context.Context, o domain.ArbOpportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.opps = append(m.opps, o)
	return nil
}

func (m *memArbStore) ListRecent(_ context.Context, limit int) ([]domain.ArbOpportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.ArbOpportunity{}
	for i := len(m.opps) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.opps[i])
	}
	return out, nil
}

func (m *memArbStore) ListBySport(context.Context, string, domain.ListOpts) ([]domain.ArbOpportunity, error) {
	return nil, nil
}

type recAlerter struct {
	titles   []string
	messages []string
}

func (r *recAlerter) Notify(_ context.Context, _, title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return nil
}

type recBroadcaster struct {
	payloads [][]byte
}

func (r *recBroadcaster) Broadcast(_ string, p []byte) { r.payloads = append(r.payloads, p) }

func opp(id, eventID string, profit float64) domain.ArbOpportunity {
	return domain.ArbOpportunity{ID: id, EventID: eventID, Match: "A vs B", SportKey: "soccer_epl", ProfitMarginPercent: profit}
}

func TestArbService_RecordAndRecentFromStore(t *testing.T) {
	store := &memArbStore{}
	svc := NewArbService(ArbServiceConfig{Store: store, Logger: discardLogger()})
	ctx := context.Background()

	svc.Record(ctx, time.Now(), []domain.ArbOpportunity{opp("1", "e1", 1.5), opp("2", "e2", 2.5)})

	recent, err := svc.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "2", recent[0].ID)

	_, n := svc.LastScan()
	assert.Equal(t, 2, n)
}

func TestArbService_StoreFailureDoesNotStopOtherSinks(t *testing.T) {
	store := &memArbStore{err: errors.New("db down")}
	b := &recBroadcaster{}
	svc := NewArbService(ArbServiceConfig{Store: store, Broadcaster: b, Logger: discardLogger()})

	svc.Record(context.Background(), time.Now(), []domain.ArbOpportunity{opp("1", "e1", 1.5)})
	assert.Len(t, b.payloads, 1)
}

func TestArbService_RecentInMemory(t *testing.T) {
	svc := NewArbService(ArbServiceConfig{Logger: discardLogger()})
	ctx := context.Background()

	svc.Record(ctx, time.Now(), []domain.ArbOpportunity{opp("1", "e1", 1), opp("2", "e2", 2), opp("3", "e3", 3)})
	recent, err := svc.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "3", recent[0].ID)
	assert.Equal(t, "2", recent[1].ID)
}

func TestArbService_AlertsOncePerMargin(t *testing.T) {
	al := &recAlerter{}
	svc := NewArbService(ArbServiceConfig{Alerter: al, AlertMinProfit: 1.0, Logger: discardLogger()})
	ctx := context.Background()

	svc.Record(ctx, time.Now(), []domain.ArbOpportunity{opp("1", "e1", 2.0), opp("2", "e2", 0.5)})
	require.Len(t, al.titles, 1)
	assert.Equal(t, "1 arbitrage opportunity", al.titles[0])

	// Same margin again: no alert.
	svc.Record(ctx, time.Now(), []domain.ArbOpportunity{opp("3", "e1", 2.0)})
	assert.Len(t, al.titles, 1)

	// Margin moved: alert again.
	svc.Record(ctx, time.Now(), []domain.ArbOpportunity{opp("4", "e1", 2.5)})
	assert.Len(t, al.titles, 2)
}
