package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsbot/internal/config"
	"github.com/alanyoungcy/oddsbot/internal/session"
	"github.com/alanyoungcy/oddsbot/internal/telegram"
)

// fakeTelegram answers getMe so the bot client can be constructed.
func fakeTelegram(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Odds","username":"oddsbot"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func testApp(t *testing.T, mutate func(*config.Config)) (*App, *components) {
	t.Helper()
	var sportsCalls atomic.Int32
	odds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v4/sports/" {
			sportsCalls.Add(1)
			_, _ = w.Write([]byte(`[{"key":"soccer_epl","group":"Soccer","title":"EPL","active":true}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(odds.Close)

	cfg := config.Defaults()
	cfg.OddsAPI.BaseURL = odds.URL
	cfg.OddsAPI.APIKey = "k"
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.BaseURL = fakeTelegram(t)
	if mutate != nil {
		mutate(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(&cfg, logger)
	deps, cleanup, err := Wire(context.Background(), &cfg, logger)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return a, a.build(deps)
}

func TestWireWithoutBackends(t *testing.T) {
	_, c := testApp(t, nil)

	assert.Nil(t, c.deps.SignalBus)
	assert.Nil(t, c.deps.ArbStore)
	assert.Nil(t, c.deps.Archiver)
	assert.Empty(t, c.deps.Pingers)
	assert.NotNil(t, c.deps.Telegram)
	assert.False(t, c.deps.Notifier.Enabled())
	assert.NotNil(t, c.bot)
	assert.Nil(t, c.hub, "bot mode serves no HTTP")
}

func TestComponentsServeTurns(t *testing.T) {
	_, c := testApp(t, func(cfg *config.Config) { cfg.Mode = "full" })
	require.NotNil(t, c.hub)

	resp := c.machine.HandleTurn(context.Background(), "u1", session.ActionSports, "")
	assert.Equal(t, session.TextSelectSport, resp.Text)
	require.NotEmpty(t, resp.Actions)
	assert.Equal(t, "EPL", resp.Actions[0].Label)

	st := c.status("full")()
	assert.Equal(t, "full", st.Mode)
	assert.Equal(t, 1, st.ActiveSessions)
	assert.Equal(t, []string{"americanfootball_nfl", "basketball_nba", "soccer_epl"}, st.PopularSports)
	assert.Empty(t, st.LastScanAt)

	resp = c.machine.HandleTurn(context.Background(), "u1", session.ActionArbitrage, "")
	assert.Contains(t, resp.Text, "No arbitrage")
	at, n := c.arb.LastScan()
	assert.False(t, at.IsZero())
	assert.Zero(t, n)
}

func TestAlertSenders(t *testing.T) {
	cfg := config.Defaults()
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"
	senders, err := alertSenders(&cfg, nil)
	require.NoError(t, err)
	assert.Len(t, senders, 1)

	tg, err := telegram.NewClient(telegram.ClientConfig{Token: "123:abc", BaseURL: fakeTelegram(t)})
	require.NoError(t, err)
	cfg.Notify.TelegramChatID = "-100200"
	senders, err = alertSenders(&cfg, tg)
	require.NoError(t, err)
	assert.Len(t, senders, 2)

	cfg.Notify.TelegramChatID = "not-a-number"
	_, err = alertSenders(&cfg, tg)
	assert.Error(t, err)
}

func TestIgnoreCanceled(t *testing.T) {
	assert.NoError(t, ignoreCanceled(context.Canceled))
	assert.NoError(t, ignoreCanceled(nil))
	assert.ErrorIs(t, ignoreCanceled(io.ErrUnexpectedEOF), io.ErrUnexpectedEOF)
}
