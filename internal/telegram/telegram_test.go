package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsbot/internal/domain"
	"github.com/alanyoungcy/oddsbot/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const getMeResult = `{"id":1,"is_bot":true,"first_name":"Odds","username":"oddsbot"}`

type apiCall struct {
	Method string
	Form   map[string]string
}

// fakeAPI records Bot API calls other than getMe and answers them with
// canned results.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	results map[string]string
	failing map[string]string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		method := parts[len(parts)-1]
		assert.Equal(t, "/bottest-token/"+method, r.URL.Path)

		if method == "getMe" {
			_, _ = io.WriteString(w, `{"ok":true,"result":`+getMeResult+`}`)
			return
		}

		_ = r.ParseForm()
		form := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.calls = append(f.calls, apiCall{Method: method, Form: form})
		result, ok := f.results[method]
		failure := f.failing[method]
		f.mu.Unlock()

		if failure != "" {
			_, _ = io.WriteString(w, failure)
			return
		}
		if !ok {
			result = "true"
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":`+result+`}`)
	})
}

func (f *fakeAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Method
	}
	return out
}

func (f *fakeAPI) call(i int) apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{Token: "test-token", BaseURL: srv.URL, Timeout: 5 * time.Second, Logger: discardLogger()})
	require.NoError(t, err)
	return c
}

type recTurns struct {
	mu       sync.Mutex
	sessions []string
	actions  []string
	payloads []string
	resp     session.Response
}

func (r *recTurns) HandleTurn(_ context.Context, sessionID, action, payload string) session.Response {
	r.mu.Lock()
	r.sessions = append(r.sessions, sessionID)
	r.actions = append(r.actions, action)
	r.payloads = append(r.payloads, payload)
	r.mu.Unlock()
	return r.resp
}

func callbackUpdate(userID, chatID int64, msgID int, data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 1,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb1",
			From:    &tgbotapi.User{ID: userID},
			Message: &tgbotapi.Message{MessageID: msgID, Chat: &tgbotapi.Chat{ID: chatID}},
			Data:    data,
		},
	}
}

func commandUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: 99},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(strings.Fields(text)[0])}},
	}}
}

func TestNewClient_RejectsBadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	defer srv.Close()

	_, err := NewClient(ClientConfig{Token: "bad", BaseURL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestClient_GetUpdates(t *testing.T) {
	api := &fakeAPI{results: map[string]string{
		"getUpdates": `[{"update_id":7,"callback_query":{"id":"cb1","from":{"id":42},"message":{"message_id":3,"chat":{"id":99}},"data":"sport_soccer_epl"}}]`,
	}}
	c := newTestClient(t, api)

	updates, err := c.GetUpdates(context.Background(), 5, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, 7, updates[0].UpdateID)
	require.NotNil(t, updates[0].CallbackQuery)
	assert.Equal(t, "sport_soccer_epl", updates[0].CallbackQuery.Data)
	assert.Equal(t, int64(99), updates[0].CallbackQuery.Message.Chat.ID)

	form := api.call(0).Form
	assert.Equal(t, "5", form["offset"])
	assert.Equal(t, "30", form["timeout"])
}

func TestClient_GetUpdatesHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			_, _ = io.WriteString(w, `{"ok":true,"result":`+getMeResult+`}`)
			return
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	c, err := NewClient(ClientConfig{Token: "test-token", BaseURL: srv.URL, Timeout: time.Minute})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = c.GetUpdates(ctx, 0, 30*time.Second)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     error
	}{
		{"unauthorized", `{"ok":false,"error_code":401,"description":"Unauthorized"}`, domain.ErrUnauthorized},
		{"rate limited", `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":3}}`, domain.ErrRateLimited},
		{"server", `{"ok":false,"error_code":502,"description":"Bad Gateway"}`, domain.ErrTransport},
		{"bad request", `{"ok":false,"error_code":400,"description":"chat not found"}`, errBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{failing: map[string]string{"sendMessage": tt.response}}
			c := newTestClient(t, api)

			_, err := c.SendMessage(context.Background(), 1, "hi", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_EditNotModifiedIsNotAnError(t *testing.T) {
	api := &fakeAPI{failing: map[string]string{
		"editMessageText": `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`,
	}}
	c := newTestClient(t, api)

	assert.NoError(t, c.EditMessageText(context.Background(), 1, 2, "same", nil))
}

func TestClient_TransportErrorRedactsToken(t *testing.T) {
	_, err := NewClient(ClientConfig{Token: "secret-token", BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestClient_SetWebhook(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	require.NoError(t, c.SetWebhook(context.Background(), "https://bot.example/telegram/webhook", "s3cret"))
	require.Equal(t, []string{"setWebhook"}, api.methods())
	form := api.call(0).Form
	assert.Equal(t, "https://bot.example/telegram/webhook", form["url"])
	assert.Equal(t, "s3cret", form["secret_token"])
}

func TestBot_HandleCallback(t *testing.T) {
	api := &fakeAPI{results: map[string]string{"editMessageText": `{"message_id":3,"chat":{"id":99}}`}}
	turns := &recTurns{resp: session.Response{
		Text:    "Please select a match:",
		Actions: []session.Action{{Label: "A vs B", Data: "event_e1"}, {Label: "« Back to Sports", Data: "sports"}},
	}}
	bot := NewBot(BotConfig{Client: newTestClient(t, api), Turns: turns, Logger: discardLogger()})

	bot.HandleUpdate(context.Background(), callbackUpdate(42, 99, 3, "sport_soccer_epl"))

	assert.Equal(t, []string{"tg:42"}, turns.sessions)
	assert.Equal(t, []string{session.ActionSport}, turns.actions)
	assert.Equal(t, []string{"soccer_epl"}, turns.payloads)

	require.Equal(t, []string{"answerCallbackQuery", "editMessageText"}, api.methods())
	assert.Equal(t, "cb1", api.call(0).Form["callback_query_id"])
	edit := api.call(1).Form
	assert.Equal(t, "Please select a match:", edit["text"])
	assert.Equal(t, "99", edit["chat_id"])
	assert.Equal(t, "3", edit["message_id"])

	var markup tgbotapi.InlineKeyboardMarkup
	require.NoError(t, json.Unmarshal([]byte(edit["reply_markup"]), &markup))
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "event_e1", *markup.InlineKeyboard[0][0].CallbackData)
}

type progressTurns struct{}

func (progressTurns) HandleTurn(ctx context.Context, _, _, _ string) session.Response {
	m := session.NewMachine(session.Config{Logger: discardLogger(), Catalog: failingCatalog{}})
	return m.HandleTurn(ctx, "s", session.ActionSports, "")
}

type failingCatalog struct{}

func (failingCatalog) Sports(context.Context) ([]domain.Sport, error) {
	return nil, domain.ErrTransport
}

func (failingCatalog) Events(context.Context, string) ([]domain.Event, error) {
	return nil, domain.ErrTransport
}

func (failingCatalog) Event(context.Context, string, string) (domain.Event, error) {
	return domain.Event{}, domain.ErrTransport
}

func TestBot_ProgressEditsBeforeResult(t *testing.T) {
	api := &fakeAPI{}
	bot := NewBot(BotConfig{Client: newTestClient(t, api), Turns: progressTurns{}, Logger: discardLogger()})

	bot.HandleUpdate(context.Background(), callbackUpdate(1, 6, 5, "sports"))

	require.Equal(t, []string{"answerCallbackQuery", "editMessageText", "editMessageText"}, api.methods())
	assert.Equal(t, session.TextFetchingSports, api.call(1).Form["text"])
	assert.Empty(t, api.call(1).Form["reply_markup"])
	assert.Equal(t, session.TextSportsFailed, api.call(2).Form["text"])
}

func TestBot_HandleCommand(t *testing.T) {
	api := &fakeAPI{results: map[string]string{"sendMessage": `{"message_id":10,"chat":{"id":99}}`}}
	turns := &recTurns{resp: session.Response{Text: session.TextWelcome}}
	bot := NewBot(BotConfig{Client: newTestClient(t, api), Turns: turns, Logger: discardLogger()})

	bot.HandleUpdate(context.Background(), commandUpdate(42, "/start@oddsbot"))

	assert.Equal(t, []string{"tg:42"}, turns.sessions)
	assert.Equal(t, []string{session.ActionStart}, turns.actions)
	require.Equal(t, []string{"sendMessage"}, api.methods())
	assert.Equal(t, session.TextWelcome, api.call(0).Form["text"])
	assert.Equal(t, "99", api.call(0).Form["chat_id"])
}

func TestBot_IgnoresPlainText(t *testing.T) {
	api := &fakeAPI{}
	turns := &recTurns{}
	bot := NewBot(BotConfig{Client: newTestClient(t, api), Turns: turns, Logger: discardLogger()})

	bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "hello"}})
	assert.Empty(t, turns.actions)
	assert.Empty(t, api.methods())
}

func TestBot_Webhook(t *testing.T) {
	api := &fakeAPI{results: map[string]string{"sendMessage": `{"message_id":2,"chat":{"id":5}}`}}
	turns := &recTurns{resp: session.Response{Text: "ok"}}
	bot := NewBot(BotConfig{Client: newTestClient(t, api), Turns: turns, Logger: discardLogger()})
	h := bot.WebhookHandler("s3cret")

	update := `{"update_id":1,"message":{"message_id":1,"from":{"id":5},"chat":{"id":5},"text":"/start",` +
		`"entities":[{"type":"bot_command","offset":0,"length":6}]}}`

	tests := []struct {
		name   string
		method string
		secret string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "s3cret", "", http.StatusMethodNotAllowed},
		{"missing secret", http.MethodPost, "", update, http.StatusForbidden},
		{"wrong secret", http.MethodPost, "nope", update, http.StatusForbidden},
		{"bad body", http.MethodPost, "s3cret", "{", http.StatusBadRequest},
		{"accepted", http.MethodPost, "s3cret", update, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/telegram/webhook", strings.NewReader(tt.body))
			if tt.secret != "" {
				req.Header.Set(SecretHeader, tt.secret)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	bot.Wait()
	assert.Equal(t, []string{session.ActionStart}, turns.actions)
	assert.Equal(t, []string{"sendMessage"}, api.methods())
}

func TestKeyboard(t *testing.T) {
	kb := Keyboard([]session.Action{
		{Label: "⚽ Sports", Data: "sports"},
		{Label: "📊 Arbitrage", Data: "arbitrage"},
		{Label: "🏠 Home", Data: "home"},
	})
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "⚽ Sports", kb.InlineKeyboard[0][0].Text)
	require.NotNil(t, kb.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, "home", *kb.InlineKeyboard[1][0].CallbackData)

	assert.Nil(t, Keyboard(nil))
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("é", MaxMessageLength+10)
	got := []rune(truncate(long))
	assert.Len(t, got, MaxMessageLength)
	assert.Equal(t, "short", truncate("short"))
}
