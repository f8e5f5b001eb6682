package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/alanyoungcy/oddsbot/internal/session"
)

// SecretHeader carries the webhook secret on every delivery.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// TurnHandler processes one session turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID, action, payload string) session.Response
}

// BotConfig configures a Bot.
type BotConfig struct {
	Client *Client
	Turns  TurnHandler
	Logger *slog.Logger
	// PollWait is the getUpdates long-poll duration.
	PollWait time.Duration
	// TurnTimeout bounds the handling of one update.
	TurnTimeout time.Duration
}

// Bot routes Telegram updates to the session machine and renders the
// responses as messages with inline keyboards.
type Bot struct {
	client      *Client
	turns       TurnHandler
	logger      *slog.Logger
	pollWait    time.Duration
	turnTimeout time.Duration

	wg sync.WaitGroup
}

// NewBot creates a Bot.
func NewBot(cfg BotConfig) *Bot {
	b := &Bot{
		client:      cfg.Client,
		turns:       cfg.Turns,
		logger:      cfg.Logger,
		pollWait:    cfg.PollWait,
		turnTimeout: cfg.TurnTimeout,
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With(slog.String("component", "telegram_bot"))
	if b.pollWait <= 0 {
		b.pollWait = 30 * time.Second
	}
	if b.turnTimeout <= 0 {
		b.turnTimeout = 2 * time.Minute
	}
	return b
}

// Poll long-polls getUpdates until ctx is cancelled. Each update is handled
// on its own goroutine; Poll waits for in-flight updates before returning.
func (b *Bot) Poll(ctx context.Context) error {
	if err := b.client.DeleteWebhook(ctx); err != nil {
		b.logger.WarnContext(ctx, "telegram: delete webhook failed", slog.String("error", err.Error()))
	}
	b.logger.InfoContext(ctx, "telegram: polling started")

	offset := 0
	backoff := time.Second
	for {
		updates, err := b.client.GetUpdates(ctx, offset, b.pollWait)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			b.logger.WarnContext(ctx, "telegram: get updates failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", backoff),
			)
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.dispatch(ctx, u)
		}
	}

	b.wg.Wait()
	b.logger.Info("telegram: polling stopped")
	return nil
}

// WebhookHandler accepts pushed updates. Requests without the configured
// secret are rejected. The update is acknowledged immediately and handled
// in the background.
func (b *Bot) WebhookHandler(secret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		got := r.Header.Get(SecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		u, err := b.client.bot.HandleUpdate(r)
		if err != nil {
			http.Error(w, "invalid update", http.StatusBadRequest)
			return
		}
		b.dispatch(context.WithoutCancel(r.Context()), *u)
		w.WriteHeader(http.StatusOK)
	})
}

// Wait blocks until every dispatched update has been handled.
func (b *Bot) Wait() { b.wg.Wait() }

func (b *Bot) dispatch(ctx context.Context, u tgbotapi.Update) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		tctx, cancel := context.WithTimeout(ctx, b.turnTimeout)
		defer cancel()
		b.HandleUpdate(tctx, u)
	}()
}

// HandleUpdate processes one update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.IsCommand():
		b.handleCommand(ctx, u.Message)
	default:
		b.logger.DebugContext(ctx, "telegram: ignoring update", slog.Int("update_id", u.UpdateID))
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if err := b.client.AnswerCallbackQuery(ctx, q.ID); err != nil {
		b.logSendFailure(ctx, "answer callback", err)
	}
	if q.Message == nil || q.Message.Chat == nil || q.From == nil {
		return
	}
	chatID, msgID := q.Message.Chat.ID, q.Message.MessageID

	ctx = session.WithProgress(ctx, func(text string) {
		if err := b.client.EditMessageText(ctx, chatID, msgID, text, nil); err != nil {
			b.logSendFailure(ctx, "progress edit", err)
		}
	})
	action, payload := session.ParseCallback(q.Data)
	resp := b.turns.HandleTurn(ctx, sessionID(q.From.ID), action, payload)

	if err := b.client.EditMessageText(ctx, chatID, msgID, resp.Text, Keyboard(resp.Actions)); err != nil {
		b.logSendFailure(ctx, "edit message", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, m *tgbotapi.Message) {
	if m.Chat == nil {
		return
	}
	userID := m.Chat.ID
	if m.From != nil {
		userID = m.From.ID
	}
	// Command drops the slash and the "@botname" suffix used in group chats.
	action, payload := session.ParseCallback(m.Command())
	resp := b.turns.HandleTurn(ctx, sessionID(userID), action, payload)

	if _, err := b.client.SendMessage(ctx, m.Chat.ID, resp.Text, Keyboard(resp.Actions)); err != nil {
		b.logSendFailure(ctx, "send message", err)
	}
}

func (b *Bot) logSendFailure(ctx context.Context, op string, err error) {
	level := slog.LevelWarn
	if errors.Is(err, context.Canceled) {
		level = slog.LevelDebug
	}
	b.logger.Log(ctx, level, "telegram: "+op+" failed", slog.String("error", err.Error()))
}

// Keyboard lays actions out one button per row. The main menu's Sports and
// Arbitrage buttons share the first row.
func Keyboard(actions []session.Action) *tgbotapi.InlineKeyboardMarkup {
	if len(actions) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(actions))
	for i := 0; i < len(actions); i++ {
		btn := tgbotapi.NewInlineKeyboardButtonData(actions[i].Label, actions[i].Data)
		if actions[i].Data == session.ActionSports && i+1 < len(actions) && actions[i+1].Data == session.ActionArbitrage {
			next := tgbotapi.NewInlineKeyboardButtonData(actions[i+1].Label, actions[i+1].Data)
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn, next))
			i++
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func sessionID(userID int64) string {
	return "tg:" + strconv.FormatInt(userID, 10)
}
