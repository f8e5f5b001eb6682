// Package telegram is the chat transport that feeds Telegram updates into
// the session machine, built on the telegram-bot-api client.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

const (
	// DefaultBaseURL is the public Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"
	// MaxMessageLength is the Bot API limit on message text.
	MaxMessageLength = 4096
)

// ClientConfig configures a Client.
type ClientConfig struct {
	Token   string
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client calls Bot API methods through tgbotapi.
type Client struct {
	bot    *tgbotapi.BotAPI
	http   *http.Client
	token  string
	logger *slog.Logger
}

// NewClient creates a Client and checks the token with getMe. The HTTP
// timeout must exceed the long-poll timeout passed to GetUpdates.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		http:   &http.Client{Timeout: timeout},
		token:  cfg.Token,
		logger: logger.With(slog.String("component", "telegram")),
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, base+"/bot%s/%s", c.http)
	if err != nil {
		return nil, c.wrap("getMe", err)
	}
	c.bot = bot
	c.logger.Info("telegram: bot connected", slog.String("username", bot.Self.UserName))
	return c, nil
}

// contextDoer binds ctx to every request tgbotapi sends.
type contextDoer struct {
	ctx  context.Context
	http *http.Client
}

func (d contextDoer) Do(req *http.Request) (*http.Response, error) {
	return d.http.Do(req.WithContext(d.ctx))
}

// api returns a shallow copy of the bot whose requests are cancelled with ctx.
func (c *Client) api(ctx context.Context) *tgbotapi.BotAPI {
	bot := *c.bot
	bot.Client = contextDoer{ctx: ctx, http: c.http}
	return &bot
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int, wait time.Duration) ([]tgbotapi.Update, error) {
	u := tgbotapi.NewUpdate(offset)
	u.Timeout = int(wait.Seconds())
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates, err := c.api(ctx).GetUpdates(u)
	if err != nil {
		return nil, c.wrap("getUpdates", err)
	}
	return updates, nil
}

// SendMessage posts plain text to chatID with an optional inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, truncate(text))
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	sent, err := c.api(ctx).Send(msg)
	if err != nil {
		return tgbotapi.Message{}, c.wrap("sendMessage", err)
	}
	return sent, nil
}

// EditMessageText replaces the text and keyboard of an existing message.
// Editing to identical content is not an error.
func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, truncate(text))
	if markup != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, truncate(text), *markup)
	}
	_, err := c.api(ctx).Request(edit)
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return c.wrap("editMessageText", err)
}

// AnswerCallbackQuery acknowledges a button press.
func (c *Client) AnswerCallbackQuery(ctx context.Context, id string) error {
	_, err := c.api(ctx).Request(tgbotapi.NewCallback(id, ""))
	return c.wrap("answerCallbackQuery", err)
}

// SetWebhook registers url for update delivery. Telegram echoes secret in
// the X-Telegram-Bot-Api-Secret-Token header of every delivery.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	_, err := c.api(ctx).MakeRequest("setWebhook", params)
	return c.wrap("setWebhook", err)
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := c.api(ctx).Request(tgbotapi.DeleteWebhookConfig{})
	return c.wrap("deleteWebhook", err)
}

// wrap classifies err as a domain sentinel. Bot API errors carry the API
// error code; anything else is a transport failure whose text may embed the
// token-bearing request URL.
func (c *Client) wrap(method string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("telegram: %s: %w: %s", method, classify(apiErr.Code), apiErr.Message)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("telegram: %s: %w", method, context.Canceled)
	}
	return fmt.Errorf("telegram: %s: %w: %s", method, domain.ErrTransport, c.redact(err.Error()))
}

func (c *Client) redact(s string) string {
	if c.token == "" {
		return s
	}
	return strings.ReplaceAll(s, c.token, "REDACTED")
}

func classify(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.ErrUnauthorized
	case code == http.StatusNotFound:
		return domain.ErrNotFound
	case code == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case code >= 500:
		return domain.ErrTransport
	}
	return errBadRequest
}

var errBadRequest = errors.New("bad request")

func truncate(text string) string {
	r := []rune(text)
	if len(r) <= MaxMessageLength {
		return text
	}
	return string(r[:MaxMessageLength-1]) + "…"
}
