// Package apify estimates public sentiment for a matchup from scraped posts.
// Without an API token it falls back to a deterministic simulated sample.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

const (
	// DefaultBaseURL is the Apify API root.
	DefaultBaseURL = "https://api.apify.com"
	// DefaultActor is the tweet scraper actor id.
	DefaultActor = "apidojo~tweet-scraper"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL  string
	Token    string
	Actor    string
	MaxItems int
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Client implements domain.SentimentProvider.
type Client struct {
	baseURL    string
	token      string
	actor      string
	maxItems   int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a sentiment client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Actor == "" {
		cfg.Actor = DefaultActor
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		actor:      cfg.Actor,
		maxItems:   cfg.MaxItems,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(slog.String("component", "apify")),
	}
}

// Simulated reports whether the client answers from simulated samples.
func (c *Client) Simulated() bool { return c.token == "" }

// FetchSentiment returns the sentiment breakdown for label, which is a
// "{home} vs {away}" matchup string.
func (c *Client) FetchSentiment(ctx context.Context, label string) (domain.SentimentData, error) {
	if err := ctx.Err(); err != nil {
		return domain.SentimentData{}, fmt.Errorf("apify: %w", err)
	}
	if c.Simulated() {
		return Simulate(label), nil
	}

	posts, err := c.runActor(ctx, label)
	if err != nil {
		return domain.SentimentData{}, err
	}
	if len(posts) == 0 {
		return domain.SentimentData{}, fmt.Errorf("apify: no posts for %q: %w", label, domain.ErrDataAbsent)
	}
	return Tally(posts), nil
}

type post struct {
	Text     string `json:"text"`
	FullText string `json:"full_text"`
}

func (p post) body() string {
	if p.FullText != "" {
		return p.FullText
	}
	return p.Text
}

func (c *Client) runActor(ctx context.Context, label string) ([]string, error) {
	input, err := json.Marshal(map[string]any{
		"searchTerms": []string{label},
		"maxItems":    c.maxItems,
		"sort":        "Latest",
	})
	if err != nil {
		return nil, fmt.Errorf("apify: encode input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items?token=%s",
		c.baseURL, url.PathEscape(c.actor), url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("apify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apify: %w: %s", domain.ErrTransport, strings.ReplaceAll(err.Error(), c.token, "***"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apify: %w: read response: %w", domain.ErrTransport, err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("apify: run actor: %w", err)
	}

	var items []post
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("apify: decode dataset: %w", err)
	}
	texts := make([]string, 0, len(items))
	for _, it := range items {
		if t := strings.TrimSpace(it.body()); t != "" {
			texts = append(texts, t)
		}
	}
	c.logger.Debug("apify: actor finished", slog.String("label", label), slog.Int("posts", len(texts)))
	return texts, nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	msg := strings.TrimSpace(string(body))
	switch {
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case statusCode == http.StatusTooManyRequests, statusCode == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	case statusCode >= 500, statusCode == http.StatusRequestTimeout:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrTransport, statusCode, msg)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, msg)
	}
}

// Simulate returns a sentiment sample seeded from label, so repeated calls
// for the same matchup agree. Positive lands in [0.4, 0.7), neutral in
// [0.1, 0.3) and negative takes the remainder.
func Simulate(label string) domain.SentimentData {
	h := fnv.New64a()
	_, _ = h.Write([]byte(label))
	seed := h.Sum64()
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	positive := 0.4 + r.Float64()*0.3
	neutral := 0.1 + r.Float64()*0.2
	negative := 1.0 - positive - neutral

	return domain.SentimentData{
		PositiveRatio: round2(positive),
		NeutralRatio:  round2(neutral),
		NegativeRatio: round2(negative),
		TweetCount:    4,
		Available:     true,
	}
}

var (
	positiveWords = []string{"win", "strong", "great", "love", "best", "go ", "amazing", "dominant", "shot at winning", "confident"}
	negativeWords = []string{"lose", "boring", "bad", "worst", "terrible", "weak", "injured", "awful", "not playing well"}
)

// Tally classifies each post by keyword hits and returns the ratios.
func Tally(posts []string) domain.SentimentData {
	var pos, neg, neu int
	for _, p := range posts {
		text := strings.ToLower(p)
		score := 0
		for _, w := range positiveWords {
			if strings.Contains(text, w) {
				score++
			}
		}
		for _, w := range negativeWords {
			if strings.Contains(text, w) {
				score--
			}
		}
		switch {
		case score > 0:
			pos++
		case score < 0:
			neg++
		default:
			neu++
		}
	}

	total := len(posts)
	if total == 0 {
		return domain.SentimentData{}
	}
	ratio := func(n int) float64 {
		return decimal.NewFromInt(int64(n)).Div(decimal.NewFromInt(int64(total))).Round(2).InexactFloat64()
	}
	return domain.SentimentData{
		PositiveRatio: ratio(pos),
		NeutralRatio:  ratio(neu),
		NegativeRatio: ratio(neg),
		TweetCount:    total,
		Available:     true,
	}
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

var _ domain.SentimentProvider = (*Client)(nil)
