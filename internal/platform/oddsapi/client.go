// Package oddsapi is a client for the-odds-api.com v4 REST API.
package oddsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.the-odds-api.com"

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	// Regions and Markets are passed through as comma-separated lists.
	Regions string
	Markets string
	// RequestsPerSecond and Burst size the in-process token bucket.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	// Shared, when set, is waited on before every request so that the API
	// quota is shared between replicas.
	Shared domain.RateLimiter
	Logger *slog.Logger
}

// Client implements domain.OddsProvider.
type Client struct {
	baseURL    string
	apiKey     string
	regions    string
	markets    string
	httpClient *http.Client
	limiter    *rate.Limiter
	shared     domain.RateLimiter
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewClient creates a new odds API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Regions == "" {
		cfg.Regions = "us"
	}
	if cfg.Markets == "" {
		cfg.Markets = "h2h,spreads,totals"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		regions:    cfg.Regions,
		markets:    cfg.Markets,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		shared:     cfg.Shared,
		validate:   validator.New(),
		logger:     logger.With(slog.String("component", "oddsapi")),
	}
}

// FetchSports returns the in-season sports catalog.
func (c *Client) FetchSports(ctx context.Context) ([]domain.Sport, error) {
	body, err := c.doGet(ctx, "/v4/sports/", nil)
	if err != nil {
		return nil, fmt.Errorf("oddsapi: fetch sports: %w", err)
	}

	var apiSports []APISport
	if err := json.Unmarshal(body, &apiSports); err != nil {
		return nil, fmt.Errorf("oddsapi: decode sports: %w", err)
	}

	sports := make([]domain.Sport, 0, len(apiSports))
	for _, s := range apiSports {
		if err := c.validate.Struct(s); err != nil {
			c.logger.Debug("oddsapi: dropping invalid sport", slog.String("key", s.Key), slog.String("error", err.Error()))
			continue
		}
		sports = append(sports, s.ToDomainSport())
	}
	return sports, nil
}

// FetchOdds returns upcoming events with bookmaker quotes for sportKey.
// Malformed events are dropped; malformed markets are dropped from their
// bookmaker. An empty result is not an error.
func (c *Client) FetchOdds(ctx context.Context, sportKey string) ([]domain.Event, error) {
	params := url.Values{}
	params.Set("regions", c.regions)
	params.Set("markets", c.markets)
	params.Set("oddsFormat", "decimal")

	body, err := c.doGet(ctx, "/v4/sports/"+url.PathEscape(sportKey)+"/odds", params)
	if err != nil {
		return nil, fmt.Errorf("oddsapi: fetch odds %s: %w", sportKey, err)
	}

	var apiEvents []APIEvent
	if err := json.Unmarshal(body, &apiEvents); err != nil {
		return nil, fmt.Errorf("oddsapi: decode odds %s: %w", sportKey, err)
	}

	events := make([]domain.Event, 0, len(apiEvents))
	for _, ae := range apiEvents {
		ev, ok := c.toDomainEvent(ae)
		if ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

// toDomainEvent validates an API event and converts it. Structural checks on
// h2h outcome counts are left to the aggregator.
func (c *Client) toDomainEvent(ae APIEvent) (domain.Event, bool) {
	// Bookmakers carry no dive tag, so only the identity fields are checked here.
	if err := c.validate.Struct(ae); err != nil {
		c.logger.Debug("oddsapi: dropping invalid event",
			slog.String("event_id", ae.ID),
			slog.String("error", err.Error()),
		)
		return domain.Event{}, false
	}

	ev := domain.Event{
		ID:           ae.ID,
		SportKey:     ae.SportKey,
		SportTitle:   ae.SportTitle,
		HomeTeam:     ae.HomeTeam,
		AwayTeam:     ae.AwayTeam,
		CommenceTime: ae.CommenceTime,
		Quotes:       make([]domain.BookmakerQuote, 0, len(ae.Bookmakers)),
	}
	for _, bm := range ae.Bookmakers {
		if bm.Title == "" {
			continue
		}
		q := domain.BookmakerQuote{Key: bm.Key, Title: bm.Title, Markets: make(map[string]domain.Market, len(bm.Markets))}
		for _, m := range bm.Markets {
			if err := c.validate.Struct(m); err != nil {
				c.logger.Debug("oddsapi: dropping invalid market",
					slog.String("event_id", ae.ID),
					slog.String("bookmaker", bm.Key),
					slog.String("market", m.Key),
					slog.String("error", err.Error()),
				)
				continue
			}
			q.Markets[m.Key] = m.toDomain()
		}
		ev.Quotes = append(ev.Quotes, q)
	}
	return ev, true
}

func (c *Client) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	if c.shared != nil {
		if err := c.shared.Wait(ctx, "oddsapi"); err != nil {
			return nil, fmt.Errorf("shared rate limit wait: %w", err)
		}
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("apiKey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, redactKey(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrTransport, err)
	}

	if remaining := resp.Header.Get("x-requests-remaining"); remaining != "" {
		c.logger.Debug("oddsapi: quota",
			slog.String("path", path),
			slog.String("remaining", remaining),
			slog.String("used", resp.Header.Get("x-requests-used")),
		)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// redactKey strips the query string from URL errors so the API key does not
// end up in logs.
func redactKey(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		u := uerr.URL
		if i := strings.IndexByte(u, '?'); i >= 0 {
			u = u[:i]
		}
		return &url.Error{Op: uerr.Op, URL: u, Err: uerr.Err}
	}
	return err
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	msg := strings.TrimSpace(string(body))
	switch {
	case statusCode == http.StatusNotFound, statusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrDataAbsent, msg)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	case statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrTransport, statusCode, msg)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, msg)
	}
}

var _ domain.OddsProvider = (*Client)(nil)
