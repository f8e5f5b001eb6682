// Package wikipedia fetches short team summaries from the MediaWiki action
// API.
package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// DefaultBaseURL is the English Wikipedia API root.
const DefaultBaseURL = "https://en.wikipedia.org"

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL   string
	Sentences int
	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Client implements domain.HistoryProvider.
type Client struct {
	baseURL    string
	sentences  int
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Wikipedia client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Sentences <= 0 {
		cfg.Sentences = 5
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "oddsbot/1.0 (https://github.com/alanyoungcy/oddsbot)"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		sentences:  cfg.Sentences,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(slog.String("component", "wikipedia")),
	}
}

type queryResponse struct {
	Query struct {
		Pages []page `json:"pages"`
	} `json:"query"`
}

type page struct {
	PageID    int               `json:"pageid"`
	Title     string            `json:"title"`
	Missing   bool              `json:"missing"`
	Invalid   bool              `json:"invalid"`
	Extract   string            `json:"extract"`
	PageProps map[string]string `json:"pageprops"`
}

// AmbiguousText and MissingText are the absent-result messages for team.
func AmbiguousText(team string) string {
	return fmt.Sprintf("Could not find a specific page for '%s'. The name is ambiguous.", team)
}

func MissingText(team string) string {
	return fmt.Sprintf("Could not find a Wikipedia page for '%s'.", team)
}

// FetchSummary returns the first sentences of the team's article. It never
// fails: ambiguous or missing titles are reported as absent, transport and
// decoding problems as unavailable.
func (c *Client) FetchSummary(ctx context.Context, team string) domain.HistoryResult {
	res, err := c.Lookup(ctx, team)
	if err == nil {
		return res
	}

	level := slog.LevelWarn
	if !domain.IsCollaboratorFailure(err) && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		level = slog.LevelError
	}
	c.logger.Log(ctx, level, "wikipedia: summary unavailable",
		slog.String("team", team),
		slog.String("error", err.Error()),
	)
	return domain.HistoryResult{Team: team, Summary: domain.NoHistoryText, Status: domain.HistoryUnavailable}
}

// Lookup is FetchSummary with the failure surfaced as an error. Absent
// titles are still a successful lookup.
func (c *Client) Lookup(ctx context.Context, team string) (domain.HistoryResult, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("prop", "extracts|pageprops")
	params.Set("ppprop", "disambiguation")
	params.Set("explaintext", "1")
	params.Set("exsentences", strconv.Itoa(c.sentences))
	params.Set("redirects", "1")
	params.Set("titles", team)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/w/api.php?"+params.Encode(), nil)
	if err != nil {
		return domain.HistoryResult{}, fmt.Errorf("wikipedia: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.HistoryResult{}, fmt.Errorf("wikipedia: %w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.HistoryResult{}, fmt.Errorf("wikipedia: %w: read response: %w", domain.ErrTransport, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.HistoryResult{}, fmt.Errorf("wikipedia: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode >= 500 {
		return domain.HistoryResult{}, fmt.Errorf("wikipedia: %w: HTTP %d", domain.ErrTransport, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.HistoryResult{}, fmt.Errorf("wikipedia: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return domain.HistoryResult{}, fmt.Errorf("wikipedia: decode: %w", err)
	}

	absent := domain.HistoryResult{Team: team, Summary: MissingText(team), Status: domain.HistoryAbsent}
	if len(qr.Query.Pages) == 0 {
		return absent, nil
	}
	p := qr.Query.Pages[0]
	switch {
	case p.Missing, p.Invalid:
		return absent, nil
	case hasKey(p.PageProps, "disambiguation"):
		return domain.HistoryResult{Team: team, Summary: AmbiguousText(team), Status: domain.HistoryAbsent}, nil
	}

	extract := strings.TrimSpace(p.Extract)
	if extract == "" {
		return absent, nil
	}
	return domain.HistoryResult{Team: team, Summary: extract, Status: domain.HistoryFound}, nil
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

var _ domain.HistoryProvider = (*Client)(nil)
