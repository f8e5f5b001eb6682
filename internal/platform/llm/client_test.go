package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

func sampleRequest() domain.PredictionRequest {
	return domain.PredictionRequest{
		HomeTeam:  "Boston Celtics",
		AwayTeam:  "Los Angeles Lakers",
		Odds:      domain.OddsData{Home: domain.PriceOf(1.85), Away: domain.PriceOf(0)},
		Sentiment: domain.SentimentData{PositiveRatio: 0.65, NeutralRatio: 0.2, NegativeRatio: 0.15, TweetCount: 150, Available: true},
		History: domain.HistoricalData{
			Home: domain.HistoryResult{Team: "Boston Celtics", Summary: "17 championships.", Status: domain.HistoryFound},
			Away: domain.HistoryResult{Team: "Los Angeles Lakers", Status: domain.HistoryUnavailable},
		},
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(sampleRequest())
	require.NoError(t, err)

	assert.Contains(t, prompt, "Analyze the upcoming match between Boston Celtics and Los Angeles Lakers.")
	assert.Contains(t, prompt, "Home Team (Boston Celtics): 1.85")
	assert.Contains(t, prompt, "Away Team (Los Angeles Lakers): N/A")
	assert.Contains(t, prompt, "Positive Sentiment: 65.0%")
	assert.Contains(t, prompt, "Total Tweets Analyzed: 150")
	assert.Contains(t, prompt, "Boston Celtics Summary: 17 championships.")
	assert.Contains(t, prompt, "Los Angeles Lakers Summary: No data available.")
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestPredict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultModel, body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Contains(t, body.Messages[1].Content, "Boston Celtics")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  **Prediction:** Boston Celtics to win.  "},"finish_reason":"stop"}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)

	got, err := c.Predict(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "**Prediction:** Boston Celtics to win.", got)
}

func TestPredict_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "bad key", status: http.StatusUnauthorized, body: `{"error":{"message":"invalid key","type":"auth"}}`, want: domain.ErrUnauthorized},
		{name: "quota", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down","type":"rate"}}`, want: domain.ErrRateLimited},
		{name: "outage", status: http.StatusServiceUnavailable, body: `{"error":{"message":"down","type":"server"}}`, want: domain.ErrTransport},
		{name: "no choices", status: http.StatusOK, body: `{"id":"x","choices":[]}`, want: domain.ErrDataAbsent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewClient(ClientConfig{APIKey: "key", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = c.Predict(context.Background(), sampleRequest())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
