package wikipedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

func TestFetchSummary(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus domain.HistoryStatus
		wantText   string
	}{
		{
			name:       "found",
			status:     http.StatusOK,
			body:       `{"query":{"pages":[{"pageid":1,"title":"Boston Celtics","extract":"The Boston Celtics are an American professional basketball team."}]}}`,
			wantStatus: domain.HistoryFound,
			wantText:   "The Boston Celtics are an American professional basketball team.",
		},
		{
			name:       "missing",
			status:     http.StatusOK,
			body:       `{"query":{"pages":[{"ns":0,"title":"Boston Celtics","missing":true}]}}`,
			wantStatus: domain.HistoryAbsent,
			wantText:   "Could not find a Wikipedia page for 'Boston Celtics'.",
		},
		{
			name:       "disambiguation",
			status:     http.StatusOK,
			body:       `{"query":{"pages":[{"pageid":2,"title":"Boston Celtics","extract":"may refer to","pageprops":{"disambiguation":""}}]}}`,
			wantStatus: domain.HistoryAbsent,
			wantText:   "Could not find a specific page for 'Boston Celtics'. The name is ambiguous.",
		},
		{
			name:       "server error",
			status:     http.StatusServiceUnavailable,
			body:       `down`,
			wantStatus: domain.HistoryUnavailable,
			wantText:   domain.NoHistoryText,
		},
		{
			name:       "garbage",
			status:     http.StatusOK,
			body:       `<html>`,
			wantStatus: domain.HistoryUnavailable,
			wantText:   domain.NoHistoryText,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/w/api.php", r.URL.Path)
				assert.Equal(t, "Boston Celtics", r.URL.Query().Get("titles"))
				assert.Equal(t, "5", r.URL.Query().Get("exsentences"))
				assert.Equal(t, "1", r.URL.Query().Get("redirects"))
				assert.NotEmpty(t, r.Header.Get("User-Agent"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(ClientConfig{BaseURL: srv.URL})
			got := c.FetchSummary(context.Background(), "Boston Celtics")
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantText, got.Text())
			assert.Equal(t, "Boston Celtics", got.Team)
		})
	}
}

func TestFetchSummary_FollowsRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("redirects") == "" {
			// Without redirect resolution the redirect page itself has no extract.
			_, _ = w.Write([]byte(`{"query":{"pages":[{"pageid":9,"title":"Tottenham Hotspur","redirect":true}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"query":{"redirects":[{"from":"Tottenham Hotspur","to":"Tottenham Hotspur F.C."}],` +
			`"pages":[{"pageid":10,"title":"Tottenham Hotspur F.C.","extract":"Tottenham Hotspur Football Club is an English professional football club."}]}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	got := c.FetchSummary(context.Background(), "Tottenham Hotspur")
	assert.Equal(t, domain.HistoryFound, got.Status)
	assert.Equal(t, "Tottenham Hotspur Football Club is an English professional football club.", got.Summary)
	assert.Equal(t, "Tottenham Hotspur", got.Team)
}

func TestFetchSummary_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	got := c.FetchSummary(ctx, "Boston Celtics")
	assert.Equal(t, domain.HistoryUnavailable, got.Status)

	_, err := c.Lookup(ctx, "Boston Celtics")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
}
