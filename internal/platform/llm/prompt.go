package llm

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

const systemPrompt = "You are a sports analyst. Answer with a short, confident prediction followed by your reasoning."

var promptTmpl = template.Must(template.New("prediction").Funcs(template.FuncMap{
	"pct": func(ratio float64) string { return fmt.Sprintf("%.1f", ratio*100) },
}).Parse(`Analyze the upcoming match between {{.HomeTeam}} and {{.AwayTeam}}.
Based on the data provided below, please provide a confident prediction for the winner and the key reasoning behind your conclusion.

**Match Data:**

1.  **Vegas Odds:**
    *   Home Team ({{.HomeTeam}}): {{.Odds.Home}}
    *   Away Team ({{.AwayTeam}}): {{.Odds.Away}}

2.  **Public Sentiment (from Twitter):**
    *   Positive Sentiment: {{pct .Sentiment.PositiveRatio}}%
    *   Neutral Sentiment: {{pct .Sentiment.NeutralRatio}}%
    *   Negative Sentiment: {{pct .Sentiment.NegativeRatio}}%
    *   Total Tweets Analyzed: {{.Sentiment.TweetCount}}

3.  **Historical Context (from Wikipedia):**
    *   {{.HomeTeam}} Summary: {{.History.Home.Text}}
    *   {{.AwayTeam}} Summary: {{.History.Away.Text}}

**Your Task:**

Return a short, confident prediction and a summary of your reasoning.
`))

// BuildPrompt renders the fixed analysis prompt for req.
func BuildPrompt(req domain.PredictionRequest) (string, error) {
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, req); err != nil {
		return "", err
	}
	return buf.String(), nil
}
