package analysis

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// Format renders an analysis as chat display text: the prediction first,
// then the inputs it was based on.
func Format(res domain.AnalysisResult) string {
	var b strings.Builder
	b.WriteString(res.Prediction)
	if res.Placeholder {
		b.WriteString("\n\n")
		b.WriteString(PlaceholderLabel)
	}

	b.WriteString("\n\n**Best odds:**\n")
	fmt.Fprintf(&b, "- Home: %s%s\n", res.Odds.Home, bookmakerSuffix(res.BestPrices.HomeBookmaker))
	fmt.Fprintf(&b, "- Away: %s%s\n", res.Odds.Away, bookmakerSuffix(res.BestPrices.AwayBookmaker))

	b.WriteString("\n**Public sentiment:** ")
	if res.Sentiment.Available {
		fmt.Fprintf(&b, "%.1f%% positive, %.1f%% neutral, %.1f%% negative",
			res.Sentiment.PositiveRatio*100,
			res.Sentiment.NeutralRatio*100,
			res.Sentiment.NegativeRatio*100,
		)
	} else {
		b.WriteString(domain.NotAvailable)
	}

	if len(res.Degraded) > 0 {
		b.WriteString("\n\n_Some sources were unavailable: ")
		b.WriteString(strings.Join(res.Degraded, ", "))
		b.WriteString("._")
	}
	return b.String()
}

func bookmakerSuffix(bookmaker string) string {
	if bookmaker == "" {
		return ""
	}
	return " (" + bookmaker + ")"
}
