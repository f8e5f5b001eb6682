package arbitrage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// NoOpportunitiesText is shown when a sweep finds nothing.
const NoOpportunitiesText = "No arbitrage opportunities found at the moment."

// FormatReport renders opportunities for a chat message.
func FormatReport(opps []domain.ArbOpportunity) string {
	if len(opps) == 0 {
		return NoOpportunitiesText
	}

	var b strings.Builder
	b.WriteString("Arbitrage Opportunities Found!\n\n")
	for _, op := range opps {
		fmt.Fprintf(&b, "**Match:** %s (%s)\n", op.Match, op.SportTitle)
		fmt.Fprintf(&b, "**Profit:** %s%%\n", strconv.FormatFloat(op.ProfitMarginPercent, 'f', 2, 64))
		for _, l := range op.Legs {
			fmt.Fprintf(&b, "- Bet on **%s** at **%s** with **%s** (%.1f%% of stake)\n",
				l.OutcomeName,
				strconv.FormatFloat(l.Price, 'f', -1, 64),
				l.Bookmaker,
				l.StakeFraction*100,
			)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
