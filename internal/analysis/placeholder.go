package analysis

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// PlaceholderLabel marks a prediction that did not come from a model.
const PlaceholderLabel = "[placeholder prediction]"

// PlaceholderPredictor returns a fixed, deterministic prediction favouring
// the home side. It is used when no prediction model is configured.
type PlaceholderPredictor struct{}

var _ domain.PredictionProvider = PlaceholderPredictor{}

// Predict never fails.
func (PlaceholderPredictor) Predict(_ context.Context, req domain.PredictionRequest) (string, error) {
	return Placeholder(req.HomeTeam, req.AwayTeam), nil
}

// Placeholder renders the placeholder prediction for a matchup.
func Placeholder(home, away string) string {
	return fmt.Sprintf("**Prediction:** %s to win.\n\n"+
		"**Reasoning:**\n"+
		"The analysis suggests that the %s have a slight edge due to stronger recent performance "+
		"and more positive public sentiment. However, the %s's solid historical record makes them "+
		"a formidable opponent.",
		home, home, away)
}
