package handler

import (
	"net/http"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// StatusHandler serves the bot's operational summary.
type StatusHandler struct {
	status func() domain.BotStatus
}

// NewStatusHandler creates a StatusHandler reading from status.
func NewStatusHandler(status func() domain.BotStatus) *StatusHandler {
	return &StatusHandler{status: status}
}

// GetStatus
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}
