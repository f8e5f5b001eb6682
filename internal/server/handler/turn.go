package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/oddsbot/internal/session"
)

// TurnProcessor handles one session turn.
type TurnProcessor interface {
	HandleTurn(ctx context.Context, sessionID, action, payload string) session.Response
}

// TurnHandler exposes the session machine over HTTP for non-Telegram
// front ends.
type TurnHandler struct {
	turns  TurnProcessor
	logger *slog.Logger
}

// NewTurnHandler creates a TurnHandler.
func NewTurnHandler(turns TurnProcessor, logger *slog.Logger) *TurnHandler {
	return &TurnHandler{turns: turns, logger: logger}
}

type turnRequest struct {
	SessionID string `json:"session_id"`
	Action    string `json:"action"`
	Payload   string `json:"payload"`
	// Callback is a button identifier such as "sport_soccer_epl"; it is
	// used instead of Action and Payload when set.
	Callback string `json:"callback"`
}

// HandleTurn processes one turn.
// POST /api/turn
func (h *TurnHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if req.Callback != "" {
		req.Action, req.Payload = session.ParseCallback(req.Callback)
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "action or callback is required")
		return
	}

	resp := h.turns.HandleTurn(r.Context(), "api:"+req.SessionID, req.Action, req.Payload)
	if resp.Actions == nil {
		resp.Actions = []session.Action{}
	}
	writeJSON(w, http.StatusOK, resp)
}
