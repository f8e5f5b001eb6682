package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// ArbSource serves arbitrage history and on-demand sweeps.
type ArbSource interface {
	Recent(ctx context.Context, limit int) ([]domain.ArbOpportunity, error)
}

// ScanFunc runs one sweep.
type ScanFunc func(ctx context.Context) ([]domain.ArbOpportunity, error)

// ArbHandler serves the arbitrage endpoints.
type ArbHandler struct {
	arb    ArbSource
	scan   ScanFunc
	store  domain.ArbStore
	logger *slog.Logger
}

// NewArbHandler creates an ArbHandler. store may be nil, which disables the
// per-sport history endpoint.
func NewArbHandler(arb ArbSource, scan ScanFunc, store domain.ArbStore, logger *slog.Logger) *ArbHandler {
	return &ArbHandler{arb: arb, scan: scan, store: store, logger: logger}
}

type listArbResponse struct {
	Opportunities []domain.ArbOpportunity `json:"opportunities"`
}

type scanResponse struct {
	ScannedAt     time.Time               `json:"scanned_at"`
	Opportunities []domain.ArbOpportunity `json:"opportunities"`
}

// ListRecent
// GET /api/arbitrage/recent?limit=20
func (h *ArbHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 200)
	}

	opps, err := h.arb.Recent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list recent arbs failed", slog.String("error", err.Error()))
		writeError(w, statusFor(err), "failed to list arbitrage opportunities")
		return
	}
	if opps == nil {
		opps = []domain.ArbOpportunity{}
	}
	writeJSON(w, http.StatusOK, listArbResponse{Opportunities: opps})
}

// Scan runs a sweep across the popular sports and returns what it found.
// POST /api/arbitrage/scan
func (h *ArbHandler) Scan(w http.ResponseWriter, r *http.Request) {
	opps, err := h.scan(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "scan aborted")
		return
	}
	if opps == nil {
		opps = []domain.ArbOpportunity{}
	}
	writeJSON(w, http.StatusOK, scanResponse{ScannedAt: time.Now().UTC(), Opportunities: opps})
}

// ListBySport
// GET /api/arbitrage/sports/{sport}?since=...&limit=...
func (h *ArbHandler) ListBySport(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "arbitrage history store not configured")
		return
	}
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sport := r.PathValue("sport")
	opps, err := h.store.ListBySport(r.Context(), sport, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list arbs by sport failed",
			slog.String("sport", sport),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), "failed to list arbitrage opportunities")
		return
	}
	writeJSON(w, http.StatusOK, listArbResponse{Opportunities: opps})
}
