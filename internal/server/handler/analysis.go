package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// AnalysisHandler serves stored analysis runs and their archived reports.
// Either dependency may be nil.
type AnalysisHandler struct {
	store   domain.AnalysisStore
	archive domain.BlobReader
	logger  *slog.Logger
}

// NewAnalysisHandler creates an AnalysisHandler.
func NewAnalysisHandler(store domain.AnalysisStore, archive domain.BlobReader, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{store: store, archive: archive, logger: logger}
}

// Get
// GET /api/analysis/{id}
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "analysis store not configured")
		return
	}
	res, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.ErrorContext(r.Context(), "handler: get analysis failed", slog.String("error", err.Error()))
		}
		writeError(w, statusFor(err), "analysis not available")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListByEvent
// GET /api/events/{id}/analyses
func (h *AnalysisHandler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "analysis store not configured")
		return
	}
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := h.store.ListByEvent(r.Context(), r.PathValue("id"), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list analyses failed", slog.String("error", err.Error()))
		writeError(w, statusFor(err), "failed to list analyses")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": runs})
}

// ListArchive lists archived objects under prefix, which must start with
// "analysis/" or "scans/".
// GET /api/archive?prefix=scans/2026/01/
func (h *AnalysisHandler) ListArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotImplemented, "archive not configured")
		return
	}
	prefix := r.URL.Query().Get("prefix")
	if !archivePath(prefix) {
		writeError(w, http.StatusBadRequest, "prefix must start with analysis/ or scans/")
		return
	}
	infos, err := h.archive.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archive failed", slog.String("error", err.Error()))
		writeError(w, statusFor(err), "failed to list archive")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": infos})
}

// GetArchived streams one archived object.
// GET /api/archive/object?path=analysis/2026/01/02/ev/run.json
func (h *AnalysisHandler) GetArchived(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotImplemented, "archive not configured")
		return
	}
	path := r.URL.Query().Get("path")
	if !archivePath(path) || strings.Contains(path, "..") {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	body, err := h.archive.Get(r.Context(), path)
	if err != nil {
		writeError(w, statusFor(err), "object not available")
		return
	}
	defer body.Close()

	ct := "application/json"
	if strings.HasSuffix(path, ".jsonl") {
		ct = "application/x-ndjson"
	}
	w.Header().Set("Content-Type", ct)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: stream archive object failed", slog.String("error", err.Error()))
	}
}

func archivePath(p string) bool {
	return strings.HasPrefix(p, "analysis/") || strings.HasPrefix(p, "scans/")
}
