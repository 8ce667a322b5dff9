package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/txengine/internal/usecase"
)

// BatchHandler serves stored ingest reports.
type BatchHandler struct {
	reports usecase.ReportStore
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(reports usecase.ReportStore) *BatchHandler {
	return &BatchHandler{reports: reports}
}

// Get returns the report of a previous upload.
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing batch ID", "")
		return
	}

	report, err := h.reports.Get(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get batch report", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(report)
}
