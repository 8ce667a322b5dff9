package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/txengine/internal/adapter/csvio"
	"github.com/iho/txengine/internal/adapter/http/dto"
	"github.com/iho/txengine/internal/domain"
	"github.com/iho/txengine/internal/usecase"
)

// IngestService defines the behavior needed for CSV uploads.
type IngestService interface {
	Ingest(ctx context.Context, source usecase.RecordSource, opts usecase.IngestOptions) (*usecase.IngestReport, error)
}

// TransactionService defines the behavior needed for single transactions.
type TransactionService interface {
	Process(ctx context.Context, tx domain.Transaction) (usecase.Outcome, error)
}

// TransactionHandlerConfig holds TransactionHandler dependencies. Reports is
// optional.
type TransactionHandlerConfig struct {
	Ingest       IngestService
	// Ledger applies single transactions. An IngestUseCase queues them
	// behind running uploads.
	Ledger       TransactionService
	Reports      usecase.ReportStore
	ReportTTL    time.Duration
	MaxBodyBytes int64
	Logger       zerolog.Logger
}

// TransactionHandler handles transaction submission.
type TransactionHandler struct {
	cfg TransactionHandlerConfig
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(cfg TransactionHandlerConfig) *TransactionHandler {
	return &TransactionHandler{cfg: cfg}
}

// Upload applies a CSV batch in order and returns its report. Pass
// ?fail_fast=true to stop at the first record that is not applied cleanly.
func (h *TransactionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if h.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	}

	opts := usecase.IngestOptions{FailFast: parseBoolQuery(r, "fail_fast", false)}
	report, err := h.cfg.Ingest.Ingest(r.Context(), csvio.NewReader(body), opts)

	var (
		recErr   *usecase.RecordError
		tooLarge *http.MaxBytesError
	)
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, csvio.ErrInvalidHeader):
		writeError(w, http.StatusBadRequest, "invalid csv header", err.Error())
		return
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large", err.Error())
		return
	case errors.As(err, &recErr):
		status = http.StatusUnprocessableEntity
	default:
		writeError(w, http.StatusInternalServerError, "failed to ingest transactions", err.Error())
		return
	}

	resp := dto.IngestFromReport(report, err)
	h.saveReport(r.Context(), resp)

	if h.cfg.Reports != nil {
		w.Header().Set("Location", "/api/v1/batches/"+resp.BatchID)
	}
	writeJSON(w, status, resp)
}

// Submit applies one JSON transaction.
func (h *TransactionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	tx, err := req.ToDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction", err.Error())
		return
	}

	outcome, err := h.cfg.Ledger.Process(r.Context(), tx)

	resp := dto.TransactionResponse{Outcome: outcome.String(), Transaction: tx.String()}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = mapDomainError(err)
	}
	writeJSON(w, status, resp)
}

func (h *TransactionHandler) saveReport(ctx context.Context, resp dto.IngestResponse) {
	if h.cfg.Reports == nil {
		return
	}

	payload, err := json.Marshal(resp)
	if err == nil {
		err = h.cfg.Reports.Save(ctx, resp.BatchID, payload, h.cfg.ReportTTL)
	}
	if err != nil {
		h.cfg.Logger.Warn().Err(err).Str("batch_id", resp.BatchID).Msg("failed to store batch report")
	}
}
