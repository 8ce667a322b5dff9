package dto

import (
	"time"

	"github.com/iho/txengine/internal/domain"
	"github.com/iho/txengine/internal/usecase"
)

// AccountResponse represents an account in API responses. Balances are
// rendered with domain.AmountPrecision decimal places.
type AccountResponse struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a domain.Account) AccountResponse {
	return AccountResponse{
		Client:    uint16(a.ClientID),
		Available: a.Available.StringFixed(domain.AmountPrecision),
		Held:      a.Held.StringFixed(domain.AmountPrecision),
		Total:     a.Total.StringFixed(domain.AmountPrecision),
		Locked:    a.Locked,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []domain.Account) []AccountResponse {
	result := make([]AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// TransactionResponse reports what happened to a single transaction.
type TransactionResponse struct {
	Outcome     string `json:"outcome"`
	Transaction string `json:"transaction"`
	Error       string `json:"error,omitempty"`
}

// RowErrorResponse is one entry of IngestResponse.Errors.
type RowErrorResponse struct {
	Line        int    `json:"line"`
	Transaction string `json:"transaction,omitempty"`
	Message     string `json:"message"`
}

// IngestResponse summarizes an uploaded batch.
type IngestResponse struct {
	BatchID    string             `json:"batch_id"`
	Read       int                `json:"read"`
	Applied    int                `json:"applied"`
	Ignored    int                `json:"ignored"`
	Rejected   int                `json:"rejected"`
	Malformed  int                `json:"malformed"`
	Errors     []RowErrorResponse `json:"errors,omitempty"`
	Truncated  bool               `json:"truncated,omitempty"`
	Aborted    string             `json:"aborted,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	DurationMS int64              `json:"duration_ms"`
}

// IngestFromReport converts an ingest report to response. abortErr is the
// error that stopped the batch early, if any.
func IngestFromReport(r *usecase.IngestReport, abortErr error) IngestResponse {
	resp := IngestResponse{
		BatchID:    r.BatchID,
		Read:       r.Read,
		Applied:    r.Applied,
		Ignored:    r.Ignored,
		Rejected:   r.Rejected,
		Malformed:  r.Malformed,
		Truncated:  r.Truncated,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
	}
	for _, e := range r.Errors {
		resp.Errors = append(resp.Errors, RowErrorResponse{
			Line:        e.Line,
			Transaction: e.Transaction,
			Message:     e.Message,
		})
	}
	if abortErr != nil {
		resp.Aborted = abortErr.Error()
	}
	return resp
}

// DisputesResponse lists transactions currently under dispute.
type DisputesResponse struct {
	Open []uint32 `json:"open"`
}

// DisputesFromDomain converts transaction ids to response.
func DisputesFromDomain(ids []domain.TransactionID) DisputesResponse {
	open := make([]uint32, len(ids))
	for i, id := range ids {
		open[i] = uint32(id)
	}
	return DisputesResponse{Open: open}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
