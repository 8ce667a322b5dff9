package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iho/txengine/internal/adapter/csvio"
	"github.com/iho/txengine/internal/adapter/http/dto"
	"github.com/iho/txengine/internal/domain"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	Snapshot(ctx context.Context) []domain.Account
	GetAccount(ctx context.Context, client domain.ClientID) (domain.Account, error)
	OpenDisputes(ctx context.Context) []domain.TransactionID
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	ledger AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ledger AccountService) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

// List returns every account ordered by client id, as JSON or as the CSV
// report when requested.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts := h.ledger.Snapshot(r.Context())

	if wantsCSV(r) {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		csvio.NewWriter(w).WriteAccounts(accounts)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountsFromDomain(accounts))
}

// Get retrieves an account by client id.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	client, err := strconv.ParseUint(chi.URLParam(r, "client"), 10, 16)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id", err.Error())
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), domain.ClientID(client))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get account", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// Disputes lists transaction ids currently under dispute.
func (h *AccountHandler) Disputes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.DisputesFromDomain(h.ledger.OpenDisputes(r.Context())))
}
