package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/iho/txengine/internal/adapter/http/dto"
	"github.com/iho/txengine/internal/adapter/repository/memory"
	"github.com/iho/txengine/internal/domain"
	"github.com/iho/txengine/internal/usecase"
	"github.com/iho/txengine/internal/usecase/mocks"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

func newTransactionHandler(t *testing.T, policy usecase.Policy, reports usecase.ReportStore) (*TransactionHandler, *usecase.LedgerUseCase) {
	t.Helper()

	ledger := usecase.NewLedgerUseCase(
		memory.NewAccountRepository(),
		memory.NewJournalRepository(),
		memory.NewDisputeRepository(),
		usecase.WithPolicy(policy),
	)
	ingest := usecase.NewIngestUseCase(ledger, fixedID("batch-1"), nil, zerolog.Nop())

	return NewTransactionHandler(TransactionHandlerConfig{
		Ingest:       ingest,
		Ledger:       ingest,
		Reports:      reports,
		ReportTTL:    time.Hour,
		MaxBodyBytes: 1 << 20,
		Logger:       zerolog.Nop(),
	}), ledger
}

func TestTransactionHandler_Upload(t *testing.T) {
	handler, ledger := newTransactionHandler(t, usecase.Policy{}, nil)

	body := "type, client, tx, amount\n" +
		"deposit, 1, 1, 1.0\n" +
		"deposit, 2, 2, 2.0\n" +
		"deposit, 1, 3, 2.0\n" +
		"withdrawal, 1, 4, 1.5\n" +
		"withdrawal, 2, 5, 3.0\n" +
		"refund, 2, 6, 1.0\n"

	rec := httptest.NewRecorder()
	handler.Upload(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.IngestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.BatchID != "batch-1" || resp.Read != 6 || resp.Applied != 5 || resp.Malformed != 1 {
		t.Fatalf("unexpected report: %+v", resp)
	}
	if rec.Header().Get("Location") != "" {
		t.Fatalf("expected no Location without a report store")
	}

	acc, err := ledger.GetAccount(context.Background(), 2)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc.Available.String() != "-1" {
		t.Fatalf("expected overdraft to be kept, got %s", acc.Available)
	}
}

func TestTransactionHandler_UploadErrors(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		body   string
		status int
	}{
		{
			name:   "invalid header",
			url:    "/api/v1/transactions",
			body:   "what,ever\n1,2\n",
			status: http.StatusBadRequest,
		},
		{
			name:   "fail fast on malformed row",
			url:    "/api/v1/transactions?fail_fast=true",
			body:   "type,client,tx,amount\ndeposit,1,1,1\ndeposit,x,2,1\ndeposit,1,3,1\n",
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "body too large",
			url:    "/api/v1/transactions",
			body:   "type,client,tx,amount\n" + strings.Repeat("deposit,1,1,1\n", 100000),
			status: http.StatusRequestEntityTooLarge,
		},
		{
			name:   "header too large",
			url:    "/api/v1/transactions",
			body:   "type,client,tx," + strings.Repeat("amount", 400000) + "\n",
			status: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newTransactionHandler(t, usecase.Policy{}, nil)

			rec := httptest.NewRecorder()
			handler.Upload(rec, httptest.NewRequest(http.MethodPost, tt.url, strings.NewReader(tt.body)))

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTransactionHandler_UploadStoresReport(t *testing.T) {
	ctrl := gomock.NewController(t)
	reports := mocks.NewMockReportStore(ctrl)

	var stored []byte
	reports.EXPECT().Save(gomock.Any(), "batch-1", gomock.Any(), time.Hour).DoAndReturn(
		func(ctx context.Context, id string, report []byte, ttl time.Duration) error {
			stored = report
			return nil
		})

	handler, _ := newTransactionHandler(t, usecase.Policy{}, reports)

	rec := httptest.NewRecorder()
	handler.Upload(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transactions",
		strings.NewReader("type,client,tx,amount\ndeposit,1,1,1\n")))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/v1/batches/batch-1" {
		t.Fatalf("unexpected Location %q", loc)
	}
	if strings.TrimSpace(rec.Body.String()) != string(stored) {
		t.Fatalf("stored report differs from response:\n%s\n%s", stored, rec.Body.String())
	}
}

func TestTransactionHandler_UploadSurvivesReportStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	reports := mocks.NewMockReportStore(ctrl)
	reports.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	handler, _ := newTransactionHandler(t, usecase.Policy{}, reports)

	rec := httptest.NewRecorder()
	handler.Upload(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transactions",
		strings.NewReader("type,client,tx,amount\ndeposit,1,1,1\n")))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestTransactionHandler_Submit(t *testing.T) {
	tests := []struct {
		name    string
		policy  usecase.Policy
		setup   []string
		body    string
		status  int
		outcome string
	}{
		{
			name:    "deposit",
			body:    `{"type":"deposit","client":1,"tx":1,"amount":"1.5"}`,
			status:  http.StatusOK,
			outcome: "applied",
		},
		{
			name:    "unknown dispute is ignored",
			body:    `{"type":"dispute","client":1,"tx":9}`,
			status:  http.StatusOK,
			outcome: "ignored",
		},
		{
			name:    "unknown dispute in strict mode",
			policy:  usecase.Policy{Strict: true},
			body:    `{"type":"dispute","client":1,"tx":9}`,
			status:  http.StatusNotFound,
			outcome: "ignored",
		},
		{
			name:    "duplicate id",
			setup:   []string{`{"type":"deposit","client":1,"tx":1,"amount":"1"}`},
			body:    `{"type":"deposit","client":1,"tx":1,"amount":"1"}`,
			status:  http.StatusConflict,
			outcome: "rejected",
		},
		{
			name:    "overdraft rejected by policy",
			policy:  usecase.Policy{RejectOverdraft: true},
			body:    `{"type":"withdrawal","client":1,"tx":1,"amount":"1"}`,
			status:  http.StatusUnprocessableEntity,
			outcome: "rejected",
		},
		{
			name:   "missing amount",
			body:   `{"type":"deposit","client":1,"tx":1}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "malformed json",
			body:   `{"type":`,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newTransactionHandler(t, tt.policy, nil)

			for _, body := range tt.setup {
				handler.Submit(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
			}

			rec := httptest.NewRecorder()
			handler.Submit(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transactions/single", strings.NewReader(tt.body)))

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if tt.outcome == "" {
				return
			}

			var resp dto.TransactionResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Outcome != tt.outcome {
				t.Fatalf("expected outcome %s, got %+v", tt.outcome, resp)
			}
		})
	}
}

func TestBatchHandler_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	reports := mocks.NewMockReportStore(ctrl)
	reports.EXPECT().Get(gomock.Any(), "b1").Return([]byte(`{"batch_id":"b1"}`), nil)
	reports.EXPECT().Get(gomock.Any(), "gone").Return(nil, domain.ErrBatchNotFound)

	handler := NewBatchHandler(reports)

	rec := httptest.NewRecorder()
	handler.Get(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/batches/b1", nil), "id", "b1"))
	if rec.Code != http.StatusOK || rec.Body.String() != `{"batch_id":"b1"}` {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.Get(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/batches/gone", nil), "id", "gone"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
