package dto

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/txengine/internal/domain"
	"github.com/iho/txengine/internal/usecase"
)

func TestAccountFromDomain(t *testing.T) {
	account := domain.Account{
		ClientID:  7,
		Available: decimal.RequireFromString("1.12345"),
		Held:      decimal.RequireFromString("2"),
		Total:     decimal.RequireFromString("3.12345"),
		Locked:    true,
	}

	resp := AccountFromDomain(account)
	want := AccountResponse{Client: 7, Available: "1.1235", Held: "2.0000", Total: "3.1235", Locked: true}
	if resp != want {
		t.Fatalf("unexpected account response: %+v", resp)
	}

	list := AccountsFromDomain([]domain.Account{account, account})
	if len(list) != 2 || list[1] != want {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestIngestFromReport(t *testing.T) {
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	report := &usecase.IngestReport{
		BatchID:   "01HBATCH",
		Read:      3,
		Applied:   1,
		Rejected:  1,
		Malformed: 1,
		Errors: []usecase.RowError{
			{Line: 2, Message: "bad row"},
			{Line: 3, Transaction: "deposit client=1 tx=1 amount=1", Message: "duplicate"},
		},
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
	}

	resp := IngestFromReport(report, errors.New("stopped"))
	if resp.BatchID != "01HBATCH" || resp.Read != 3 || resp.Applied != 1 || resp.Malformed != 1 {
		t.Fatalf("unexpected counts: %+v", resp)
	}
	if len(resp.Errors) != 2 || resp.Errors[1].Transaction == "" {
		t.Fatalf("unexpected errors: %+v", resp.Errors)
	}
	if resp.DurationMS != 1500 || !resp.StartedAt.Equal(started) {
		t.Fatalf("unexpected timing: %+v", resp)
	}
	if resp.Aborted != "stopped" {
		t.Fatalf("expected abort reason, got %q", resp.Aborted)
	}
}

func TestDisputesFromDomain(t *testing.T) {
	resp := DisputesFromDomain([]domain.TransactionID{3, 9})
	if len(resp.Open) != 2 || resp.Open[0] != 3 || resp.Open[1] != 9 {
		t.Fatalf("unexpected disputes: %+v", resp)
	}

	if empty := DisputesFromDomain(nil); empty.Open == nil {
		t.Fatalf("expected empty list, not null")
	}
}
