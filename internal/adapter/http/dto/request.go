package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/txengine/internal/domain"
)

// TransactionRequest is a single transaction record in JSON form.
type TransactionRequest struct {
	Type   string           `json:"type"`
	Client uint16           `json:"client"`
	Tx     uint32           `json:"tx"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// ToDomain converts the request into a validated transaction.
func (r *TransactionRequest) ToDomain() (domain.Transaction, error) {
	kind, err := domain.ParseKind(r.Type)
	if err != nil {
		return domain.Transaction{}, err
	}

	tx := domain.Transaction{
		Kind:     kind,
		ClientID: domain.ClientID(r.Client),
		TxID:     domain.TransactionID(r.Tx),
	}
	if r.Amount != nil {
		tx.Amount = decimal.NewNullDecimal(*r.Amount)
	}

	if err := tx.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}
