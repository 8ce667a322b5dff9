package domain

import "github.com/shopspring/decimal"

// JournalEntry is the retained copy of a deposit or withdrawal. Later
// dispute, resolve and chargeback records read the amount and owning client
// from here.
type JournalEntry struct {
	TxID     TransactionID
	ClientID ClientID
	Kind     Kind
	Amount   decimal.Decimal
}

// NewJournalEntry builds an entry from a validated deposit or withdrawal.
func NewJournalEntry(t Transaction) (JournalEntry, error) {
	if !t.Kind.EstablishesEntry() {
		return JournalEntry{}, ErrUnknownTransactionKind
	}
	if !t.Amount.Valid {
		return JournalEntry{}, ErrAmountRequired
	}

	return JournalEntry{
		TxID:     t.TxID,
		ClientID: t.ClientID,
		Kind:     t.Kind,
		Amount:   t.Amount.Decimal,
	}, nil
}
