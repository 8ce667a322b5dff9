package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ClientID identifies a client account.
type ClientID uint16

// TransactionID identifies a deposit or withdrawal. Dispute, resolve and
// chargeback records carry the id of the transaction they refer to.
type TransactionID uint32

// Kind is the type of a transaction record.
type Kind uint8

const (
	KindDeposit Kind = iota + 1
	KindWithdrawal
	KindDispute
	KindResolve
	KindChargeback
)

var kindNames = map[Kind]string{
	KindDeposit:    "deposit",
	KindWithdrawal: "withdrawal",
	KindDispute:    "dispute",
	KindResolve:    "resolve",
	KindChargeback: "chargeback",
}

// Kinds lists every transaction kind in wire order.
var Kinds = []Kind{KindDeposit, KindWithdrawal, KindDispute, KindResolve, KindChargeback}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// EstablishesEntry reports whether records of this kind create a journal entry.
func (k Kind) EstablishesEntry() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// ParseKind parses a wire name such as "deposit". Matching ignores case and
// surrounding whitespace.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTransactionKind, s)
}

// Transaction is one input event.
type Transaction struct {
	Kind     Kind
	ClientID ClientID
	TxID     TransactionID
	Amount   decimal.NullDecimal
}

func NewDeposit(client ClientID, tx TransactionID, amount decimal.Decimal) Transaction {
	return Transaction{Kind: KindDeposit, ClientID: client, TxID: tx, Amount: decimal.NewNullDecimal(amount)}
}

func NewWithdrawal(client ClientID, tx TransactionID, amount decimal.Decimal) Transaction {
	return Transaction{Kind: KindWithdrawal, ClientID: client, TxID: tx, Amount: decimal.NewNullDecimal(amount)}
}

func NewDispute(client ClientID, tx TransactionID) Transaction {
	return Transaction{Kind: KindDispute, ClientID: client, TxID: tx}
}

func NewResolve(client ClientID, tx TransactionID) Transaction {
	return Transaction{Kind: KindResolve, ClientID: client, TxID: tx}
}

func NewChargeback(client ClientID, tx TransactionID) Transaction {
	return Transaction{Kind: KindChargeback, ClientID: client, TxID: tx}
}

// Validate checks that the amount is present exactly for deposits and
// withdrawals and that it is not negative.
func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownTransactionKind, t.Kind)
	}

	if t.Kind.EstablishesEntry() {
		if !t.Amount.Valid {
			return ErrAmountRequired
		}
		if t.Amount.Decimal.IsNegative() {
			return ErrNegativeAmount
		}
		return checkAmountBounds(t.Amount.Decimal)
	}

	if t.Amount.Valid {
		return ErrUnexpectedAmount
	}
	return nil
}

// Amount bounds. Balances are rescaled on every mutation, so an amount with a
// huge exponent would make each later operation on its account arbitrarily
// slow.
const (
	MaxAmountScale         = 18
	MaxAmountIntegerDigits = 28
)

func checkAmountBounds(amount decimal.Decimal) error {
	exp := amount.Exponent()
	if exp < -MaxAmountScale {
		return fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, MaxAmountScale)
	}
	if int64(amount.NumDigits())+int64(exp) > MaxAmountIntegerDigits {
		return fmt.Errorf("%w: more than %d integer digits", ErrInvalidAmount, MaxAmountIntegerDigits)
	}
	return nil
}

func (t Transaction) String() string {
	if t.Amount.Valid {
		return fmt.Sprintf("%s client=%d tx=%d amount=%s", t.Kind, t.ClientID, t.TxID, t.Amount.Decimal)
	}
	return fmt.Sprintf("%s client=%d tx=%d", t.Kind, t.ClientID, t.TxID)
}
