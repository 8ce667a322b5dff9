package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountPrecision is the number of decimal places balances are reported with.
const AmountPrecision = 4

// Account holds the balances of one client.
type Account struct {
	ClientID  ClientID
	Available decimal.Decimal
	Held      decimal.Decimal
	Total     decimal.Decimal
	Locked    bool
}

// NewAccount returns an empty, unlocked account.
func NewAccount(client ClientID) *Account {
	return &Account{
		ClientID:  client,
		Available: decimal.Zero,
		Held:      decimal.Zero,
		Total:     decimal.Zero,
	}
}

// Credit applies a deposit.
func (a *Account) Credit(amount decimal.Decimal) {
	a.Available = a.Available.Add(amount)
	a.recalculate()
}

// Debit applies a withdrawal. Available may go negative; callers that want a
// sufficiency check use ValidateDebit first.
func (a *Account) Debit(amount decimal.Decimal) {
	a.Available = a.Available.Sub(amount)
	a.recalculate()
}

// Hold moves amount from available to held. Total is unchanged.
func (a *Account) Hold(amount decimal.Decimal) {
	a.Held = a.Held.Add(amount)
	a.Available = a.Available.Sub(amount)
	a.recalculate()
}

// Release moves amount from held back to available.
func (a *Account) Release(amount decimal.Decimal) {
	a.Held = a.Held.Sub(amount)
	a.Available = a.Available.Add(amount)
	a.recalculate()
}

// Forfeit removes held funds permanently and locks the account.
func (a *Account) Forfeit(amount decimal.Decimal) {
	a.Held = a.Held.Sub(amount)
	a.Locked = true
	a.recalculate()
}

// ValidateDebit checks if available funds cover amount.
func (a *Account) ValidateDebit(amount decimal.Decimal) error {
	if a.Available.LessThan(amount) {
		return fmt.Errorf("%w: available %s, requested %s", ErrInsufficientFunds, a.Available, amount)
	}
	return nil
}

// CheckInvariant verifies total == available + held.
func (a *Account) CheckInvariant() error {
	if !a.Total.Equal(a.Available.Add(a.Held)) {
		return fmt.Errorf("%w: client %d total=%s available=%s held=%s",
			ErrTotalMismatch, a.ClientID, a.Total, a.Available, a.Held)
	}
	return nil
}

// Snapshot returns a copy safe to hand out to readers.
func (a *Account) Snapshot() Account {
	return *a
}

func (a *Account) recalculate() {
	a.Total = a.Available.Add(a.Held)
}
