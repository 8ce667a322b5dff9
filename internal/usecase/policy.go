package usecase

// Policy selects optional rules on top of the reference behavior. The zero
// value allows overdrafts, accepts transactions on locked accounts and
// absorbs references to unknown or non-disputed transactions silently.
type Policy struct {
	// Strict surfaces ignored dispute, resolve and chargeback records as
	// *IgnoredError instead of returning nil.
	Strict bool
	// RejectOverdraft refuses withdrawals larger than the available funds.
	RejectOverdraft bool
	// FreezeLocked refuses deposits and withdrawals on locked accounts.
	FreezeLocked bool
}
