package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/txengine/internal/domain"
	"github.com/iho/txengine/internal/infrastructure/metrics"
)

// Outcome classifies what Process did with a transaction.
type Outcome int

const (
	// OutcomeApplied means ledger state changed.
	OutcomeApplied Outcome = iota + 1
	// OutcomeIgnored means the record referenced nothing it could act on
	// and was absorbed without mutation.
	OutcomeIgnored
	// OutcomeRejected means the record was refused with an error.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Reasons attached to ignored transactions.
const (
	ReasonUnknownTransaction = "unknown_transaction"
	ReasonClientMismatch     = "client_mismatch"
	ReasonAlreadyDisputed    = "already_disputed"
	ReasonNotDisputed        = "not_disputed"
	ReasonChargedBack        = "charged_back"
)

// IgnoredError describes a dispute, resolve or chargeback that was absorbed
// as a no-op. It is only returned to callers in strict mode.
type IgnoredError struct {
	Transaction domain.Transaction
	Reason      string
	Err         error
}

func (e *IgnoredError) Error() string {
	return fmt.Sprintf("%s ignored (%s): %v", e.Transaction, e.Reason, e.Err)
}

func (e *IgnoredError) Unwrap() error {
	return e.Err
}

// IsIgnored reports whether err is an *IgnoredError.
func IsIgnored(err error) bool {
	var ignored *IgnoredError
	return errors.As(err, &ignored)
}

// Stats counts outcomes since the use case was created.
type Stats struct {
	Applied  int
	Ignored  int
	Rejected int
}

// Option configures a LedgerUseCase.
type Option func(*LedgerUseCase)

// WithPolicy sets the optional rule set.
func WithPolicy(p Policy) Option {
	return func(uc *LedgerUseCase) { uc.policy = p }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(uc *LedgerUseCase) { uc.metrics = m }
}

// WithLogger sets the logger used for ignored and rejected transactions.
func WithLogger(l zerolog.Logger) Option {
	return func(uc *LedgerUseCase) { uc.logger = l }
}

// LedgerUseCase applies transactions to accounts. It exclusively owns the
// account, journal and dispute stores handed to it. Calls are serialized, so
// transactions take effect strictly one at a time.
type LedgerUseCase struct {
	mu       sync.Mutex
	accounts AccountRepository
	journal  JournalRepository
	disputes DisputeRepository
	policy   Policy
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	stats    Stats
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	accounts AccountRepository,
	journal JournalRepository,
	disputes DisputeRepository,
	opts ...Option,
) *LedgerUseCase {
	uc := &LedgerUseCase{
		accounts: accounts,
		journal:  journal,
		disputes: disputes,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Policy returns the active rule set.
func (uc *LedgerUseCase) Policy() Policy {
	return uc.policy
}

// Apply applies one transaction. Ignored records return nil unless the
// policy is strict; rejected records always return an error. No error stops
// the caller from applying later transactions.
func (uc *LedgerUseCase) Apply(ctx context.Context, tx domain.Transaction) error {
	_, err := uc.Process(ctx, tx)
	return err
}

// Process is Apply that also reports the outcome.
func (uc *LedgerUseCase) Process(ctx context.Context, tx domain.Transaction) (Outcome, error) {
	start := time.Now()

	uc.mu.Lock()
	defer uc.mu.Unlock()

	err := uc.apply(tx)

	outcome := OutcomeApplied
	switch {
	case err == nil:
		uc.stats.Applied++
	case IsIgnored(err):
		outcome = OutcomeIgnored
		uc.stats.Ignored++
	default:
		outcome = OutcomeRejected
		uc.stats.Rejected++
	}

	uc.observe(tx, outcome, err, start)

	if outcome == OutcomeIgnored && !uc.policy.Strict {
		return outcome, nil
	}
	if outcome == OutcomeRejected {
		return outcome, fmt.Errorf("%s: %w", tx, err)
	}
	return outcome, err
}

// Snapshot returns copies of all accounts ordered by client id.
func (uc *LedgerUseCase) Snapshot(ctx context.Context) []domain.Account {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	accounts := uc.accounts.List()
	result := make([]domain.Account, len(accounts))
	for i, acc := range accounts {
		result[i] = acc.Snapshot()
	}
	return result
}

// GetAccount returns a copy of one account.
func (uc *LedgerUseCase) GetAccount(ctx context.Context, client domain.ClientID) (domain.Account, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	acc, ok := uc.accounts.Get(client)
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return acc.Snapshot(), nil
}

// OpenDisputes returns the ids currently under dispute.
func (uc *LedgerUseCase) OpenDisputes(ctx context.Context) []domain.TransactionID {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	return uc.disputes.Open()
}

// Stats returns outcome counters.
func (uc *LedgerUseCase) Stats() Stats {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	return uc.stats
}

func (uc *LedgerUseCase) apply(tx domain.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	switch tx.Kind {
	case domain.KindDeposit, domain.KindWithdrawal:
		return uc.applyEntry(tx)
	case domain.KindDispute, domain.KindResolve, domain.KindChargeback:
		return uc.applyDispute(tx)
	default:
		return domain.ErrUnknownTransactionKind
	}
}

// applyEntry handles deposits and withdrawals.
func (uc *LedgerUseCase) applyEntry(tx domain.Transaction) error {
	if _, exists := uc.journal.Get(tx.TxID); exists {
		return domain.ErrDuplicateTransaction
	}

	entry, err := domain.NewJournalEntry(tx)
	if err != nil {
		return err
	}

	// Policy checks run against the would-be account so a refused record
	// does not create one.
	candidate, found := uc.accounts.Get(tx.ClientID)
	if !found {
		candidate = domain.NewAccount(tx.ClientID)
	}
	if uc.policy.FreezeLocked && candidate.Locked {
		return domain.ErrAccountLocked
	}
	if uc.policy.RejectOverdraft && tx.Kind == domain.KindWithdrawal {
		if err := candidate.ValidateDebit(entry.Amount); err != nil {
			return err
		}
	}

	if err := uc.journal.Insert(entry); err != nil {
		return err
	}

	account, created := uc.accounts.GetOrCreate(tx.ClientID)
	if created && uc.metrics != nil {
		uc.metrics.AccountsCreated.Inc()
	}

	if tx.Kind == domain.KindDeposit {
		account.Credit(entry.Amount)
	} else {
		account.Debit(entry.Amount)
	}

	return account.CheckInvariant()
}

// applyDispute handles dispute, resolve and chargeback. The journaled entry
// supplies both the amount and the owning client.
func (uc *LedgerUseCase) applyDispute(tx domain.Transaction) error {
	entry, ok := uc.journal.Get(tx.TxID)
	if !ok {
		return &IgnoredError{Transaction: tx, Reason: ReasonUnknownTransaction, Err: domain.ErrTransactionNotFound}
	}

	if entry.ClientID != tx.ClientID {
		return &IgnoredError{Transaction: tx, Reason: ReasonClientMismatch, Err: domain.ErrClientMismatch}
	}

	next, err := uc.disputes.Status(tx.TxID).Next(tx.Kind)
	if err != nil {
		return &IgnoredError{Transaction: tx, Reason: ignoreReason(err), Err: err}
	}

	account, ok := uc.accounts.Get(entry.ClientID)
	if !ok {
		// Journaling always creates the account, so this is corrupted state.
		return fmt.Errorf("%w: client %d owns journaled tx %d", domain.ErrAccountNotFound, entry.ClientID, entry.TxID)
	}

	switch tx.Kind {
	case domain.KindDispute:
		account.Hold(entry.Amount)
	case domain.KindResolve:
		account.Release(entry.Amount)
	case domain.KindChargeback:
		if !account.Locked && uc.metrics != nil {
			uc.metrics.AccountsLocked.Inc()
		}
		account.Forfeit(entry.Amount)
	}

	uc.disputes.Set(tx.TxID, next)

	if uc.metrics != nil {
		if next == domain.DisputeStatusDisputed {
			uc.metrics.OpenDisputes.Inc()
		} else {
			uc.metrics.OpenDisputes.Dec()
		}
	}

	return account.CheckInvariant()
}

func (uc *LedgerUseCase) observe(tx domain.Transaction, outcome Outcome, err error, start time.Time) {
	switch outcome {
	case OutcomeIgnored:
		var ignored *IgnoredError
		errors.As(err, &ignored)
		uc.logger.Debug().
			Str("type", tx.Kind.String()).
			Uint16("client", uint16(tx.ClientID)).
			Uint32("tx", uint32(tx.TxID)).
			Str("reason", ignored.Reason).
			Msg("transaction ignored")
	case OutcomeRejected:
		uc.logger.Warn().
			Err(err).
			Str("type", tx.Kind.String()).
			Uint16("client", uint16(tx.ClientID)).
			Uint32("tx", uint32(tx.TxID)).
			Msg("transaction rejected")
	}

	if uc.metrics == nil {
		return
	}

	kind := tx.Kind.String()
	switch outcome {
	case OutcomeApplied:
		uc.metrics.TransactionsApplied.WithLabelValues(kind).Inc()
	case OutcomeIgnored:
		var ignored *IgnoredError
		errors.As(err, &ignored)
		uc.metrics.TransactionsIgnored.WithLabelValues(kind, ignored.Reason).Inc()
	case OutcomeRejected:
		uc.metrics.TransactionsRejected.WithLabelValues(kind, rejectReason(err)).Inc()
	}
	uc.metrics.ApplyDuration.Observe(time.Since(start).Seconds())
}

func ignoreReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyDisputed):
		return ReasonAlreadyDisputed
	case errors.Is(err, domain.ErrAlreadyChargedBack):
		return ReasonChargedBack
	default:
		return ReasonNotDisputed
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrDuplicateTransaction):
		return "duplicate"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, domain.ErrUnknownTransactionKind):
		return "unknown_kind"
	case errors.Is(err, domain.ErrAmountRequired),
		errors.Is(err, domain.ErrUnexpectedAmount),
		errors.Is(err, domain.ErrNegativeAmount):
		return "invalid"
	case errors.Is(err, domain.ErrTotalMismatch):
		return "invariant"
	default:
		return "other"
	}
}
