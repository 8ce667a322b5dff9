package usecase

import (
	"context"
	"time"

	"github.com/iho/txengine/internal/domain"
)

// AccountRepository stores client accounts. Accounts are never deleted.
type AccountRepository interface {
	Get(client domain.ClientID) (*domain.Account, bool)
	// GetOrCreate returns the account for client, creating an empty one if
	// needed. The bool reports whether it was created.
	GetOrCreate(client domain.ClientID) (*domain.Account, bool)
	// List returns all accounts ordered by client id.
	List() []*domain.Account
}

// JournalRepository is the append-only store of deposits and withdrawals.
type JournalRepository interface {
	// Insert fails with domain.ErrDuplicateTransaction if the id exists.
	Insert(entry domain.JournalEntry) error
	Get(id domain.TransactionID) (domain.JournalEntry, bool)
	Len() int
}

// DisputeRepository tracks the dispute status of journaled transactions.
type DisputeRepository interface {
	// Status returns domain.DisputeStatusClean for unknown ids.
	Status(id domain.TransactionID) domain.DisputeStatus
	// Set records status. Setting clean forgets the id.
	Set(id domain.TransactionID, status domain.DisputeStatus)
	// Open returns the ids currently disputed, in ascending order.
	Open() []domain.TransactionID
}

// RecordSource delivers parsed transactions in arrival order. Next returns
// io.EOF at the end of the stream and a *RecordError for a malformed record
// that can be skipped.
type RecordSource interface {
	Next() (domain.Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release removes a key so the request can be retried.
	Release(ctx context.Context, key string) error
}

// ReportStore keeps rendered ingest reports so they can be fetched by batch
// id after the upload finished.
type ReportStore interface {
	Save(ctx context.Context, batchID string, report []byte, ttl time.Duration) error
	// Get returns domain.ErrBatchNotFound for unknown or expired ids.
	Get(ctx context.Context, batchID string) ([]byte, error)
}
