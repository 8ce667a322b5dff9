package memory

import (
	"github.com/iho/txengine/internal/domain"
)

// JournalRepository implements usecase.JournalRepository. Entries are never
// removed.
type JournalRepository struct {
	entries map[domain.TransactionID]domain.JournalEntry
}

// NewJournalRepository creates a new JournalRepository.
func NewJournalRepository() *JournalRepository {
	return &JournalRepository{
		entries: make(map[domain.TransactionID]domain.JournalEntry),
	}
}

// Insert adds entry, refusing ids that are already journaled.
func (r *JournalRepository) Insert(entry domain.JournalEntry) error {
	if _, exists := r.entries[entry.TxID]; exists {
		return domain.ErrDuplicateTransaction
	}
	r.entries[entry.TxID] = entry
	return nil
}

// Get returns the entry for id.
func (r *JournalRepository) Get(id domain.TransactionID) (domain.JournalEntry, bool) {
	entry, ok := r.entries[id]
	return entry, ok
}

// Len returns the number of journaled transactions.
func (r *JournalRepository) Len() int {
	return len(r.entries)
}
