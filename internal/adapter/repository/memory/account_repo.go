package memory

import (
	"slices"

	"github.com/iho/txengine/internal/domain"
)

// AccountRepository implements usecase.AccountRepository with a map. It is
// not safe for concurrent use; the ledger use case serializes access.
type AccountRepository struct {
	accounts map[domain.ClientID]*domain.Account
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[domain.ClientID]*domain.Account),
	}
}

// Get returns the account for client.
func (r *AccountRepository) Get(client domain.ClientID) (*domain.Account, bool) {
	acc, ok := r.accounts[client]
	return acc, ok
}

// GetOrCreate returns the account for client, creating it on first use.
func (r *AccountRepository) GetOrCreate(client domain.ClientID) (*domain.Account, bool) {
	if acc, ok := r.accounts[client]; ok {
		return acc, false
	}

	acc := domain.NewAccount(client)
	r.accounts[client] = acc
	return acc, true
}

// List returns all accounts ordered by client id.
func (r *AccountRepository) List() []*domain.Account {
	ids := make([]domain.ClientID, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	result := make([]*domain.Account, len(ids))
	for i, id := range ids {
		result[i] = r.accounts[id]
	}
	return result
}
