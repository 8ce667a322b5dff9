package memory

import (
	"slices"

	"github.com/iho/txengine/internal/domain"
)

// DisputeRepository implements usecase.DisputeRepository. Charged back ids
// stay in the map with their terminal status.
type DisputeRepository struct {
	statuses map[domain.TransactionID]domain.DisputeStatus
}

// NewDisputeRepository creates a new DisputeRepository.
func NewDisputeRepository() *DisputeRepository {
	return &DisputeRepository{
		statuses: make(map[domain.TransactionID]domain.DisputeStatus),
	}
}

// Status returns the dispute status of id, clean if it was never disputed.
func (r *DisputeRepository) Status(id domain.TransactionID) domain.DisputeStatus {
	if status, ok := r.statuses[id]; ok {
		return status
	}
	return domain.DisputeStatusClean
}

// Set records status for id.
func (r *DisputeRepository) Set(id domain.TransactionID, status domain.DisputeStatus) {
	if status == domain.DisputeStatusClean {
		delete(r.statuses, id)
		return
	}
	r.statuses[id] = status
}

// Open returns the ids currently disputed in ascending order.
func (r *DisputeRepository) Open() []domain.TransactionID {
	open := make([]domain.TransactionID, 0)
	for id, status := range r.statuses {
		if status == domain.DisputeStatusDisputed {
			open = append(open, id)
		}
	}
	slices.Sort(open)
	return open
}
