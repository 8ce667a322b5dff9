package domain

// DisputeStatus is the dispute lifecycle state of a journaled transaction.
type DisputeStatus string

const (
	DisputeStatusClean       DisputeStatus = "clean"
	DisputeStatusDisputed    DisputeStatus = "disputed"
	DisputeStatusChargedBack DisputeStatus = "charged_back"
)

// Next returns the status reached by applying kind, or an error when the
// transition is not allowed from s.
//
//	clean    --dispute-->    disputed
//	disputed --resolve-->    clean
//	disputed --chargeback--> charged_back (terminal)
func (s DisputeStatus) Next(kind Kind) (DisputeStatus, error) {
	if s == DisputeStatusChargedBack {
		return s, ErrAlreadyChargedBack
	}

	switch kind {
	case KindDispute:
		if s == DisputeStatusDisputed {
			return s, ErrAlreadyDisputed
		}
		return DisputeStatusDisputed, nil
	case KindResolve:
		if s != DisputeStatusDisputed {
			return s, ErrNotDisputed
		}
		return DisputeStatusClean, nil
	case KindChargeback:
		if s != DisputeStatusDisputed {
			return s, ErrNotDisputed
		}
		return DisputeStatusChargedBack, nil
	default:
		return s, ErrUnknownTransactionKind
	}
}

// CanTransition reports whether kind may be applied from s.
func (s DisputeStatus) CanTransition(kind Kind) bool {
	_, err := s.Next(kind)
	return err == nil
}
