package question

// allowedTransitions is the moderation state machine. DELETED is soft-delete:
// the record stays readable but drops out of default listings and cluster
// aggregates. REJECTED, DELETED, and WITHDRAWN are terminal; APPROVED may
// still be deleted or withdrawn, and merged independently of status.
var allowedTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusDeleted, StatusWithdrawn},
	StatusApproved: {StatusDeleted, StatusWithdrawn},
	StatusRejected: {StatusDeleted},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// checkTransition returns the typed error for an illegal move, nil otherwise.
// A same-status "transition" is also rejected; setStatus is not a touch op.
func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return InvalidTransitionError{From: from, To: to}
	}
	return nil
}
