package domain

import "time"

// transitions lists the legal outbound moves for each status, independent
// of who is asking. Role permissions are layered on top by the
// authorization gate.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether from -> to is a legal status move
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outbound transitions for any
// caller. Completed is not terminal in this sense: repair and admin may
// still override it with a direct field set.
func (s Status) Terminal() bool {
	return s == StatusCancelled
}

// StatusChange captures the derived fields a status move produces
type StatusChange struct {
	Status         Status
	CompletedAt    *time.Time
	ClearCompleted bool
	CanceledAt     *time.Time
	CanceledReason *string
}

// ApplyStatusChange computes the timestamp side effects of moving the
// assignment to target at the given instant. Legality and role checks must
// already have passed.
//
//   - to completed: completedAt is stamped once and never re-stamped
//   - to cancelled: canceledAt is stamped, completedAt cleared, and the
//     supplied reason recorded
//   - any other move: timestamps untouched
func ApplyStatusChange(a *Assignment, target Status, reason *string, now time.Time) StatusChange {
	change := StatusChange{Status: target}

	switch target {
	case StatusCompleted:
		if a.CompletedAt == nil {
			change.CompletedAt = &now
		} else {
			change.CompletedAt = a.CompletedAt
		}
	case StatusCancelled:
		change.CanceledAt = &now
		change.ClearCompleted = true
		change.CanceledReason = reason
	}

	return change
}
