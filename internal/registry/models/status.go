package models

// Status is the closed set of lifecycle states for a person written into a
// death note. The source of record historically carried free-text status
// strings; modeling them as a closed enum keeps every transition checkable.
type Status string

const (
	// StatusPending is the initial state after registration: the default
	// deadline is ticking and no details have been supplied.
	StatusPending Status = "PENDING"
	// StatusAwaitingDetails means a caller opened the detail form; the
	// deadline is extended while cause and time are being specified.
	StatusAwaitingDetails Status = "AWAITING_DETAILS"
	// StatusScheduledExplicit means a caller supplied a future death time
	// that replaces the default deadline.
	StatusScheduledExplicit Status = "SCHEDULED_EXPLICIT"
	// StatusDeadTimeout is terminal: the scheduler finalized the person
	// because no explicit details arrived before the deadline.
	StatusDeadTimeout Status = "DEAD_TIMEOUT"
	// StatusDeadExplicit is terminal: an explicit death time was reached,
	// immediately or by the scheduler.
	StatusDeadExplicit Status = "DEAD_EXPLICIT"
)

// Terminal reports whether no further transition is defined out of s.
func (s Status) Terminal() bool {
	return s == StatusDeadTimeout || s == StatusDeadExplicit
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAwaitingDetails, StatusScheduledExplicit,
		StatusDeadTimeout, StatusDeadExplicit:
		return true
	}
	return false
}
