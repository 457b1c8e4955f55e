package models

import "errors"

// ErrNoOp signals that a requested transition is already satisfied by the
// record's current state. Callers treat it as success without writing:
// re-opening the detail form, or finalizing a person a concurrent sweep
// already finalized, must not re-mutate the record.
var ErrNoOp = errors.New("transition is a no-op")
