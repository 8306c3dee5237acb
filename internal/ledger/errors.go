package ledger

import "errors"

// ErrNotFound is returned when an operation references an unknown id.
// A repeated delete of the same id reports ErrNotFound rather than
// touching any state.
var ErrNotFound = errors.New("not found")
