// Package store implements the CSV-backed order and return stores. Rows
// are loaded into memory at open; creates append to the backing file and
// sync it before returning, so a concurrent reader never sees a partial
// record.
package store

import "errors"

// DateLayout is the dd-mm-yyyy layout used across the CSV files.
const DateLayout = "02-01-2006"

var (
	// ErrEmailMismatch signals that an order exists but the supplied
	// email does not match its registered owner. Callers must not leak
	// the order body alongside this error.
	ErrEmailMismatch = errors.New("order found but email mismatch")

	// ErrStorage marks persistence failures; the one error class that is
	// fatal to a turn and surfaces to the transport layer.
	ErrStorage = errors.New("storage failure")
)
