package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get for a position outside the ledger.
	ErrNotFound = errors.New("ledger: record not found")

	// ErrDigestMismatch means a record's content changed after it was created.
	ErrDigestMismatch = errors.New("ledger: digest mismatch")

	// ErrBrokenLink means a record does not point at its predecessor's digest.
	ErrBrokenLink = errors.New("ledger: broken link")

	// ErrEmptyLedger means an imported sequence holds no records at all.
	ErrEmptyLedger = errors.New("ledger: no records")

	// ErrBadGenesis means the first imported record is not at position 0 or
	// does not carry the genesis previous digest.
	ErrBadGenesis = errors.New("ledger: bad genesis record")

	// ErrPositionGap means a record's position is not its predecessor's plus one.
	ErrPositionGap = errors.New("ledger: position gap")

	// ErrClockBeforeEpoch is the panic value when the clock reads before 1970.
	ErrClockBeforeEpoch = errors.New("ledger: clock reads before unix epoch")
)

// IntegrityError reports the first record that failed verification.
type IntegrityError struct {
	Position uint64
	Err      error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%v at position %d", e.Err, e.Position)
}

func (e *IntegrityError) Unwrap() error { return e.Err }
