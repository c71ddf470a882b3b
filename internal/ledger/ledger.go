package ledger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	// GenesisPayload is the payload of the record at position 0.
	GenesisPayload = "Genesis Block"

	// GenesisPreviousDigest is the sentinel previous digest of the genesis record.
	GenesisPreviousDigest = "0"
)

// Ledger is an in-memory, append-only sequence of hash-linked Records.
// The zero value holds no records and must not be appended to; use New.
type Ledger struct {
	mu      sync.RWMutex
	records []Record
	clock   Clock
	logger  *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the time source used to stamp new records.
func WithClock(clock Clock) Option {
	return func(l *Ledger) { l.clock = clock }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a Ledger holding only the genesis record.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		clock:  SystemClock,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	genesis := newRecord(l.clock, 0, GenesisPayload, GenesisPreviousDigest)
	l.records = append(l.records, genesis)
	return l
}

// Append chains a new record carrying payload onto the tip and returns a copy of it.
// It panics if the ledger has no records, which only happens for a Ledger not
// created by New.
func (l *Ledger) Append(payload string) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.records) == 0 {
		panic("ledger: append on empty ledger")
	}
	tip := &l.records[len(l.records)-1]

	rec := newRecord(l.clock, tip.Position+1, payload, tip.Digest)
	l.records = append(l.records, rec)

	l.logger.Debug("record appended",
		zap.Uint64("position", rec.Position),
		zap.String("digest", rec.Digest),
	)
	return rec
}

// Len returns the number of records, genesis included.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Get returns a copy of the record at position.
func (l *Ledger) Get(position uint64) (Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if position >= uint64(len(l.records)) {
		return Record{}, fmt.Errorf("get position %d: %w", position, ErrNotFound)
	}
	return l.records[position], nil
}

// Tip returns a copy of the most recent record.
func (l *Ledger) Tip() Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.records) == 0 {
		return Record{}
	}
	return l.records[len(l.records)-1]
}

// Root returns the digest of the most recent record.
func (l *Ledger) Root() string {
	return l.Tip().Digest
}

// Records returns a copy of every record in chain order.
func (l *Ledger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Verify walks the chain from position 1 and returns the first integrity
// failure as an *IntegrityError, or nil if the chain is intact.
func (l *Ledger) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return VerifyRecords(l.records)
}

// IsValid reports whether Verify finds no failure.
func (l *Ledger) IsValid() bool {
	return l.Verify() == nil
}

// VerifyRecords checks a detached sequence of records. For each index it
// checks the record's own digest before its link to the predecessor.
// The genesis record is not checked; a sequence of zero or one records is valid.
func VerifyRecords(records []Record) error {
	for i := 1; i < len(records); i++ {
		if err := verifyAt(records, i); err != nil {
			return err
		}
	}
	return nil
}

// AuditRecords checks records that did not come from New, such as an export
// read back from disk or fetched from a server. On top of VerifyRecords it
// requires a non-empty sequence, a genesis record at position 0 with the
// genesis previous digest, and positions that increase by exactly one.
func AuditRecords(records []Record) error {
	if len(records) == 0 {
		return &IntegrityError{Position: 0, Err: ErrEmptyLedger}
	}
	if g := records[0]; g.Position != 0 || g.PreviousDigest != GenesisPreviousDigest {
		return &IntegrityError{Position: 0, Err: ErrBadGenesis}
	}
	for i := 1; i < len(records); i++ {
		if records[i].Position != records[i-1].Position+1 {
			return &IntegrityError{Position: uint64(i), Err: ErrPositionGap}
		}
		if err := verifyAt(records, i); err != nil {
			return err
		}
	}
	return nil
}

// verifyAt checks content, then link, of records[i]. i must be at least 1.
func verifyAt(records []Record, i int) error {
	curr := &records[i]
	prev := &records[i-1]

	if curr.Digest != curr.ComputeDigest() {
		return &IntegrityError{Position: uint64(i), Err: ErrDigestMismatch}
	}
	if curr.PreviousDigest != prev.Digest {
		return &IntegrityError{Position: uint64(i), Err: ErrBrokenLink}
	}
	return nil
}

// String renders the whole ledger for debugging, one record per line.
func (l *Ledger) String() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var b strings.Builder
	b.WriteString("Ledger { records: [\n")
	for _, r := range l.records {
		b.WriteString("    ")
		b.WriteString(r.String())
		b.WriteString(",\n")
	}
	b.WriteString("] }")
	return b.String()
}
