package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Record is a single immutable entry in the ledger.
type Record struct {
	Position       uint64 `json:"position"`
	CreatedAt      int64  `json:"created_at"` // unix seconds
	Payload        string `json:"payload"` // valid UTF-8 when built by New or Append
	PreviousDigest string `json:"previous_digest"`
	Digest         string `json:"digest"`
}

// Clock returns the current time. It is read exactly once per Record.
type Clock func() time.Time

// SystemClock is the default Clock.
func SystemClock() time.Time { return time.Now() }

// NewRecord creates a Record stamped with the current system time. Invalid
// UTF-8 in payload is replaced with U+FFFD before the digest is computed.
func NewRecord(position uint64, payload, previousDigest string) Record {
	return newRecord(SystemClock, position, payload, previousDigest)
}

// NewRecordAt creates a Record with an explicit creation time.
func NewRecordAt(position uint64, createdAt int64, payload, previousDigest string) Record {
	r := Record{
		Position:       position,
		CreatedAt:      createdAt,
		Payload:        payload,
		PreviousDigest: previousDigest,
	}
	r.Digest = r.ComputeDigest()
	return r
}

func newRecord(clock Clock, position uint64, payload, previousDigest string) Record {
	return NewRecordAt(position, unixSeconds(clock), scrubPayload(payload), previousDigest)
}

// scrubPayload replaces every byte of s that is not part of a valid UTF-8
// sequence with U+FFFD, one per byte, as encoding/json does when it encodes s.
// A record exported as JSON and read back then keeps its digest.
func scrubPayload(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

// unixSeconds reads clock once. A time before the unix epoch cannot be
// represented as a creation time and is treated as fatal.
func unixSeconds(clock Clock) int64 {
	now := clock()
	if now.Before(time.Unix(0, 0)) {
		panic(fmt.Errorf("%w: %s", ErrClockBeforeEpoch, now.UTC().Format(time.RFC3339)))
	}
	return now.Unix()
}

// ComputeDigest returns the lowercase hex SHA-256 of position, creation time,
// payload and previous digest, concatenated in that order without separators.
// It does not modify r.
func (r Record) ComputeDigest() string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatUint(r.Position, 10)))
	h.Write([]byte(strconv.FormatInt(r.CreatedAt, 10)))
	h.Write([]byte(r.Payload))
	h.Write([]byte(r.PreviousDigest))
	return hex.EncodeToString(h.Sum(nil))
}

// String renders every field of r for debugging.
func (r Record) String() string {
	return fmt.Sprintf("Record { position: %d, created_at: %d, payload: %q, previous_digest: %q, digest: %q }",
		r.Position, r.CreatedAt, r.Payload, r.PreviousDigest, r.Digest)
}
