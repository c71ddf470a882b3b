// Package ledger implements a hash-linked, append-only ledger.
//
// The chain begins with a genesis Record at position 0 whose PreviousDigest is
// the sentinel GenesisPreviousDigest ("0"). Every subsequent Record stores the
// SHA-256 digest of its predecessor, so altering a payload, a digest or a link
// anywhere in the chain is detectable via Verify.
//
// Records are held in memory only. A Ledger serialises Append with a single
// writer lock; reads and verification share a read lock.
package ledger
