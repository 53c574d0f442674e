// Package checksum fingerprints snapshot blobs so a ledger can tell its own
// writes from outside edits.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is a SHA-256 fingerprint. The zero Digest means "nothing seen".
type Digest [sha256.Size]byte

// Sum fingerprints data.
func Sum(data []byte) Digest {
	return sha256.Sum256(data)
}

// IsZero reports whether d was never set.
func (d Digest) IsZero() bool { return d == Digest{} }

func (d Digest) String() string { return hex.EncodeToString(d[:]) }
