// Package storage persists named snapshot blobs. Every Save replaces the
// whole blob; there are no partial writes and no versions.
package storage

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
)

// ErrNotExist is matched (via errors.Is) by Load errors for absent blobs.
var ErrNotExist = fs.ErrNotExist

// Store is the persistence contract consumed by ledgers.
type Store interface {
	// Load returns the blob saved under key, or an error matching ErrNotExist.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the blob under key.
	Save(ctx context.Context, key string, data []byte) error
}

var keyRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

func checkKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	return nil
}
