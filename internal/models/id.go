// Package models defines the record kinds kept in ledgers and the inputs used
// to create and change them.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ID identifies a record for its whole lifetime.
type ID string

// NewID returns a time-ordered identifier.
func NewID() (ID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("models: new id: %w", err)
	}
	return ID(u.String()), nil
}

func (id ID) String() string { return string(id) }

// UnmarshalJSON accepts both strings and bare numbers, so snapshots written
// with millisecond-timestamp ids still load.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("models: id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}
