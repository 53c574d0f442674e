// Package notes is the note-taking view over a ledger of notes.
package notes

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/starford/tally/internal/ledger"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/storage"
)

// Key is the storage key of the note snapshot.
const Key = "notes"

// Book holds notes, newest first.
type Book struct {
	*ledger.Ledger[models.Note]
}

// Open loads the note ledger from store.
func Open(ctx context.Context, store storage.Store, logger *slog.Logger, now func() time.Time) *Book {
	return &Book{ledger.Open[models.Note](ctx, store, Key, ledger.WithLogger(logger), ledger.WithClock(now))}
}

// Search matches notes whose title or body contains query (case-insensitive)
// and, when tag is set, that carry the tag. Empty arguments match everything.
func (b *Book) Search(query, tag string) []models.Note {
	q := strings.ToLower(strings.TrimSpace(query))
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	return slices.Collect(b.Filter(func(n models.Note) bool {
		if tag != "" && !n.HasTag(tag) {
			return false
		}
		if q == "" {
			return true
		}
		return strings.Contains(strings.ToLower(n.Title), q) ||
			strings.Contains(strings.ToLower(n.Body), q)
	}))
}

// Tags lists every tag in use, sorted.
func (b *Book) Tags() []string {
	var out []string
	for n := range b.Filter(nil) {
		for _, t := range n.Tags {
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
	}
	slices.Sort(out)
	return out
}
