package api

import (
	"time"

	"github.com/starford/tally/internal/finance"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/notes"
	"github.com/starford/tally/internal/tasks"
)

// Service bundles the ledgers the API serves.
type Service struct {
	Finance *finance.Tracker
	Notes   *notes.Book
	Tasks   *tasks.List
}

// NoteListItem is a lightweight item in a note listing.
type NoteListItem struct {
	ID        models.ID `json:"id"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func noteListItem(n models.Note) NoteListItem {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return NoteListItem{
		ID:        n.ID,
		Title:     n.Title,
		Excerpt:   n.Excerpt(),
		Tags:      tags,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

// Ready returns the first background save error of any ledger, or nil.
func (s *Service) Ready() error {
	for _, err := range []error{s.Finance.Ledger().Err(), s.Notes.Err(), s.Tasks.Err()} {
		if err != nil {
			return err
		}
	}
	return nil
}
