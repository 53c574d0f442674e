package models

import (
	"encoding/json"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/parser"
)

// Note is a titled free-text record. Tags are derived from the body.
type Note struct {
	ID        ID        `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecordID implements ledger.Record.
func (n Note) RecordID() ID { return n.ID }

// Excerpt is the body shortened for list views.
func (n Note) Excerpt() string { return parser.Excerpt(parser.Inspect(n.Body).Text) }

// UnmarshalJSON also accepts the older "content" field for the body.
func (n *Note) UnmarshalJSON(b []byte) error {
	type plain Note
	var aux struct {
		plain
		Content string `json:"content"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*n = Note(aux.plain)
	if n.Body == "" {
		n.Body = aux.Content
	}
	if n.Tags == nil && n.Body != "" {
		n.Tags = parser.Inspect(n.Body).Tags
	}
	return nil
}

// HasTag reports whether the note carries tag (case-insensitive).
func (n Note) HasTag(tag string) bool {
	tag = strings.ToLower(tag)
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NoteDraft is a note before the ledger has assigned it an id.
type NoteDraft struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (d NoteDraft) Build(id ID, now time.Time) (Note, error) {
	n := Note{
		ID:        id,
		Title:     strings.TrimSpace(d.Title),
		Body:      strings.TrimSpace(d.Body),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := n.validate(); err != nil {
		return Note{}, err
	}
	n.Tags = parser.Inspect(n.Body).Tags
	return n, nil
}

func (n *Note) validate() error {
	return apperr.FromValidation(validation.ValidateStruct(n,
		validation.Field(&n.Title, validation.Required),
	))
}

// NotePatch edits a note; every successful apply refreshes UpdatedAt.
type NotePatch struct {
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
}

func (p NotePatch) Apply(cur Note, now time.Time) (Note, error) {
	next := cur
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
	}
	if p.Body != nil {
		next.Body = strings.TrimSpace(*p.Body)
	}
	if err := next.validate(); err != nil {
		return Note{}, err
	}
	next.Tags = parser.Inspect(next.Body).Tags
	next.UpdatedAt = now
	return next, nil
}
