package models

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tally/internal/apperr"
)

// Task is a to-do item.
type Task struct {
	ID        ID        `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecordID implements ledger.Record.
func (t Task) RecordID() ID { return t.ID }

// TaskDraft is a task before the ledger has assigned it an id.
type TaskDraft struct {
	Text string `json:"text"`
}

func (d TaskDraft) Build(id ID, now time.Time) (Task, error) {
	text := strings.TrimSpace(d.Text)
	if err := validation.Validate(text, validation.Required); err != nil {
		return Task{}, apperr.Invalid("text", err.Error())
	}
	return Task{ID: id, Text: text, CreatedAt: now}, nil
}

// TaskPatch edits a task's text or completion flag.
type TaskPatch struct {
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

func (p TaskPatch) Apply(cur Task, _ time.Time) (Task, error) {
	next := cur
	if p.Text != nil {
		next.Text = strings.TrimSpace(*p.Text)
		if err := validation.Validate(next.Text, validation.Required); err != nil {
			return Task{}, apperr.Invalid("text", err.Error())
		}
	}
	if p.Completed != nil {
		next.Completed = *p.Completed
	}
	return next, nil
}
