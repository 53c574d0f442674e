// Package tasks is the to-do view over a ledger of tasks.
package tasks

import (
	"context"
	"log/slog"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/ledger"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/storage"
)

// Key is the storage key of the task snapshot.
const Key = "tasks"

// Show selects tasks by completion state.
type Show string

const (
	ShowAll       Show = "all"
	ShowActive    Show = "active"
	ShowCompleted Show = "completed"
)

// Validate accepts the three Show values and the empty string.
func (s Show) Validate() error {
	if err := validation.Validate(s, validation.In(ShowAll, ShowActive, ShowCompleted)); err != nil {
		return apperr.Invalid("show", err.Error())
	}
	return nil
}

func (s Show) match(t models.Task) bool {
	switch s {
	case ShowActive:
		return !t.Completed
	case ShowCompleted:
		return t.Completed
	default:
		return true
	}
}

// List holds tasks, newest first.
type List struct {
	*ledger.Ledger[models.Task]
}

// Open loads the task ledger from store.
func Open(ctx context.Context, store storage.Store, logger *slog.Logger, now func() time.Time) *List {
	return &List{ledger.Open[models.Task](ctx, store, Key, ledger.WithLogger(logger), ledger.WithClock(now))}
}

// Select returns the tasks shown under s.
func (l *List) Select(s Show) ([]models.Task, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return slices.Collect(l.Filter(s.match)), nil
}

// Remaining counts tasks not yet completed.
func (l *List) Remaining() int {
	n := 0
	for range l.Filter(ShowActive.match) {
		n++
	}
	return n
}

// SetCompleted marks a task done or not done.
func (l *List) SetCompleted(id models.ID, done bool) (models.Task, error) {
	return l.Update(id, models.TaskPatch{Completed: &done})
}

// ClearCompleted removes every completed task and returns how many went.
func (l *List) ClearCompleted() int {
	return l.RemoveWhere(ShowCompleted.match)
}
