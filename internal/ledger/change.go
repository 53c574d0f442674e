package ledger

import "github.com/starford/tally/internal/models"

// Action names what happened to a ledger.
type Action string

const (
	ActionCreated       Action = "created"
	ActionUpdated       Action = "updated"
	ActionDeleted       Action = "deleted"
	ActionCleared       Action = "cleared"
	ActionReloaded      Action = "reloaded"
	ActionCompensated   Action = "compensated"
	ActionStorageFailed Action = "storage_failed"
)

// Change is delivered to observers after every successful mutation, and when
// a background save fails.
type Change[R Record] struct {
	Key    string
	Action Action
	// IDs are the records the action touched; empty for reloads and
	// storage failures.
	IDs []models.ID
	// Snapshot is a private copy of the whole collection after the change.
	// It is nil for storage failures.
	Snapshot []R
	// Tentative marks a record applied by AddTentative and not yet confirmed.
	Tentative bool
	// Err carries the storage error or the reason a tentative add was
	// compensated.
	Err error
}

type observer[R Record] struct {
	id int
	fn func(Change[R])
}

// Subscribe registers fn for change notifications and returns a function that
// removes it. Observers are called one at a time, in mutation order, before
// the mutating call returns unless another delivery is already under way.
// They may read the ledger. A mutation made from inside an observer is
// delivered after the current one finishes.
func (l *Ledger[R]) Subscribe(fn func(Change[R])) (cancel func()) {
	l.obsMu.Lock()
	l.nextObs++
	id := l.nextObs
	l.observers = append(l.observers, observer[R]{id: id, fn: fn})
	l.obsMu.Unlock()

	return func() {
		l.obsMu.Lock()
		defer l.obsMu.Unlock()
		for i, o := range l.observers {
			if o.id == id {
				l.observers = append(l.observers[:i], l.observers[i+1:]...)
				return
			}
		}
	}
}

func (l *Ledger[R]) emit(ch Change[R]) {
	l.obsMu.Lock()
	obs := make([]observer[R], len(l.observers))
	copy(obs, l.observers)
	l.obsMu.Unlock()

	for _, o := range obs {
		o.fn(ch)
	}
}
