// Package ledger keeps an ordered collection of records in memory, mirrors it
// to a storage key and tells observers about every change.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/checksum"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/storage"
)

// Record is anything a ledger can hold.
type Record interface {
	RecordID() models.ID
}

// Validator is implemented by records that can check a copy read back from
// storage. Records that fail are dropped on load.
type Validator interface {
	Validate() error
}

// Draft builds a new record around an id chosen by the ledger.
type Draft[R Record] interface {
	Build(id models.ID, now time.Time) (R, error)
}

// Patch produces the replacement for an existing record. It must keep the id.
type Patch[R Record] interface {
	Apply(cur R, now time.Time) (R, error)
}

// Option configures a Ledger.
type Option func(*options)

type options struct {
	logger *slog.Logger
	now    func() time.Time
	newID  func() (models.ID, error)
}

// WithLogger sets the logger used for load and save problems.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDs replaces the id generator.
func WithIDs(gen func() (models.ID, error)) Option {
	return func(o *options) { o.newID = gen }
}

const maxIDAttempts = 8

// Ledger is safe for concurrent use. Mutations are applied one at a time; the
// newest record comes first.
type Ledger[R Record] struct {
	key    string
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() (models.ID, error)

	mu      sync.RWMutex
	records []R
	lastSum checksum.Digest // fingerprint of the snapshot last loaded or enqueued

	// Changes are queued under mu and delivered by one goroutine at a time,
	// so observers see them in the order they were applied.
	outMu       sync.Mutex
	outbox      []Change[R]
	dispatching bool

	obsMu     sync.Mutex
	observers []observer[R]
	nextObs   int

	persist *persister
}

// Open loads the snapshot stored under key. It never fails: a missing blob
// gives an empty ledger and an unreadable one is logged and ignored.
func Open[R Record](ctx context.Context, store storage.Store, key string, opts ...Option) *Ledger[R] {
	o := options{
		logger: slog.Default(),
		now:    time.Now,
		newID:  models.NewID,
	}
	for _, opt := range opts {
		opt(&o)
	}

	l := &Ledger[R]{
		key:    key,
		store:  store,
		logger: o.logger.With(slog.String("ledger", key)),
		now:    o.now,
		newID:  o.newID,
	}
	if recs, sum, ok := l.read(ctx); ok {
		l.records, l.lastSum = recs, sum
	}
	l.persist = newPersister(store, key, l.storageFailed)
	return l
}

// Key returns the storage key the ledger is mirrored to.
func (l *Ledger[R]) Key() string { return l.key }

// read loads and decodes the stored snapshot. ok is false when the store
// itself could not be read.
func (l *Ledger[R]) read(ctx context.Context) (recs []R, sum checksum.Digest, ok bool) {
	data, err := l.store.Load(ctx, l.key)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, checksum.Digest{}, true
	}
	if err != nil {
		l.logger.Error("ledger: load failed", slog.String("error", err.Error()))
		return nil, checksum.Digest{}, false
	}
	sum = checksum.Sum(data)

	var decoded []R
	if err := json.Unmarshal(data, &decoded); err != nil {
		l.logger.Warn("ledger: discarding unreadable snapshot", slog.String("error", err.Error()))
		return nil, sum, true
	}

	seen := make(map[models.ID]struct{}, len(decoded))
	recs = make([]R, 0, len(decoded))
	for _, r := range decoded {
		id := r.RecordID()
		if _, dup := seen[id]; dup {
			l.logger.Warn("ledger: dropping duplicate id", slog.String("id", id.String()))
			continue
		}
		if v, ok := any(r).(Validator); ok {
			if err := v.Validate(); err != nil {
				l.logger.Warn("ledger: dropping invalid record",
					slog.String("id", id.String()),
					slog.String("error", err.Error()))
				continue
			}
		}
		seen[id] = struct{}{}
		recs = append(recs, r)
	}
	return recs, sum, true
}

// All returns a copy of every record, newest first.
func (l *Ledger[R]) All() []R {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.records)
}

// Len returns the number of records.
func (l *Ledger[R]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Get returns the record with the given id.
func (l *Ledger[R]) Get(id models.ID) (R, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := l.indexLocked(id); i >= 0 {
		return l.records[i], true
	}
	var zero R
	return zero, false
}

// Filter returns the records matching pred in ledger order. The sequence is
// lazy and can be ranged over again; each pass sees the ledger as it is when
// the pass starts. A nil pred matches everything.
func (l *Ledger[R]) Filter(pred func(R) bool) iter.Seq[R] {
	return func(yield func(R) bool) {
		for _, r := range l.All() {
			if pred != nil && !pred(r) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Add builds a record from d with a fresh id and puts it first.
func (l *Ledger[R]) Add(d Draft[R]) (R, error) {
	l.mu.Lock()
	r, err := l.buildLocked(d)
	if err != nil {
		l.mu.Unlock()
		var zero R
		return zero, err
	}
	l.records = slices.Insert(l.records, 0, r)
	l.unlockAndNotify(l.changeLocked(ActionCreated, r.RecordID()))
	return r, nil
}

// Update replaces the record with the given id by p applied to it.
func (l *Ledger[R]) Update(id models.ID, p Patch[R]) (R, error) {
	var zero R
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return zero, apperr.NotFound(l.key, id.String())
	}
	next, err := p.Apply(l.records[i], l.now())
	if err != nil {
		l.mu.Unlock()
		return zero, err
	}
	if next.RecordID() != id {
		l.mu.Unlock()
		return zero, apperr.Invalid("id", "cannot be changed")
	}
	l.records[i] = next
	l.unlockAndNotify(l.changeLocked(ActionUpdated, id))
	return next, nil
}

// Remove deletes the record with the given id. It reports whether anything
// was removed; removing an unknown id is not an error and notifies no one.
func (l *Ledger[R]) Remove(id models.ID) bool {
	return l.removeWithChange(id, ActionDeleted, nil)
}

func (l *Ledger[R]) removeWithChange(id models.ID, action Action, cause error) bool {
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return false
	}
	l.records = slices.Delete(l.records, i, i+1)
	ch := l.changeLocked(action, id)
	ch.Err = cause
	l.unlockAndNotify(ch)
	return true
}

// RemoveWhere deletes every record matching pred and returns how many went.
func (l *Ledger[R]) RemoveWhere(pred func(R) bool) int {
	l.mu.Lock()
	var ids []models.ID
	kept := l.records[:0:0]
	for _, r := range l.records {
		if pred(r) {
			ids = append(ids, r.RecordID())
			continue
		}
		kept = append(kept, r)
	}
	if len(ids) == 0 {
		l.mu.Unlock()
		return 0
	}
	l.records = kept
	l.unlockAndNotify(l.changeLocked(ActionCleared, ids...))
	return len(ids)
}

// Reload re-reads the stored snapshot after an outside edit. It returns false
// when the blob matches what this ledger last wrote or the read failed.
func (l *Ledger[R]) Reload(ctx context.Context) bool {
	l.mu.Lock()
	// Let our own queued writes land first so they are not mistaken for
	// outside edits.
	if err := l.persist.flush(ctx); err != nil {
		l.mu.Unlock()
		l.logger.Warn("ledger: reload skipped, unsaved changes", slog.String("error", err.Error()))
		return false
	}
	recs, sum, ok := l.read(ctx)
	if !ok || sum == l.lastSum {
		l.mu.Unlock()
		return false
	}
	l.records, l.lastSum = recs, sum
	l.logger.Info("ledger: reloaded", slog.Int("records", len(recs)))

	l.unlockAndNotify(Change[R]{Key: l.key, Action: ActionReloaded, Snapshot: slices.Clone(recs)})
	return true
}

// Flush waits for every change made so far to reach storage and returns the
// result of the last write.
func (l *Ledger[R]) Flush(ctx context.Context) error {
	return l.persist.flush(ctx)
}

// Err returns the error of the most recent save, or nil if it succeeded.
func (l *Ledger[R]) Err() error {
	return l.persist.err()
}

// Close writes any pending snapshot and stops the background writer. The
// ledger must not be mutated afterwards.
func (l *Ledger[R]) Close() {
	l.persist.close()
}

func (l *Ledger[R]) indexLocked(id models.ID) int {
	return slices.IndexFunc(l.records, func(r R) bool { return r.RecordID() == id })
}

func (l *Ledger[R]) buildLocked(d Draft[R]) (R, error) {
	var zero R
	for range maxIDAttempts {
		id, err := l.newID()
		if err != nil {
			return zero, err
		}
		if l.indexLocked(id) >= 0 {
			continue
		}
		r, err := d.Build(id, l.now())
		if err != nil {
			return zero, err
		}
		if r.RecordID() != id {
			return zero, fmt.Errorf("ledger %s: draft ignored assigned id", l.key)
		}
		return r, nil
	}
	return zero, fmt.Errorf("ledger %s: no unique id after %d attempts", l.key, maxIDAttempts)
}

// changeLocked enqueues the current snapshot for saving and describes the
// change for observers.
func (l *Ledger[R]) changeLocked(action Action, ids ...models.ID) Change[R] {
	snap := slices.Clone(l.records)
	if snap == nil {
		snap = []R{}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		l.logger.Error("ledger: encode snapshot", slog.String("error", err.Error()))
	} else {
		l.lastSum = checksum.Sum(data)
		l.persist.enqueue(data)
	}
	return Change[R]{Key: l.key, Action: action, IDs: ids, Snapshot: snap}
}

// unlockAndNotify queues ch while mu is still held, releases mu and then
// delivers everything queued.
func (l *Ledger[R]) unlockAndNotify(ch Change[R]) {
	l.outMu.Lock()
	l.outbox = append(l.outbox, ch)
	l.outMu.Unlock()
	l.mu.Unlock()
	l.dispatch()
}

// dispatch delivers queued changes unless another goroutine already is; that
// goroutine then picks up whatever was queued meanwhile.
func (l *Ledger[R]) dispatch() {
	l.outMu.Lock()
	if l.dispatching {
		l.outMu.Unlock()
		return
	}
	l.dispatching = true
	for len(l.outbox) > 0 {
		batch := l.outbox
		l.outbox = nil
		l.outMu.Unlock()
		for _, ch := range batch {
			l.emit(ch)
		}
		l.outMu.Lock()
	}
	l.dispatching = false
	l.outMu.Unlock()
}

func (l *Ledger[R]) storageFailed(err error) {
	l.logger.Error("ledger: save failed", slog.String("error", err.Error()))
	l.outMu.Lock()
	l.outbox = append(l.outbox, Change[R]{Key: l.key, Action: ActionStorageFailed, Err: err})
	l.outMu.Unlock()
	l.dispatch()
}
