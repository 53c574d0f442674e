// Package finance turns a ledger of transactions into a monthly finance
// tracker: totals, trends against last month, a budget and the month
// rollover.
package finance

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/ledger"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/storage"
)

const (
	TransactionsKey = "transactions"
	SettingsKey     = "finance-settings"
)

// ActionBudgetUpdated marks an Update caused by a settings change rather
// than a ledger mutation.
const ActionBudgetUpdated ledger.Action = "budget_updated"

// DefaultCategories are offered while no transaction has a category.
var DefaultCategories = []string{"food", "shopping", "bills", "transportation", "entertainment"}

// Update is delivered to tracker subscribers after every change.
type Update struct {
	Change  ledger.Change[models.Transaction]
	Summary Summary
}

// Option configures a Tracker.
type Option func(*Tracker)

func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithDefaultCategories replaces DefaultCategories.
func WithDefaultCategories(c []string) Option {
	return func(t *Tracker) { t.defaults = c }
}

// Tracker is safe for concurrent use.
type Tracker struct {
	ledger   *ledger.Ledger[models.Transaction]
	store    storage.Store
	logger   *slog.Logger
	now      func() time.Time
	defaults []string

	mu       sync.RWMutex
	settings models.FinanceSettings

	rollMu sync.Mutex

	subMu   sync.Mutex
	subs    map[int]func(Update)
	nextSub int
}

// Open loads the transaction ledger and the settings blob from store. Like
// ledger.Open it never fails; unreadable settings fall back to zero values.
func Open(ctx context.Context, store storage.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
		defaults: DefaultCategories,
		subs:     make(map[int]func(Update)),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.ledger = ledger.Open[models.Transaction](ctx, store, TransactionsKey,
		ledger.WithLogger(t.logger), ledger.WithClock(t.now))
	t.settings = t.loadSettings(ctx)
	t.ledger.Subscribe(t.onChange)
	return t
}

func (t *Tracker) loadSettings(ctx context.Context) models.FinanceSettings {
	var s models.FinanceSettings
	data, err := t.store.Load(ctx, SettingsKey)
	if errors.Is(err, storage.ErrNotExist) {
		return s
	}
	if err != nil {
		t.logger.Error("finance: load settings", slog.String("error", err.Error()))
		return s
	}
	if err := json.Unmarshal(data, &s); err != nil {
		t.logger.Warn("finance: discarding unreadable settings", slog.String("error", err.Error()))
		return models.FinanceSettings{}
	}
	return s
}

func (t *Tracker) saveSettings(ctx context.Context, s models.FinanceSettings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := t.store.Save(ctx, SettingsKey, data); err != nil {
		t.logger.Error("finance: save settings", slog.String("error", err.Error()))
		return &apperr.StorageError{Op: "save", Key: SettingsKey, Err: err}
	}
	return nil
}

// Ledger exposes the underlying transaction ledger.
func (t *Tracker) Ledger() *ledger.Ledger[models.Transaction] { return t.ledger }

// Add records a transaction without waiting for it to be saved.
func (t *Tracker) Add(d models.TransactionDraft) (models.Transaction, error) {
	return t.ledger.Add(d)
}

// AddConfirmed shows the transaction right away and commits it unless ctx
// ends first, in which case it is withdrawn and ctx's error returned. It does
// not wait for the save: a failed save leaves the transaction in place and is
// reported through Ledger().Err() and a storage_failed change.
func (t *Tracker) AddConfirmed(ctx context.Context, d models.TransactionDraft) (models.Transaction, error) {
	p, err := t.ledger.AddTentative(ctx, d, func(ctx context.Context, _ models.Transaction) error {
		return ctx.Err()
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return p.Wait(context.WithoutCancel(ctx))
}

func (t *Tracker) Update(id models.ID, p models.TransactionPatch) (models.Transaction, error) {
	return t.ledger.Update(id, p)
}

func (t *Tracker) Remove(id models.ID) bool { return t.ledger.Remove(id) }

func (t *Tracker) Get(id models.ID) (models.Transaction, bool) { return t.ledger.Get(id) }

// List returns the transactions selected by q.
func (t *Tracker) List(q Query) ([]models.Transaction, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	txs := slices.Collect(t.ledger.Filter(q.Match))
	q.order(txs)
	return txs, nil
}

// Totals aggregates every transaction in the ledger.
func (t *Tracker) Totals() Totals {
	return Summarize(t.ledger.Filter(nil))
}

// Summary reports totals, trends and budget usage.
func (t *Tracker) Summary() Summary {
	return summarize(t.ledger.Filter(nil), t.Settings())
}

// Settings returns a copy of the finance settings.
func (t *Tracker) Settings() models.FinanceSettings {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.settings
}

// SetBudget changes the monthly budget. The new value is kept in memory even
// if saving it fails.
func (t *Tracker) SetBudget(ctx context.Context, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperr.Invalid("monthlyBudget", "must not be negative")
	}
	t.mu.Lock()
	t.settings.MonthlyBudget = amount
	s := t.settings
	t.mu.Unlock()

	err := t.saveSettings(ctx, s)
	t.publish(Update{
		Change:  ledger.Change[models.Transaction]{Key: SettingsKey, Action: ActionBudgetUpdated, Err: err},
		Summary: t.Summary(),
	})
	return err
}

// Categories lists the distinct categories in use, sorted, or the defaults
// when there are none.
func (t *Tracker) Categories() []string {
	seen := make(map[string]struct{})
	for tx := range t.ledger.Filter(nil) {
		if c := strings.TrimSpace(tx.Category); c != "" {
			seen[c] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return slices.Clone(t.defaults)
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CheckNewMonth starts a new month when the last access was in a different
// calendar month than now: the current totals become last month's and every
// transaction is discarded. It always records now as the last access and
// reports whether a rollover happened.
func (t *Tracker) CheckNewMonth(ctx context.Context, now time.Time) (bool, error) {
	t.rollMu.Lock()
	defer t.rollMu.Unlock()

	t.mu.Lock()
	last := t.settings.LastAccess
	rolled := !last.IsZero() && !sameMonth(last.In(now.Location()), now)
	t.settings.LastAccess = now
	t.mu.Unlock()

	if rolled {
		// Last month is what was actually discarded, so an add racing the
		// rollover is either counted here or kept for the new month.
		var gone []models.Transaction
		n := t.ledger.RemoveWhere(func(tx models.Transaction) bool {
			gone = append(gone, tx)
			return true
		})
		tot := Summarize(slices.Values(gone))
		t.mu.Lock()
		t.settings.LastMonth = models.PeriodTotals{
			Income:  tot.Income,
			Expense: tot.Expense,
			Savings: tot.SavingsPct,
		}
		t.mu.Unlock()
		t.logger.Warn("finance: new month, transactions discarded",
			slog.Int("discarded", n),
			slog.String("last_access", last.Format(time.RFC3339)),
		)
	}
	s := t.Settings()
	return rolled, t.saveSettings(ctx, s)
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// Subscribe registers fn for updates and returns a function that removes it.
func (t *Tracker) Subscribe(fn func(Update)) (cancel func()) {
	t.subMu.Lock()
	t.nextSub++
	id := t.nextSub
	t.subs[id] = fn
	t.subMu.Unlock()
	return func() {
		t.subMu.Lock()
		delete(t.subs, id)
		t.subMu.Unlock()
	}
}

func (t *Tracker) onChange(c ledger.Change[models.Transaction]) {
	snap := c.Snapshot
	if snap == nil {
		snap = t.ledger.All()
	}
	t.publish(Update{Change: c, Summary: summarize(slices.Values(snap), t.Settings())})
}

func (t *Tracker) publish(u Update) {
	t.subMu.Lock()
	ids := make([]int, 0, len(t.subs))
	for id := range t.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Update), len(ids))
	for i, id := range ids {
		fns[i] = t.subs[id]
	}
	t.subMu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

// Close flushes and stops the transaction ledger.
func (t *Tracker) Close() { t.ledger.Close() }
