package ledger

import (
	"context"
	"log/slog"
	"slices"
)

// Confirmer decides the fate of a tentatively added record. A nil error
// commits it; anything else removes it again.
type Confirmer[R Record] func(ctx context.Context, r R) error

// PendingState is the lifecycle position of a tentative add.
type PendingState int

const (
	StateTentative PendingState = iota
	StateCommitted
	StateCompensated
)

func (s PendingState) String() string {
	switch s {
	case StateCommitted:
		return "committed"
	case StateCompensated:
		return "compensated"
	default:
		return "tentative"
	}
}

// Pending tracks a record added by AddTentative.
type Pending[R Record] struct {
	record R
	cancel context.CancelFunc
	done   chan struct{}

	// written before done is closed
	state PendingState
	err   error
}

// AddTentative applies d immediately, announcing it with Tentative set, and
// runs confirm in the background. If confirm fails, ctx ends or Cancel is
// called before confirm succeeds, the record is removed again and observers
// get an ActionCompensated change. There is no built-in deadline; pass a ctx
// with one if needed.
func (l *Ledger[R]) AddTentative(ctx context.Context, d Draft[R], confirm Confirmer[R]) (*Pending[R], error) {
	l.mu.Lock()
	r, err := l.buildLocked(d)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.records = slices.Insert(l.records, 0, r)
	ch := l.changeLocked(ActionCreated, r.RecordID())
	ch.Tentative = true
	l.unlockAndNotify(ch)

	ctx, cancel := context.WithCancel(ctx)
	p := &Pending[R]{record: r, cancel: cancel, done: make(chan struct{})}
	go p.run(ctx, l, confirm)
	return p, nil
}

func (p *Pending[R]) run(ctx context.Context, l *Ledger[R], confirm Confirmer[R]) {
	defer close(p.done)
	defer p.cancel()

	errc := make(chan error, 1)
	go func() { errc <- confirm(ctx, p.record) }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err == nil {
		p.state = StateCommitted
		return
	}
	p.state = StateCompensated
	p.err = err
	if l.removeWithChange(p.record.RecordID(), ActionCompensated, err) {
		l.logger.Warn("ledger: tentative record compensated",
			slog.String("id", p.record.RecordID().String()), slog.String("error", err.Error()))
	}
}

// Record returns the record as it was added.
func (p *Pending[R]) Record() R { return p.record }

// Cancel abandons the add unless it has already been confirmed. Once
// committed, only an explicit Remove undoes it.
func (p *Pending[R]) Cancel() { p.cancel() }

// Done is closed once the add is committed or compensated.
func (p *Pending[R]) Done() <-chan struct{} { return p.done }

// State reports where the add currently is.
func (p *Pending[R]) State() PendingState {
	select {
	case <-p.done:
		return p.state
	default:
		return StateTentative
	}
}

// Wait blocks until the add settles. It returns the record and nil when
// committed, or the reason it was compensated.
func (p *Pending[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-p.done:
		if p.state == StateCommitted {
			return p.record, nil
		}
		var zero R
		return zero, p.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}
