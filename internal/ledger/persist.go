package ledger

import (
	"context"
	"sync"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/storage"
)

// persister writes snapshots for one key on its own goroutine. Enqueue never
// blocks; only the newest pending snapshot is written, since each one
// replaces the whole blob anyway.
type persister struct {
	store   storage.Store
	key     string
	onError func(error)

	mu      sync.Mutex
	pending []byte
	seq     uint64 // snapshots enqueued
	written uint64 // highest seq covered by a finished write
	lastErr error
	waiters []flushWaiter

	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

type flushWaiter struct {
	seq uint64
	ch  chan error
}

func newPersister(store storage.Store, key string, onError func(error)) *persister {
	p := &persister{
		store:   store,
		key:     key,
		onError: onError,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *persister) enqueue(data []byte) {
	p.mu.Lock()
	p.pending = data
	p.seq++
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) run() {
	defer close(p.stopped)
	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.stop:
			p.drain()
			return
		}
	}
}

func (p *persister) drain() {
	for {
		p.mu.Lock()
		if p.pending == nil {
			p.mu.Unlock()
			return
		}
		data, target := p.pending, p.seq
		p.pending = nil
		p.mu.Unlock()

		err := p.store.Save(context.Background(), p.key, data)
		if err != nil {
			err = &apperr.StorageError{Op: "save", Key: p.key, Err: err}
		}

		p.mu.Lock()
		p.written = target
		p.lastErr = err
		kept := p.waiters[:0]
		for _, w := range p.waiters {
			if w.seq <= target {
				w.ch <- err
			} else {
				kept = append(kept, w)
			}
		}
		p.waiters = kept
		p.mu.Unlock()

		if err != nil && p.onError != nil {
			go p.onError(err)
		}
	}
}

// flush waits until every snapshot enqueued so far has been written and
// returns the outcome of that write.
func (p *persister) flush(ctx context.Context) error {
	p.mu.Lock()
	if p.written >= p.seq {
		err := p.lastErr
		p.mu.Unlock()
		return err
	}
	w := flushWaiter{seq: p.seq, ch: make(chan error, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case err := <-w.ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *persister) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// close writes whatever is pending and stops the goroutine.
func (p *persister) close() {
	p.once.Do(func() { close(p.stop) })
	<-p.stopped
}
