package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called with the key of a blob whose file changed on disk.
type ChangeCallback func(key string)

// debounce collapses the burst of events an editor or an atomic rename
// produces into a single callback per key.
const debounce = 150 * time.Millisecond

// Watch reports changes to blob files under f's root until ctx is cancelled.
// It fires for the store's own writes too; callers tell those apart by
// content (see ledger.Reload).
func Watch(ctx context.Context, f *FS, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(f.Root()); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", f.Root()))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func(key string) {
		pending[key] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			for key := range pending {
				logger.Debug("watcher: blob changed", slog.String("key", key))
				cb(key)
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			key, ok := f.KeyForPath(ev.Name)
			if !ok {
				continue
			}
			schedule(key)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
