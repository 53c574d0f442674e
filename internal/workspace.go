package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/tally/internal/api"
	"github.com/starford/tally/internal/finance"
	"github.com/starford/tally/internal/notes"
	"github.com/starford/tally/internal/storage"
	"github.com/starford/tally/internal/tasks"
)

// workspace is the set of ledgers backed by one store.
type workspace struct {
	store storage.Store
	// fs is set for the fs driver only; it is what the watcher observes.
	fs         *storage.FS
	closeStore func() error

	finance *finance.Tracker
	notes   *notes.Book
	tasks   *tasks.List
	logger  *slog.Logger
}

func openStore(cfg StorageConfig) (storage.Store, *storage.FS, func() error, error) {
	switch cfg.Driver {
	case DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err := storage.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return db, nil, db.Close, nil
	default:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		fs, err := storage.NewFS(cfg.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init storage: %w", err)
		}
		return fs, fs, func() error { return nil }, nil
	}
}

// openWorkspace loads every ledger. It leaves the month rollover to the
// long-running commands so that read-only ones never change stored data.
func openWorkspace(ctx context.Context, cfg *Config, logger *slog.Logger) (*workspace, error) {
	store, fs, closeStore, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	opts := []finance.Option{finance.WithLogger(logger)}
	if len(cfg.Finance.Categories) > 0 {
		opts = append(opts, finance.WithDefaultCategories(cfg.Finance.Categories))
	}

	ws := &workspace{
		store:      store,
		fs:         fs,
		closeStore: closeStore,
		finance:    finance.Open(ctx, store, opts...),
		notes:      notes.Open(ctx, store, logger, time.Now),
		tasks:      tasks.Open(ctx, store, logger, time.Now),
		logger:     logger,
	}

	logger.Info("Workspace opened",
		slog.String("driver", cfg.Storage.Driver),
		slog.String("path", cfg.Storage.Path),
		slog.Int("transactions", ws.finance.Ledger().Len()),
		slog.Int("notes", ws.notes.Len()),
		slog.Int("tasks", ws.tasks.Len()),
	)
	return ws, nil
}

// rollover starts a new finance month when now is past the last access.
func (ws *workspace) rollover(ctx context.Context, now time.Time) {
	rolled, err := ws.finance.CheckNewMonth(ctx, now)
	if err != nil {
		ws.logger.Error("month rollover check failed", slog.String("error", err.Error()))
		return
	}
	if rolled {
		ws.logger.Info("Started a new month", slog.String("month", now.Format("2006-01")))
	}
}

func (ws *workspace) service() *api.Service {
	return &api.Service{Finance: ws.finance, Notes: ws.notes, Tasks: ws.tasks}
}

// reload re-reads the ledger stored under key after an outside edit.
func (ws *workspace) reload(ctx context.Context, key string) {
	var changed bool
	switch key {
	case finance.TransactionsKey:
		changed = ws.finance.Ledger().Reload(ctx)
	case notes.Key:
		changed = ws.notes.Reload(ctx)
	case tasks.Key:
		changed = ws.tasks.Reload(ctx)
	default:
		ws.logger.Debug("ignoring change to unwatched key", slog.String("key", key))
		return
	}
	if changed {
		ws.logger.Info("Ledger reloaded from storage", slog.String("key", key))
	}
}

// close flushes every ledger and releases the store.
func (ws *workspace) close() {
	ws.finance.Close()
	ws.notes.Close()
	ws.tasks.Close()
	if err := ws.closeStore(); err != nil {
		ws.logger.Error("close store", slog.String("error", err.Error()))
	}
}
