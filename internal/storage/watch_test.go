package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_ReportsBlobKey(t *testing.T) {
	s := tempFS(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var keys []string
	go Watch(ctx, s, logger, func(key string) {
		mu.Lock()
		keys = append(keys, key)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(s.Root(), "tasks.json"), []byte("[]"), 0o644)
	_ = os.WriteFile(filepath.Join(s.Root(), "ignored.txt"), []byte("x"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(keys) > 0
	}, "expected a callback for tasks.json")

	mu.Lock()
	defer mu.Unlock()
	for _, k := range keys {
		if k != "tasks" {
			t.Errorf("unexpected key %q", k)
		}
	}
}

func TestWatch_DebouncesAtomicSave(t *testing.T) {
	s := tempFS(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	count := 0
	go Watch(ctx, s, logger, func(string) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		_ = s.Save(context.Background(), "notes", []byte("[]"))
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count > 0
	}, "expected a callback")
	time.Sleep(3 * debounce)

	mu.Lock()
	defer mu.Unlock()
	if count >= 5 {
		t.Errorf("callbacks = %d, want the burst collapsed", count)
	}
}
