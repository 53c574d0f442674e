package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempFS(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestFS_SaveAndLoad(t *testing.T) {
	s := tempFS(t)
	ctx := context.Background()
	content := []byte(`[{"id":"1"}]`)
	if err := s.Save(ctx, "tasks", content); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "tasks")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "tasks.json")); err != nil {
		t.Errorf("blob file missing: %v", err)
	}
}

func TestFS_LoadMissing(t *testing.T) {
	s := tempFS(t)
	_, err := s.Load(context.Background(), "nothing")
	if !errors.Is(err, ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestFS_InvalidKeysRejected(t *testing.T) {
	s := tempFS(t)
	ctx := context.Background()
	for _, key := range []string{"../escape", "/etc/passwd", "a/b", "", "Upper"} {
		if err := s.Save(ctx, key, []byte("x")); err == nil {
			t.Errorf("expected error saving key %q", key)
		}
		if _, err := s.Load(ctx, key); err == nil {
			t.Errorf("expected error loading key %q", key)
		}
	}
}

func TestFS_OverwriteLeavesNoTempFiles(t *testing.T) {
	s := tempFS(t)
	ctx := context.Background()
	_ = s.Save(ctx, "notes", []byte("original"))
	if err := s.Save(ctx, "notes", []byte("updated")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := s.Load(ctx, "notes")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".tally-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestFS_KeyForPath(t *testing.T) {
	s := tempFS(t)
	cases := []struct {
		path string
		key  string
		ok   bool
	}{
		{filepath.Join(s.Root(), "transactions.json"), "transactions", true},
		{filepath.Join(s.Root(), ".tally-tmp-123"), "", false},
		{filepath.Join(s.Root(), "sub", "tasks.json"), "", false},
		{filepath.Join(s.Root(), "readme.txt"), "", false},
	}
	for _, tc := range cases {
		key, ok := s.KeyForPath(tc.path)
		if key != tc.key || ok != tc.ok {
			t.Errorf("KeyForPath(%q) = %q, %v; want %q, %v", tc.path, key, ok, tc.key, tc.ok)
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "tally-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
