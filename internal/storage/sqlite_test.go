package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func testSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "tally-test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLite_SaveLoadOverwrite(t *testing.T) {
	db := testSQLite(t)
	ctx := context.Background()

	if err := db.Save(ctx, "tasks", []byte("v1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := db.Save(ctx, "tasks", []byte("v2")); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	got, err := db.Load(ctx, "tasks")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("got %q, want v2", got)
	}
}

func TestSQLite_LoadMissing(t *testing.T) {
	db := testSQLite(t)
	if _, err := db.Load(context.Background(), "absent"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = db.Save(ctx, "notes", []byte(`[]`))
	db.Close()

	db, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	got, err := db.Load(ctx, "notes")
	if err != nil || string(got) != "[]" {
		t.Errorf("after reopen: %q, %v", got, err)
	}
}
