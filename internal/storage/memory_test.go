package storage

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestMemory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Load(ctx, "k"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}

	buf := []byte("abc")
	_ = m.Save(ctx, "k", buf)
	buf[0] = 'x'
	got, _ := m.Load(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored blob aliased caller buffer: %q", got)
	}

	m.SetFailSave(io.ErrClosedPipe)
	if err := m.Save(ctx, "k", []byte("new")); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("err = %v", err)
	}
	got, _ = m.Load(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("failed save must not change blob, got %q", got)
	}
}
