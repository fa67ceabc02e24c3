package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec, err := s.Put(ctx, PutParams{NS: "taiMem", Key: "global_memory", Value: json.RawMessage(`[]`)})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if rec.Version != 1 {
		t.Errorf("expected version 1, got %d", rec.Version)
	}
	if rec.ID == "" {
		t.Error("expected non-empty ID")
	}

	got, err := s.Get(ctx, GetParams{NS: "taiMem", Key: "global_memory"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Value) != `[]` {
		t.Errorf("expected '[]', got %q", got.Value)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), GetParams{NS: "ns", Key: "nope"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVersioning(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Put(ctx, PutParams{NS: "ns", Key: "k", Value: json.RawMessage(`"v1"`)})
	r2, _ := s.Put(ctx, PutParams{NS: "ns", Key: "k", Value: json.RawMessage(`"v2"`)})

	if r2.Version != 2 {
		t.Errorf("expected version 2, got %d", r2.Version)
	}
	if r2.Supersedes == "" {
		t.Error("expected supersedes to be set")
	}

	// Get latest
	got, _ := s.Get(ctx, GetParams{NS: "ns", Key: "k"})
	if string(got.Value) != `"v2"` {
		t.Errorf("expected v2, got %s", got.Value)
	}

	// Get history
	hist, _ := s.History(ctx, "ns", "k")
	if len(hist) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(hist))
	}

	// Get specific version
	v1, _ := s.Get(ctx, GetParams{NS: "ns", Key: "k", Version: 1})
	if string(v1.Value) != `"v1"` {
		t.Errorf("expected v1, got %s", v1.Value)
	}
}

func TestKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Put(ctx, PutParams{NS: "ns", Key: "b", Value: json.RawMessage(`1`)})
	s.Put(ctx, PutParams{NS: "ns", Key: "a", Value: json.RawMessage(`2`)})
	s.Put(ctx, PutParams{NS: "ns", Key: "a", Value: json.RawMessage(`3`)})
	s.Put(ctx, PutParams{NS: "other", Key: "c", Value: json.RawMessage(`4`)})

	keys, err := s.Keys(ctx, "ns")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("expected [a b], got %v", keys)
	}
}

func TestSoftDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Put(ctx, PutParams{NS: "ns", Key: "k", Value: json.RawMessage(`"v1"`)})
	s.Put(ctx, PutParams{NS: "ns", Key: "k", Value: json.RawMessage(`"v2"`)})
	if err := s.Rm(ctx, RmParams{NS: "ns", Key: "k"}); err != nil {
		t.Fatalf("rm: %v", err)
	}

	if _, err := s.Get(ctx, GetParams{NS: "ns", Key: "k"}); err == nil {
		t.Error("expected error after soft delete")
	}
	keys, _ := s.Keys(ctx, "ns")
	if len(keys) != 0 {
		t.Errorf("expected no keys, got %v", keys)
	}
}

func TestHardDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Put(ctx, PutParams{NS: "ns", Key: "k", Value: json.RawMessage(`"data"`)})
	if err := s.Rm(ctx, RmParams{NS: "ns", Key: "k", Hard: true}); err != nil {
		t.Fatalf("rm hard: %v", err)
	}

	if _, err := s.History(ctx, "ns", "k"); err == nil {
		t.Error("expected error after hard delete")
	}
}

func TestRmMissing(t *testing.T) {
	s := newTestStore(t)

	err := s.Rm(context.Background(), RmParams{NS: "ns", Key: "k"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListNamespaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Put(ctx, PutParams{NS: "taiMem", Key: "global_memory", Value: json.RawMessage(`[]`)})
	s.Put(ctx, PutParams{NS: "taiMem", Key: "restricted_memory_2025-04-08", Value: json.RawMessage(`[]`)})
	s.Put(ctx, PutParams{NS: "memplate", Key: "memplate", Value: json.RawMessage(`"t"`)})

	stats, err := s.ListNamespaces(ctx)
	if err != nil {
		t.Fatalf("list namespaces: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 namespaces, got %d", len(stats))
	}
	if stats[0].NS != "memplate" || stats[0].Keys != 1 {
		t.Errorf("unexpected %+v", stats[0])
	}
	if stats[1].NS != "taiMem" || stats[1].Keys != 2 {
		t.Errorf("unexpected %+v", stats[1])
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}
