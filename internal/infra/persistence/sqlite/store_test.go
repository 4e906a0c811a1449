package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "agromix.db")
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if err := store.Set(ctx, "agromix:calculation:u1", `[{"id":"c1"}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "agromix:calculation:u1", `[{"id":"c2"},{"id":"c1"}]`); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	v, ok, err := reloaded.Get(ctx, "agromix:calculation:u1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if v != `[{"id":"c2"},{"id":"c1"}]` {
		t.Fatalf("unexpected value %q", v)
	}
}

func TestStoreRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Remove(ctx, "missing"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
	_ = store.Set(ctx, "k", "v")
	if err := store.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, err := store.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected key removed, ok=%v err=%v", ok, err)
	}
}

func TestStoreCreatesKVTable(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	var name string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", "kv").Scan(&name); err != nil {
		t.Fatalf("lookup kv table: %v", err)
	}
}

func TestStoreGetAfterCloseFails(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	_ = store.Close()
	if _, _, err := store.Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected error on closed db")
	}
}
