package blobstore

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.Put(ctx, "k1", []byte("v1"), map[string]string{"a": "b"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	entry, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(entry.Value) != "v1" || entry.Metadata["a"] != "b" {
		t.Errorf("unexpected entry: %+v", entry)
	}

	// Overwrite is allowed.
	if err := store.Put(ctx, "k1", []byte("v2"), nil); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	entry, _ = store.Get(ctx, "k1")
	if string(entry.Value) != "v2" {
		t.Errorf("expected v2 after overwrite, got %s", entry.Value)
	}
}

func TestMemoryStorePutIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.PutIfAbsent(ctx, "k1", []byte("first"), nil); err != nil {
		t.Fatalf("first put failed: %v", err)
	}
	err := store.PutIfAbsent(ctx, "k1", []byte("second"), nil)
	if !errors.Is(err, ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}

	entry, _ := store.Get(ctx, "k1")
	if string(entry.Value) != "first" {
		t.Errorf("losing write must not clobber: got %s", entry.Value)
	}
}

func TestMemoryStoreListPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	keys := []string{"events/ig/u1/b", "events/ig/u1/a", "events/ig/u2/c", "settings/ig/u1"}
	for _, key := range keys {
		if err := store.Put(ctx, key, []byte("x"), nil); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	entries, err := store.List(ctx, "events/ig/u1/")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Key != "events/ig/u1/a" || entries[1].Key != "events/ig/u1/b" {
		t.Errorf("expected key-sorted results, got %s, %s", entries[0].Key, entries[1].Key)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	store.Put(ctx, "k1", []byte("v"), nil)
	if err := store.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "k1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	// Deleting a missing key is a no-op.
	if err := store.Delete(ctx, "k1"); err != nil {
		t.Errorf("second delete should not fail: %v", err)
	}
}

func TestMemoryStoreValueIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	value := []byte("abc")
	store.Put(ctx, "k1", value, nil)
	value[0] = 'z'

	entry, _ := store.Get(ctx, "k1")
	if string(entry.Value) != "abc" {
		t.Errorf("stored value must not alias caller's slice, got %s", entry.Value)
	}

	entry.Value[0] = 'q'
	again, _ := store.Get(ctx, "k1")
	if string(again.Value) != "abc" {
		t.Errorf("returned value must not alias stored slice, got %s", again.Value)
	}
}
