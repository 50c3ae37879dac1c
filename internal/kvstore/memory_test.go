package kvstore

import (
	"context"
	"testing"
	"time"
)

func TestMemoryIncrCreatesWithTTL(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return current })

	n, err := store.Incr(ctx, "counter", time.Minute)
	if err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Incr() = %d, want 1", n)
	}

	n, _ = store.Incr(ctx, "counter", time.Minute)
	if n != 2 {
		t.Errorf("Incr() = %d, want 2", n)
	}

	// Past the window the counter resets; expiry was fixed at creation.
	current = current.Add(61 * time.Second)
	n, _ = store.Incr(ctx, "counter", time.Minute)
	if n != 1 {
		t.Errorf("Incr() after expiry = %d, want 1", n)
	}
}

func TestMemoryGetSetDelete(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, ok, _ := store.Get(ctx, "missing"); ok {
		t.Error("Get() on missing key reported existing")
	}

	if err := store.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	val, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || val != "v" {
		t.Errorf("Get() = %q, %v, %v; want v, true, nil", val, ok, err)
	}

	if err := store.Delete(ctx, "k", "missing"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("Get() after Delete reported existing")
	}
}

func TestMemorySetExpiry(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return current })

	store.Set(ctx, "k", "v", 30*time.Second)

	current = current.Add(31 * time.Second)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("Get() returned value past its expiry")
	}
}
