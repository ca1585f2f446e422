package services

import (
	"testing"
	"time"
)

func TestMemoryCounterStoreIncr(t *testing.T) {
	store := NewMemoryCounterStore()

	for want := 1; want <= 3; want++ {
		got, err := store.Incr("login:+1 555 0100", time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Fatalf("expected count %d, got %d", want, got)
		}
	}

	got, err := store.Incr("login:+1 555 0199", time.Minute)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected independent counter per key, got %d", got)
	}
}

func TestMemoryCounterStoreTTLReset(t *testing.T) {
	store := NewMemoryCounterStore()
	current := time.Now()
	store.now = func() time.Time { return current }

	if _, err := store.Incr("k", time.Minute); err != nil {
		t.Fatalf("incr: %v", err)
	}
	if _, err := store.Incr("k", time.Minute); err != nil {
		t.Fatalf("incr: %v", err)
	}

	current = current.Add(61 * time.Second)
	got, err := store.Incr("k", time.Minute)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected counter reset after TTL, got %d", got)
	}
}
