package kv

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lborres/blogdesk/core"
)

func TestMemorySetGetShouldStoreAndRetrieve(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	if err := store.Set(ctx, "session:token", []byte("tok")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "session:token")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "tok" {
		t.Errorf("Expected %q, got %q", "tok", got)
	}
}

func TestMemoryGetNonExistentShouldReturnErrStorageNotFound(t *testing.T) {
	store := NewMemory()

	_, err := store.Get(context.Background(), "nonexistent")
	if !errors.Is(err, core.ErrStorageNotFound) {
		t.Errorf("Expected ErrStorageNotFound, got %v", err)
	}
}

func TestMemoryValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	value := []byte("abc")

	_ = store.Set(ctx, "k", value)
	value[0] = 'z'

	got, _ := store.Get(ctx, "k")
	got[1] = 'z'

	again, _ := store.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value was mutated through a caller slice: %q", again)
	}
}

func TestMemoryDeleteShouldBeIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	_ = store.Set(ctx, "k", []byte("v"))

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("first Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Expected empty store, got %d keys", store.Len())
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			_ = store.Set(ctx, key, []byte{byte(i)})
			_, _ = store.Get(ctx, key)
			if i%5 == 0 {
				_ = store.Delete(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	if store.Len() > 26 {
		t.Errorf("Expected at most 26 keys, got %d", store.Len())
	}
}
