// Package storagetest holds the behaviour every storage.KV driver must share.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"eventboard/internal/storage"
)

// Run exercises kv against the common Get/Put contract.
func Run(t *testing.T, kv storage.KV) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		if _, err := kv.Get(ctx, "absent"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Get(absent) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("put then get", func(t *testing.T) {
		want := `[{"id":0,"name":"A","ancestry":""}]`
		if err := kv.Put(ctx, "posts", []byte(want)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := kv.Get(ctx, "posts")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != want {
			t.Fatalf("Get = %s, want %s", got, want)
		}
	})

	t.Run("put replaces", func(t *testing.T) {
		if err := kv.Put(ctx, "posts", []byte(`[1]`)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := kv.Put(ctx, "posts", []byte(`[]`)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := kv.Get(ctx, "posts")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != `[]` {
			t.Fatalf("Get = %s, want []", got)
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		if err := kv.Put(ctx, "other", []byte(`{"a":1}`)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := kv.Get(ctx, "posts")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != `[]` {
			t.Fatalf("posts changed to %s", got)
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		for _, key := range []string{"", "../escape", "/abs"} {
			if err := kv.Put(ctx, key, []byte(`1`)); !errors.Is(err, storage.ErrInvalidKey) {
				t.Errorf("Put(%q) error = %v, want ErrInvalidKey", key, err)
			}
		}
	})

	if kv.Driver() == "" || !kv.Driver().IsValid() {
		t.Errorf("Driver() = %q, want a known driver", kv.Driver())
	}
}
