package kv

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"eventboard/internal/core"
	"eventboard/internal/storage"
	"eventboard/internal/storage/memory"
)

func TestExporterRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e, err := New(store, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Key() != DefaultKey {
		t.Fatalf("Key() = %q, want %q", e.Key(), DefaultKey)
	}

	got, err := e.ReadEvents(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("ReadEvents before export = %v, %v", got, err)
	}

	posts := []core.Record{{ID: 0, Name: "A", Ancestry: "x"}}
	if err := e.Export(ctx, posts); err != nil {
		t.Fatalf("Export: %v", err)
	}
	got, err = e.ReadEvents(ctx)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if !reflect.DeepEqual(got, posts) {
		t.Fatalf("ReadEvents = %+v, want %+v", got, posts)
	}
}

func TestExporterNilListWritesEmptyArray(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e, _ := New(store, "mirror")
	if err := e.Export(ctx, nil); err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := store.Get(ctx, "mirror")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("stored %s, want []", data)
	}
}

func TestNewRejectsBadKey(t *testing.T) {
	if _, err := New(memory.New(), "../escape"); !errors.Is(err, storage.ErrInvalidKey) {
		t.Fatalf("New error = %v, want ErrInvalidKey", err)
	}
}
