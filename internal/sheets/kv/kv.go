// Package kv exports the event list under a second storage key.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"eventboard/internal/core"
	ports "eventboard/internal/sheets"
	"eventboard/internal/storage"
)

// DefaultKey is where the mirrored list is written.
const DefaultKey = "posts.mirror"

type Exporter struct {
	kv  storage.KV
	key string
}

var (
	_ ports.EventExporter = (*Exporter)(nil)
	_ ports.EventReader   = (*Exporter)(nil)
)

// New returns an exporter writing to key, or DefaultKey when key is empty.
func New(kv storage.KV, key string) (*Exporter, error) {
	if key == "" {
		key = DefaultKey
	}
	if _, err := storage.SanitizeKey(key); err != nil {
		return nil, err
	}
	return &Exporter{kv: kv, key: key}, nil
}

func (e *Exporter) Key() string { return e.key }

func (e *Exporter) Export(ctx context.Context, posts []core.Record) error {
	data, err := json.Marshal(core.Clone(posts))
	if err != nil {
		return fmt.Errorf("encode mirror: %w", err)
	}
	if err := e.kv.Put(ctx, e.key, data); err != nil {
		return fmt.Errorf("write %s: %w", e.key, err)
	}
	return nil
}

func (e *Exporter) ReadEvents(ctx context.Context) ([]core.Record, error) {
	data, err := e.kv.Get(ctx, e.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []core.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.key, err)
	}
	var posts []core.Record
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.key, err)
	}
	return core.Clone(posts), nil
}
