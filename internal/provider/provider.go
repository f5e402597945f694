// Package provider holds the process-wide event list: one persistent store
// under the "posts" key, with change notifications for subscribers.
package provider

import (
	"context"
	"sync"

	"eventboard/internal/core"
	"eventboard/internal/log"
	"eventboard/internal/metrics"
	"eventboard/internal/storage"
	"eventboard/internal/store"
)

// StorageKey is the key the event list is persisted under.
const StorageKey = "posts"

// Change describes one applied action.
type Change struct {
	Action  core.Action
	Posts   []core.Record
	Version uint64
}

// Listener is notified after every dispatch, in registration order.
type Listener func(ctx context.Context, c Change)

// Seeder supplies the starting list when storage holds nothing.
type Seeder func(ctx context.Context) ([]core.Record, error)

type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics
	Seed    Seeder
}

type Provider struct {
	store   *store.Store[[]core.Record, core.Action]
	logger  *log.Logger
	sl      *log.StructuredLogger
	metrics *metrics.Metrics

	mu        sync.Mutex
	version   uint64
	listeners []Listener
}

func New(ctx context.Context, kv storage.KV, opts Options) *Provider {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	storeOpts := []store.Option[[]core.Record]{
		store.WithLogger[[]core.Record](logger),
		store.WithMetrics[[]core.Record](opts.Metrics),
	}
	if opts.Seed != nil {
		storeOpts = append(storeOpts, store.WithFallback(func(ctx context.Context) ([]core.Record, error) {
			posts, err := opts.Seed(ctx)
			if err != nil {
				return nil, err
			}
			return core.Reduce(nil, core.Initialise{Posts: posts}), nil
		}))
	}

	p := &Provider{
		store:   store.New(ctx, kv, StorageKey, []core.Record{}, core.Reduce, storeOpts...),
		logger:  logger.WithComponent(log.ComponentEvents),
		sl:      log.NewStructuredLogger(logger),
		metrics: opts.Metrics,
	}
	p.metrics.Dispatched(string(core.ActionInitialise), len(p.store.State()))
	return p
}

// List returns a copy of the current list.
func (p *Provider) List() []core.Record {
	return core.Clone(p.store.State())
}

// Find returns the record with id.
func (p *Provider) Find(id int) (core.Record, bool) {
	return core.Find(p.store.State(), id)
}

// Dispatch applies action and notifies subscribers. When there are
// subscribers, pending writes are flushed before they run. It returns the new
// list.
func (p *Provider) Dispatch(ctx context.Context, action core.Action) []core.Record {
	p.mu.Lock()
	posts := p.store.Dispatch(action)
	p.version++
	change := Change{Action: action, Posts: core.Clone(posts), Version: p.version}
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.Unlock()

	kind := string(core.ActionUnknown)
	if action != nil {
		kind = string(action.Type())
	}
	id, name := describe(action, posts)
	p.sl.LogEventDispatched(ctx, kind, id, name, len(posts))
	p.metrics.Dispatched(kind, len(posts))

	if len(listeners) == 0 {
		return core.Clone(posts)
	}
	// Listeners may announce the change to readers of storage.
	if err := p.store.Flush(ctx); err != nil {
		p.logger.WarnContext(ctx, "Notifying before the change was persisted",
			log.FieldError, err, log.FieldVersion, change.Version)
	}
	for _, l := range listeners {
		p.notify(ctx, l, change)
	}
	return core.Clone(posts)
}

func (p *Provider) notify(ctx context.Context, l Listener, c Change) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "Change listener panicked", "panic", r, log.FieldVersion, c.Version)
		}
	}()
	l(ctx, c)
}

// Subscribe registers l for every subsequent dispatch.
func (p *Provider) Subscribe(l Listener) {
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
}

// Version is the number of dispatches applied since start.
func (p *Provider) Version() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

// Flush waits for pending writes.
func (p *Provider) Flush(ctx context.Context) error {
	return p.store.Flush(ctx)
}

// Close flushes and stops persistence.
func (p *Provider) Close(ctx context.Context) error {
	return p.store.Close(ctx)
}

func describe(a core.Action, posts []core.Record) (int, string) {
	switch a := a.(type) {
	case core.Added:
		if len(posts) > 0 {
			last := posts[len(posts)-1]
			return last.ID, last.Name
		}
	case core.Updated:
		return a.ID, a.Post.Name
	case core.Removed:
		return a.ID, ""
	}
	return -1, ""
}
