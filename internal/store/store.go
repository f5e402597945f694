// Package store pairs a reduction function with durable storage: state is
// read once at construction and written back after every change.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"eventboard/internal/log"
	"eventboard/internal/metrics"
	"eventboard/internal/storage"
)

// Reducer computes the next state from the current one and an action.
type Reducer[S, A any] func(S, A) S

// Option configures a Store.
type Option[S any] func(*options[S])

type options[S any] struct {
	logger       *log.Logger
	metrics      *metrics.Metrics
	writeTimeout time.Duration
	fallback     func(context.Context) (S, error)
}

func WithLogger[S any](l *log.Logger) Option[S] {
	return func(o *options[S]) { o.logger = l }
}

func WithMetrics[S any](m *metrics.Metrics) Option[S] {
	return func(o *options[S]) { o.metrics = m }
}

// WithWriteTimeout bounds each write to storage. Defaults to 10s.
func WithWriteTimeout[S any](d time.Duration) Option[S] {
	return func(o *options[S]) { o.writeTimeout = d }
}

// WithFallback supplies the starting state when storage has no usable value.
// If fn fails, the initial value is used instead.
func WithFallback[S any](fn func(context.Context) (S, error)) Option[S] {
	return func(o *options[S]) { o.fallback = fn }
}

type Store[S, A any] struct {
	kv      storage.KV
	key     string
	reduce  Reducer[S, A]
	logger  *log.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	mu     sync.Mutex
	state  S
	loaded bool
	closed bool

	pending  chan S
	flushReq chan chan struct{}
	stop     chan struct{}
	done     chan struct{}
}

// New reads key from kv and starts the background writer. Missing or
// unreadable state falls back to initial; the starting state is written
// back immediately.
func New[S, A any](ctx context.Context, kv storage.KV, key string, initial S, reduce Reducer[S, A], opts ...Option[S]) *Store[S, A] {
	o := options[S]{writeTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}

	s := &Store[S, A]{
		kv:       kv,
		key:      key,
		reduce:   reduce,
		logger:   o.logger.WithComponent(log.ComponentStore).With(log.FieldKey, key),
		metrics:  o.metrics,
		timeout:  o.writeTimeout,
		pending:  make(chan S, 1),
		flushReq: make(chan chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	s.state, s.loaded = s.load(ctx)
	if !s.loaded && o.fallback != nil {
		if v, err := o.fallback(ctx); err != nil {
			s.logger.WarnContext(ctx, "Fallback state unavailable, using initial value", log.FieldError, err)
			s.state = initial
		} else {
			s.state = v
		}
	} else if !s.loaded {
		s.state = initial
	}

	go s.writer()
	s.schedule(s.state)
	return s
}

func (s *Store[S, A]) load(ctx context.Context) (S, bool) {
	var zero S
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.DebugContext(ctx, "No stored state, starting fresh")
		return zero, false
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read stored state, starting fresh",
			log.FieldError, err, log.FieldOperation, log.OpRead)
		return zero, false
	}
	var v S
	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.WarnContext(ctx, "Stored state is not parsable, starting fresh",
			log.FieldError, err, log.FieldOperation, log.OpParse)
		return zero, false
	}
	return v, true
}

// Loaded reports whether the starting state came from storage.
func (s *Store[S, A]) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// State returns the current state.
func (s *Store[S, A]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a and schedules a write of the result.
func (s *Store[S, A]) Dispatch(a A) S {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.reduce(s.state, a)
	if s.closed {
		s.logger.Warn("Store closed, change kept in memory only")
		return s.state
	}
	s.schedule(s.state)
	return s.state
}

// schedule replaces any state still waiting for the writer. Callers hold mu.
func (s *Store[S, A]) schedule(st S) {
	select {
	case s.pending <- st:
	default:
		select {
		case <-s.pending:
		default:
		}
		s.pending <- st
	}
}

func (s *Store[S, A]) writer() {
	defer close(s.done)
	for {
		select {
		case st := <-s.pending:
			s.write(st)
		case ack := <-s.flushReq:
			s.drain()
			close(ack)
		case <-s.stop:
			s.drain()
			return
		}
	}
}

func (s *Store[S, A]) drain() {
	select {
	case st := <-s.pending:
		s.write(st)
	default:
	}
}

func (s *Store[S, A]) write(st S) {
	data, err := json.Marshal(st)
	if err != nil {
		s.logger.Error("Failed to encode state", log.FieldError, err, log.FieldOperation, log.OpPersist)
		s.metrics.StoreWrite(s.key, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	err = s.kv.Put(ctx, s.key, data)
	s.metrics.StoreWrite(s.key, err)
	if err != nil {
		s.logger.Error("Failed to persist state", log.FieldError, err,
			log.FieldOperation, log.OpPersist, log.FieldBackend, s.kv.Driver().String())
		return
	}
	s.logger.Debug("State persisted", "bytes", len(data))
}

// Flush waits until every state scheduled before the call has been written.
func (s *Store[S, A]) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case s.flushReq <- ack:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes any pending state and stops the writer.
func (s *Store[S, A]) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stop)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
