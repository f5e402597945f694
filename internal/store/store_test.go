package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"eventboard/internal/log"
	"eventboard/internal/storage"
	"eventboard/internal/storage/memory"
)

func add(s []int, n int) []int {
	out := append([]int(nil), s...)
	return append(out, n)
}

func newTestStore(t *testing.T, kv storage.KV, opts ...Option[[]int]) *Store[[]int, int] {
	t.Helper()
	opts = append([]Option[[]int]{WithLogger[[]int](log.Discard())}, opts...)
	s := New(context.Background(), kv, "numbers", []int{}, add, opts...)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func stored(t *testing.T, kv storage.KV, key string) []int {
	t.Helper()
	data, err := kv.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s): %v", key, err)
	}
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func TestNewWritesInitialState(t *testing.T) {
	kv := memory.New()
	s := newTestStore(t, kv)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := stored(t, kv, "numbers"); len(got) != 0 {
		t.Fatalf("stored = %v, want []", got)
	}
	if s.Loaded() {
		t.Fatalf("Loaded() = true for empty storage")
	}
}

func TestNewReadsExistingState(t *testing.T) {
	kv := memory.New()
	_ = kv.Put(context.Background(), "numbers", []byte(`[4,5]`))

	s := newTestStore(t, kv)
	if got := s.State(); len(got) != 2 || got[1] != 5 {
		t.Fatalf("State() = %v, want [4 5]", got)
	}
	if !s.Loaded() {
		t.Fatalf("Loaded() = false, want true")
	}
}

func TestNewFallsBackOnCorruptState(t *testing.T) {
	kv := memory.New()
	_ = kv.Put(context.Background(), "numbers", []byte(`{not json`))

	s := newTestStore(t, kv)
	if got := s.State(); len(got) != 0 {
		t.Fatalf("State() = %v, want initial", got)
	}
	_ = s.Flush(context.Background())
	if got := stored(t, kv, "numbers"); len(got) != 0 {
		t.Fatalf("corrupt value should be overwritten with initial, got %v", got)
	}
}

func TestFallbackUsedWhenStorageEmpty(t *testing.T) {
	kv := memory.New()
	s := newTestStore(t, kv, WithFallback(func(context.Context) ([]int, error) {
		return []int{9}, nil
	}))
	if got := s.State(); len(got) != 1 || got[0] != 9 {
		t.Fatalf("State() = %v, want [9]", got)
	}
}

func TestFallbackErrorUsesInitial(t *testing.T) {
	kv := memory.New()
	s := newTestStore(t, kv, WithFallback(func(context.Context) ([]int, error) {
		return nil, errors.New("remote down")
	}))
	if got := s.State(); got == nil || len(got) != 0 {
		t.Fatalf("State() = %#v, want empty initial", got)
	}
}

func TestFallbackIgnoredWhenStored(t *testing.T) {
	kv := memory.New()
	_ = kv.Put(context.Background(), "numbers", []byte(`[1]`))
	called := false
	s := newTestStore(t, kv, WithFallback(func(context.Context) ([]int, error) {
		called = true
		return []int{9}, nil
	}))
	if called {
		t.Fatalf("fallback should not run when storage has state")
	}
	if got := s.State(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("State() = %v", got)
	}
}

func TestDispatchPersists(t *testing.T) {
	kv := memory.New()
	s := newTestStore(t, kv)

	s.Dispatch(1)
	got := s.Dispatch(2)
	if len(got) != 2 {
		t.Fatalf("Dispatch returned %v", got)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := stored(t, kv, "numbers"); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("stored = %v, want [1 2]", got)
	}
}

func TestDispatchIsSequential(t *testing.T) {
	kv := memory.New()
	s := newTestStore(t, kv)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Dispatch(n)
		}(i)
	}
	wg.Wait()

	if got := len(s.State()); got != 50 {
		t.Fatalf("len(State()) = %d, want 50", got)
	}
	_ = s.Flush(context.Background())
	if got := len(stored(t, kv, "numbers")); got != 50 {
		t.Fatalf("stored len = %d, want 50", got)
	}
}

type failingKV struct {
	*memory.Store
	mu    sync.Mutex
	puts  int
	delay time.Duration
	fail  bool
}

func (f *failingKV) Put(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	f.puts++
	fail, delay := f.fail, f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return errors.New("quota exceeded")
	}
	return f.Store.Put(ctx, key, value)
}

func (f *failingKV) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func TestWriteFailureKeepsMemoryState(t *testing.T) {
	kv := &failingKV{Store: memory.New(), fail: true}
	s := newTestStore(t, kv)

	got := s.Dispatch(7)
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("Dispatch = %v, want [7]", got)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if st := s.State(); len(st) != 1 {
		t.Fatalf("State() = %v after failed write", st)
	}
	if _, err := kv.Store.Get(context.Background(), "numbers"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("nothing should have been stored, got %v", err)
	}
}

func TestWritesCoalesce(t *testing.T) {
	kv := &failingKV{Store: memory.New(), delay: 20 * time.Millisecond}
	s := newTestStore(t, kv)

	for i := 0; i < 20; i++ {
		s.Dispatch(i)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if n := kv.putCount(); n >= 21 {
		t.Fatalf("expected coalesced writes, got %d puts", n)
	}
	if got := stored(t, kv.Store, "numbers"); len(got) != 20 {
		t.Fatalf("last write should hold the latest state, got %v", got)
	}
}

func TestCloseFlushesAndStopsPersisting(t *testing.T) {
	kv := memory.New()
	s := New(context.Background(), kv, "numbers", []int{}, add, WithLogger[[]int](log.Discard()))

	s.Dispatch(1)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := stored(t, kv, "numbers"); len(got) != 1 {
		t.Fatalf("stored after close = %v, want [1]", got)
	}

	s.Dispatch(2)
	if got := s.State(); len(got) != 2 {
		t.Fatalf("State() = %v, want in-memory update after close", got)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush after close: %v", err)
	}
	if got := stored(t, kv, "numbers"); len(got) != 1 {
		t.Fatalf("stored = %v, closed store should not persist", got)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestFlushHonoursContext(t *testing.T) {
	kv := &failingKV{Store: memory.New(), delay: 200 * time.Millisecond}
	s := newTestStore(t, kv)
	s.Dispatch(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Flush error = %v, want deadline exceeded", err)
	}
}
