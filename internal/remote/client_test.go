package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"eventboard/internal/log"
	"eventboard/internal/metrics"
)

func newTestClient(t *testing.T, h http.Handler, cacheSize int) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", Timeout: time.Second, CacheSize: cacheSize}, log.Discard(), metrics.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, &calls
}

func TestGetPost(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/posts/3" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":3,"title":"Fair","body":"Norse"}`))
	}), 0)

	p, err := c.GetPost(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if p != (Post{ID: 3, Title: "Fair", Body: "Norse"}) {
		t.Fatalf("GetPost = %+v", p)
	}
	if rec := p.Record(); rec.Name != "Fair" || rec.Ancestry != "Norse" {
		t.Fatalf("Record() = %+v", rec)
	}
}

func TestGetPostAcceptsStringID(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"101","title":"x","body":"y"}`))
	}), 0)

	p, err := c.GetPost(context.Background(), 101)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if p.ID != 101 {
		t.Fatalf("ID = %d, want 101", p.ID)
	}
}

func TestGetPostErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		notFound bool
	}{
		{"not found", http.StatusNotFound, "", true},
		{"server error", http.StatusInternalServerError, "boom", false},
		{"bad json", http.StatusOK, "{", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}), 0)
			_, err := c.GetPost(context.Background(), 1)
			if err == nil {
				t.Fatalf("expected error")
			}
			if errors.Is(err, ErrNotFound) != tt.notFound {
				t.Fatalf("errors.Is(err, ErrNotFound) = %v, want %v (err=%v)", !tt.notFound, tt.notFound, err)
			}
		})
	}
}

func TestGetPostUnreachable(t *testing.T) {
	c, err := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, log.Discard(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.GetPost(context.Background(), 1); err == nil {
		t.Fatalf("expected error for unreachable server")
	}
}

func TestGetPostCachesAndInvalidates(t *testing.T) {
	c, calls := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"title":"a","body":"b"}`))
	}), 8)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.GetPost(ctx, 1); err != nil {
			t.Fatalf("GetPost: %v", err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("server calls = %d, want 1", n)
	}

	c.Invalidate(1)
	if _, err := c.GetPost(ctx, 1); err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("server calls after invalidate = %d, want 2", n)
	}
}

func TestInvalidateDuringFetchIsNotCached(t *testing.T) {
	var title atomic.Value
	title.Store("before")
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var first atomic.Bool
	first.Store(true)

	c, calls := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := `{"id":1,"title":"` + title.Load().(string) + `","body":"b"}`
		if first.CompareAndSwap(true, false) {
			started <- struct{}{}
			<-release
		}
		_, _ = w.Write([]byte(body))
	}), 8)
	ctx := context.Background()

	done := make(chan Post, 1)
	go func() {
		p, _ := c.GetPost(ctx, 1)
		done <- p
	}()
	<-started
	title.Store("after")
	c.Invalidate(1)
	close(release)
	if p := <-done; p.Title != "before" {
		t.Fatalf("in-flight GetPost title = %q, want %q", p.Title, "before")
	}

	p, err := c.GetPost(ctx, 1)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if p.Title != "after" {
		t.Errorf("GetPost title = %q, want %q", p.Title, "after")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("server calls = %d, want 2", n)
	}
}

func TestGetPostCollapsesConcurrentFetches(t *testing.T) {
	release := make(chan struct{})
	c, calls := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"id":2,"title":"a","body":"b"}`))
	}), 0)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetPost(context.Background(), 2)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("server calls = %d, want 1", n)
	}
}

func TestRecords(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/posts" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"title":"a","body":"x"},{"id":2,"title":"b","body":"y"}]`))
	}), 0)

	recs, err := c.Records(context.Background())
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 2 || recs[1].Name != "b" || recs[1].Ancestry != "y" {
		t.Fatalf("Records = %+v", recs)
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "ftp://x"}, nil, nil); err == nil {
		t.Fatalf("expected error for ftp scheme")
	}
}
