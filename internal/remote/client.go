// Package remote reads single records from the REST collection at
// {base}/posts. There is no retry: callers decide what a failure looks like.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"eventboard/internal/cache"
	"eventboard/internal/core"
	"eventboard/internal/log"
	"eventboard/internal/metrics"
)

var ErrNotFound = errors.New("remote record not found")

// Post is the wire shape of the remote collection.
type Post struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// FromRecord maps a record onto the wire shape.
func FromRecord(r core.Record) Post {
	return Post{ID: r.ID, Title: r.Name, Body: r.Ancestry}
}

// Record maps the wire shape onto a record.
func (p Post) Record() core.Record {
	return core.Record{ID: p.ID, Name: p.Title, Ancestry: p.Body}
}

// UnmarshalJSON accepts ids sent as strings.
func (p *Post) UnmarshalJSON(data []byte) error {
	var r core.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*p = FromRecord(r)
	return nil
}

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

type Client struct {
	base    *url.URL
	http    *http.Client
	cache   *cache.LRUCache[Post]
	group   singleflight.Group
	logger  *log.Logger
	metrics *metrics.Metrics

	// invalidations counts Invalidate calls; a fetch that overlapped one is
	// not cached.
	invMu         sync.Mutex
	invalidations uint64
}

// New builds a client. A zero CacheSize disables caching.
func New(cfg Config, logger *log.Logger, m *metrics.Metrics) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse remote base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote base URL must be http or https, got %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &Client{
		base:    base,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.WithComponent(log.ComponentRemote),
		metrics: m,
	}
	if cfg.CacheSize > 0 {
		ttl := cfg.CacheTTL
		if ttl <= 0 {
			ttl = time.Minute
		}
		c.cache = cache.NewLRUCache[Post](cfg.CacheSize, ttl)
		c.cache.Observe(func(hit bool) { m.CacheLookup("remote", hit) })
	}
	return c, nil
}

// Cache exposes the response cache so a cache.Manager can clean it.
func (c *Client) Cache() *cache.LRUCache[Post] {
	return c.cache
}

func (c *Client) postURL(parts ...string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/posts"
	for _, p := range parts {
		u.Path += "/" + url.PathEscape(p)
	}
	return u.String()
}

// GetPost fetches GET {base}/posts/{id}.
func (c *Client) GetPost(ctx context.Context, id int) (Post, error) {
	key := strconv.Itoa(id)
	if c.cache != nil {
		if p, ok := c.cache.Get(key); ok {
			return p, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		gen := c.generation()
		var p Post
		if err := c.getJSON(ctx, c.postURL(key), &p); err != nil {
			return Post{}, err
		}
		c.store(key, p, gen)
		return p, nil
	})
	if err != nil {
		c.metrics.RemoteFetch(outcome(err))
		return Post{}, err
	}
	c.metrics.RemoteFetch("ok")
	return v.(Post), nil
}

// ListPosts fetches GET {base}/posts.
func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	var posts []Post
	if err := c.getJSON(ctx, c.postURL(), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Records fetches the collection as records, for seeding the event list.
func (c *Client) Records(ctx context.Context) ([]core.Record, error) {
	posts, err := c.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Record, len(posts))
	for i, p := range posts {
		out[i] = p.Record()
	}
	c.logger.InfoContext(ctx, "Fetched remote collection", log.FieldCount, len(out))
	return out, nil
}

func (c *Client) generation() uint64 {
	c.invMu.Lock()
	defer c.invMu.Unlock()
	return c.invalidations
}

// store caches p unless an invalidation happened since gen was read.
func (c *Client) store(key string, p Post, gen uint64) {
	if c.cache == nil {
		return
	}
	c.invMu.Lock()
	defer c.invMu.Unlock()
	if c.invalidations != gen {
		return
	}
	c.cache.Set(key, p)
}

// Invalidate drops the cached copy of id. Fetches already in flight are
// neither cached nor shared with later callers.
func (c *Client) Invalidate(id int) {
	key := strconv.Itoa(id)
	c.invMu.Lock()
	c.invalidations++
	if c.cache != nil {
		c.cache.Delete(key)
	}
	c.invMu.Unlock()
	c.group.Forget(key)
}

func (c *Client) getJSON(ctx context.Context, target string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Remote request failed", log.FieldURL, target, log.FieldError, err)
		return fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Remote request completed",
		log.FieldURL, target,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("get %s: %w", target, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("get %s: unexpected status %d: %s", target, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}
