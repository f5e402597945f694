package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"eventboard/internal/core"
	"eventboard/internal/log"
	"eventboard/internal/metrics"
	"eventboard/internal/middleware/ratelimit"
	"eventboard/internal/middleware/security"
	"eventboard/internal/middleware/trace"
	"eventboard/internal/remote"
	appweb "eventboard/web"
)

// EventStore is the process-wide event list.
type EventStore interface {
	List() []core.Record
	Find(id int) (core.Record, bool)
	Dispatch(ctx context.Context, action core.Action) []core.Record
}

// PostFetcher reads a single record for the detail view.
type PostFetcher interface {
	GetPost(ctx context.Context, id int) (remote.Post, error)
}

// Check is one readiness probe, e.g. storage reachability.
type Check func(ctx context.Context) error

type Options struct {
	Events  EventStore
	Remote  PostFetcher
	Logger  *log.Logger
	Metrics *metrics.Metrics

	RateLimitRPM  int
	RemoteTimeout time.Duration
	Checks        map[string]Check

	// Templates and Static default to the embedded web assets.
	Templates fs.FS
	Static    fs.FS
}

type Server struct {
	http.Server
	events        EventStore
	remote        PostFetcher
	templates     *template.Template
	logger        *log.Logger
	sl            *log.StructuredLogger
	metrics       *metrics.Metrics
	limiter       *ratelimit.Limiter
	detector      *security.Detector
	checks        map[string]Check
	remoteTimeout time.Duration
	started       time.Time

	shutdownOnce sync.Once
}

// NewServer parses templates and wires routes. A template parse failure is
// returned; the caller decides whether to run without pages.
func NewServer(addr string, opts Options) (*Server, error) {
	if opts.Events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	templatesFS := opts.Templates
	if templatesFS == nil {
		templatesFS = appweb.TemplatesFS
	}
	staticFS := opts.Static
	if staticFS == nil {
		sub, err := fs.Sub(appweb.StaticFS, "static")
		if err != nil {
			return nil, fmt.Errorf("mount static assets: %w", err)
		}
		staticFS = sub
	}
	timeout := opts.RemoteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	t, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		events:        opts.Events,
		remote:        opts.Remote,
		templates:     t,
		logger:        logger.WithComponent(log.ComponentHTTP),
		sl:            log.NewStructuredLogger(logger),
		metrics:       opts.Metrics,
		limiter:       ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		detector:      security.NewDetector(),
		checks:        opts.Checks,
		remoteTimeout: timeout,
		started:       time.Now(),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(logger, staticFS),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(logger *log.Logger, staticFS fs.FS) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))))

	r.HandleFunc("/", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/events", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/events", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/events/new", s.handleNewForm).Methods(http.MethodGet)
	r.HandleFunc("/events/{id}", s.handleDetail).Methods(http.MethodGet)
	r.HandleFunc("/events/{id}", s.handleUpdate).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/events/{id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/events/{id}/edit", s.handleEditForm).Methods(http.MethodGet)
	r.HandleFunc("/events/{id}/delete", s.handleDelete).Methods(http.MethodPost)

	ui := r.PathPrefix("/ui").Subrouter()
	ui.HandleFunc("/events/rows", s.handleRows).Methods(http.MethodGet)
	ui.HandleFunc("/events/{id}/detail", s.handleDetailPartial).Methods(http.MethodGet)

	api := r.PathPrefix("/posts").Subrouter()
	api.HandleFunc("", s.handleAPIList).Methods(http.MethodGet)
	api.HandleFunc("/{id}", s.handleAPIGet).Methods(http.MethodGet)

	tm := trace.NewMiddleware(s.detector.ExtractClientIP, logger, s.metrics)
	r.Use(
		tm.Middleware,
		log.Middleware(logger),
		log.RequestIDMiddleware(trace.RequestIDFromRequest),
		s.detector.Middleware(logger),
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited),
	)
	return r
}

// Shutdown stops background helpers and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// render executes a template into a buffer so a failure never leaves a
// half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.sl.LogError(r.Context(), "Template execution failed", err,
			log.ComponentTemplate, log.OpRender, log.LogFields{"template": name})
		InternalServerError("Rendering failed").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError("Not found").Write(w)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, "Too many requests, try again shortly").
		TriggerErrorNotification("Too many requests").
		Write(w)
}
