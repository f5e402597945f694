package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"eventboard/internal/core"
	"eventboard/internal/log"
	"eventboard/internal/metrics"
	"eventboard/internal/provider"
	"eventboard/internal/sheets"
	"eventboard/internal/storage"
)

// Mirror triggers
const (
	TriggerMessage  = "message"
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
)

// MirrorService copies the persisted event list to an export target.
type MirrorService struct {
	source   storage.KV
	exporter sheets.EventExporter
	logger   *log.Logger
	metrics  *metrics.Metrics

	// serialises exports so a message and the schedule never interleave
	mu       sync.Mutex
	lastRun  time.Time
	lastSize int
}

func NewMirrorService(source storage.KV, exporter sheets.EventExporter, logger *log.Logger, m *metrics.Metrics) *MirrorService {
	if logger == nil {
		logger = log.Default()
	}
	return &MirrorService{
		source:   source,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
		metrics:  m,
	}
}

// Load reads the current list from storage. A missing key is an empty list.
func (s *MirrorService) Load(ctx context.Context) ([]core.Record, error) {
	data, err := s.source.Get(ctx, provider.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []core.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", provider.StorageKey, err)
	}
	var posts []core.Record
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("decode %s: %w", provider.StorageKey, err)
	}
	return core.Reduce(nil, core.Initialise{Posts: posts}), nil
}

// Run mirrors the current list once.
func (s *MirrorService) Run(ctx context.Context, trigger string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	posts, err := s.Load(ctx)
	if err == nil {
		err = s.exporter.Export(ctx, posts)
	}
	s.metrics.Mirrored(trigger, err)
	if err != nil {
		s.logger.ErrorContext(ctx, "Mirror failed",
			log.FieldOperation, log.OpMirror,
			"trigger", trigger,
			log.FieldError, err)
		return fmt.Errorf("mirror (%s): %w", trigger, err)
	}

	s.lastRun, s.lastSize = time.Now(), len(posts)
	s.logger.InfoContext(ctx, "Mirrored event list",
		log.FieldOperation, log.OpMirror,
		"trigger", trigger,
		log.FieldCount, len(posts),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// LastRun reports when the last successful mirror finished and how many
// records it wrote.
func (s *MirrorService) LastRun() (time.Time, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastSize
}
