// Package worker runs the mirror in response to change messages and on a
// schedule.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"eventboard/internal/amqp"
	"eventboard/internal/core"
	"eventboard/internal/log"
	"eventboard/internal/services"
)

// DefaultSchedule catches changes whose messages were lost.
const DefaultSchedule = "@every 5m"

// Mirrorer is the single operation the worker drives.
type Mirrorer interface {
	Run(ctx context.Context, trigger string) error
}

type MirrorWorker struct {
	mirror   Mirrorer
	schedule string
	logger   *log.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewMirrorWorker validates schedule (standard five-field or @descriptor).
func NewMirrorWorker(mirror Mirrorer, schedule string, logger *log.Logger) (*MirrorWorker, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse mirror schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &MirrorWorker{
		mirror:   mirror,
		schedule: schedule,
		logger:   logger.WithComponent(log.ComponentWorker),
	}, nil
}

// HandlePostsChanged mirrors the current list. The message only signals that
// something changed; the list itself is read from storage. Messages naming an
// unrecognised action are acknowledged without a mirror run.
func (w *MirrorWorker) HandlePostsChanged(ctx context.Context, msg *amqp.PostsChangedMessage) error {
	if core.ParseActionType(msg.Action) == core.ActionUnknown {
		w.logger.WarnContext(ctx, "Skipping message with unrecognised action",
			log.FieldMessageID, msg.MessageID,
			log.FieldAction, msg.Action)
		return nil
	}
	w.logger.InfoContext(ctx, "Processing posts changed message",
		log.FieldMessageID, msg.MessageID,
		log.FieldAction, msg.Action,
		log.FieldVersion, msg.Version)
	return w.mirror.Run(ctx, services.TriggerMessage)
}

// StartupMirror brings the target up to date before messages are consumed.
func (w *MirrorWorker) StartupMirror(ctx context.Context) error {
	return w.mirror.Run(ctx, services.TriggerStartup)
}

// Start begins the scheduled mirror. Overlapping runs are skipped.
func (w *MirrorWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("mirror worker is already running")
	}

	cl := cronLogger{w.logger}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))
	if _, err := c.AddFunc(w.schedule, func() {
		// errors are logged and counted by the mirror service
		_ = w.mirror.Run(ctx, services.TriggerSchedule)
	}); err != nil {
		return fmt.Errorf("schedule mirror: %w", err)
	}
	c.Start()
	w.cron, w.running = c, true

	w.logger.InfoContext(ctx, "Mirror schedule started", "schedule", w.schedule)
	return nil
}

// Stop halts the schedule and waits for a running mirror to finish.
func (w *MirrorWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	c := w.cron
	w.cron, w.running = nil, false
	w.mu.Unlock()

	select {
	case <-c.Stop().Done():
		w.logger.InfoContext(ctx, "Mirror schedule stopped")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Mirror schedule stop timed out")
		return ctx.Err()
	}
}

func (w *MirrorWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// cronLogger routes cron's own messages through the component logger.
type cronLogger struct{ l *log.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{log.FieldError, err}, keysAndValues...)...)
}
