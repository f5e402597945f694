package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"eventboard/internal/amqp"
	"eventboard/internal/log"
	"eventboard/internal/services"
)

type fakeMirror struct {
	mu       sync.Mutex
	triggers []string
	err      error
}

func (f *fakeMirror) Run(_ context.Context, trigger string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	return f.err
}

func (f *fakeMirror) count(trigger string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.triggers {
		if t == trigger {
			n++
		}
	}
	return n
}

func TestNewMirrorWorkerSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		want     string
		wantErr  bool
	}{
		{"default", "", DefaultSchedule, false},
		{"descriptor", "@hourly", "@hourly", false},
		{"five fields", "*/10 * * * *", "*/10 * * * *", false},
		{"garbage", "every so often", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewMirrorWorker(&fakeMirror{}, tt.schedule, log.Discard())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewMirrorWorker() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && w.schedule != tt.want {
				t.Errorf("schedule = %q, want %q", w.schedule, tt.want)
			}
		})
	}
}

func TestHandlePostsChanged(t *testing.T) {
	m := &fakeMirror{}
	w, _ := NewMirrorWorker(m, "", log.Discard())

	id := 1
	if err := w.HandlePostsChanged(context.Background(), amqp.NewPostsChangedMessage("added", &id, 1, 1)); err != nil {
		t.Fatalf("HandlePostsChanged: %v", err)
	}
	if m.count(services.TriggerMessage) != 1 {
		t.Fatalf("triggers = %v", m.triggers)
	}

	m.err = errors.New("sheet locked")
	if err := w.HandlePostsChanged(context.Background(), amqp.NewPostsChangedMessage("removed", &id, 2, 0)); err == nil {
		t.Fatal("expected mirror error to be returned so the message is requeued")
	}
}

func TestHandlePostsChangedSkipsUnrecognisedActions(t *testing.T) {
	m := &fakeMirror{}
	w, _ := NewMirrorWorker(m, "", log.Discard())

	for _, action := range []string{"initialise", "bogus", ""} {
		t.Run(action, func(t *testing.T) {
			if err := w.HandlePostsChanged(context.Background(), amqp.NewPostsChangedMessage(action, nil, 1, 0)); err != nil {
				t.Fatalf("HandlePostsChanged: %v", err)
			}
		})
	}
	if got := m.count(services.TriggerMessage); got != 0 {
		t.Errorf("mirror runs = %d, want 0", got)
	}
}

func TestStartupMirror(t *testing.T) {
	m := &fakeMirror{}
	w, _ := NewMirrorWorker(m, "", log.Discard())
	if err := w.StartupMirror(context.Background()); err != nil {
		t.Fatalf("StartupMirror: %v", err)
	}
	if m.count(services.TriggerStartup) != 1 {
		t.Fatalf("triggers = %v", m.triggers)
	}
}

func TestStartStop(t *testing.T) {
	m := &fakeMirror{}
	w, err := NewMirrorWorker(m, "@every 1s", log.Discard())
	if err != nil {
		t.Fatalf("NewMirrorWorker: %v", err)
	}
	ctx := context.Background()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !w.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}
	if err := w.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}

	deadline := time.Now().Add(3 * time.Second)
	for m.count(services.TriggerSchedule) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if m.count(services.TriggerSchedule) == 0 {
		t.Fatal("scheduled mirror never ran")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if w.IsRunning() {
		t.Fatal("IsRunning() = true after Stop")
	}
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
