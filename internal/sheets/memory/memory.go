// Package memory is an in-process export target, used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"eventboard/internal/core"
	ports "eventboard/internal/sheets"
)

type Exporter struct {
	mu       sync.Mutex
	last     []core.Record
	exports  int
	exported time.Time
	err      error
}

var (
	_ ports.EventExporter = (*Exporter)(nil)
	_ ports.EventReader   = (*Exporter)(nil)
)

func New() *Exporter {
	return &Exporter{}
}

// FailWith makes subsequent exports return err. Pass nil to recover.
func (e *Exporter) FailWith(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

func (e *Exporter) Export(ctx context.Context, posts []core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.last = core.Clone(posts)
	e.exports++
	e.exported = time.Now()
	return nil
}

func (e *Exporter) ReadEvents(_ context.Context) ([]core.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return core.Clone(e.last), nil
}

// Exports reports how many exports succeeded and when the last one ran.
func (e *Exporter) Exports() (int, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports, e.exported
}
