package sheets

import (
	"context"

	"eventboard/internal/core"
)

// Ports for outbound export targets.
type (
	// EventExporter replaces the target's copy of the event list with posts.
	EventExporter interface {
		Export(ctx context.Context, posts []core.Record) error
	}

	// EventReader reads back what was last exported.
	EventReader interface {
		ReadEvents(ctx context.Context) ([]core.Record, error)
	}
)
