package services

import (
	"context"

	"eventboard/internal/amqp"
	"eventboard/internal/core"
	"eventboard/internal/log"
	"eventboard/internal/metrics"
	"eventboard/internal/provider"
)

// Publisher sends change messages to the broker.
type Publisher interface {
	PublishPostsChanged(ctx context.Context, msg *amqp.PostsChangedMessage) error
}

// Invalidator drops a cached copy of a single record.
type Invalidator interface {
	Invalidate(id int)
}

// ChangeNotifier reacts to applied actions: it invalidates cached remote
// copies and announces the change on the broker. Failures are logged and
// counted; the dispatch that triggered them has already succeeded.
type ChangeNotifier struct {
	publisher   Publisher
	invalidator Invalidator
	logger      *log.Logger
	metrics     *metrics.Metrics
}

// NewChangeNotifier accepts nil for either collaborator.
func NewChangeNotifier(publisher Publisher, invalidator Invalidator, logger *log.Logger, m *metrics.Metrics) *ChangeNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &ChangeNotifier{
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger.WithComponent(log.ComponentAMQP),
		metrics:     m,
	}
}

// Listener adapts the notifier for provider.Subscribe.
func (n *ChangeNotifier) Listener() provider.Listener {
	return n.Notify
}

func (n *ChangeNotifier) Notify(ctx context.Context, c provider.Change) {
	if c.Action == nil {
		return
	}
	if _, ok := c.Action.(core.Unknown); ok {
		return
	}

	id, targeted := core.TargetID(c.Action)
	if targeted && n.invalidator != nil {
		n.invalidator.Invalidate(id)
	}
	if _, ok := c.Action.(core.Added); ok && len(c.Posts) > 0 {
		id, targeted = c.Posts[len(c.Posts)-1].ID, true
	}

	if n.publisher == nil {
		return
	}

	var idp *int
	if targeted {
		idp = &id
	}
	msg := amqp.NewPostsChangedMessage(string(c.Action.Type()), idp, c.Version, len(c.Posts))
	err := n.publisher.PublishPostsChanged(ctx, msg)
	n.metrics.Published(err)
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to publish change message",
			log.FieldError, err,
			log.FieldMessageID, msg.MessageID,
			log.FieldAction, msg.Action,
			log.FieldVersion, msg.Version)
	}
}
