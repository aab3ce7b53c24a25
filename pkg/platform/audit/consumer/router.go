package consumer

import (
	"context"
	"log/slog"

	"estateproof/internal/platform/kafka/consumer"
	"estateproof/pkg/platform/audit"
)

// TopicHandler handles messages consumed from one audit topic.
type TopicHandler interface {
	Handle(ctx context.Context, msg *consumer.Message) error
}

// Router dispatches consumed messages to the handler registered for their
// event category. A message on an unrouted topic is committed after a
// warning so a stray subscription cannot wedge the consumer group.
type Router struct {
	handlers map[string]TopicHandler
	logger   *slog.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		handlers: make(map[string]TopicHandler),
		logger:   logger,
	}
}

// Register binds a handler to an event category's topic.
func (r *Router) Register(category audit.EventCategory, handler TopicHandler) {
	r.handlers[audit.TopicForCategory(category)] = handler
}

// Handle routes the message by its topic.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	handler, ok := r.handlers[msg.Topic]
	if !ok {
		r.logger.Warn("message on unrouted audit topic, committing",
			"topic", msg.Topic,
			"key", string(msg.Key),
		)
		return nil
	}
	return handler.Handle(ctx, msg)
}
