package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const directPublishTimeout = 5 * time.Second

// EventPublisher is implemented by the RabbitMQ and Kafka producers.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}

// eventNotifier publishes status-change events directly, outside any database transaction.
// Delivery is best effort: a failure is logged and never fails the operation that raised it.
type eventNotifier struct {
	publisher EventPublisher
	exchange  string
	logger    *zap.Logger
}

func (n *eventNotifier) publish(ctx context.Context, routingKey string, body interface{}) {
	if n == nil || n.publisher == nil {
		return
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), directPublishTimeout)
	defer cancel()
	if err := n.publisher.Publish(publishCtx, n.exchange, routingKey, body); err != nil {
		n.logger.Warn("event publish failed",
			zap.String("exchange", n.exchange),
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}
