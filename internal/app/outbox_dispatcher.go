package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/upbank/core-service/internal/store"
	"github.com/upbank/core-service/pkg/metrics"
	"go.uber.org/zap"
)

var errInvalidOutboxPayload = errors.New("outbox payload is not valid JSON")

const (
	defaultBatchSize       = 50
	defaultPollInterval    = 1200 * time.Millisecond
	defaultStaleProcessing = 2 * time.Minute
)

// PublisherFactory connects to the broker. The dispatcher calls it lazily and again after any
// publish failure.
type PublisherFactory func() (EventPublisher, error)

// OutboxDispatcher drains the event_outbox table to the configured broker.
type OutboxDispatcher struct {
	repo                store.OutboxStore
	connect             PublisherFactory
	batchSize           int
	pollInterval        time.Duration
	staleProcessingTime time.Duration
	producer            EventPublisher
	metrics             *metrics.Collector
	logger              *zap.Logger
}

func NewOutboxDispatcher(repo store.OutboxStore, connect PublisherFactory, logger *zap.Logger) *OutboxDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxDispatcher{
		repo:                repo,
		connect:             connect,
		batchSize:           defaultBatchSize,
		pollInterval:        defaultPollInterval,
		staleProcessingTime: defaultStaleProcessing,
		logger:              logger.With(zap.String("component", "outbox_dispatcher")),
	}
}

// WithBatch overrides the batch size and the poll interval. Non-positive values keep the defaults.
func (d *OutboxDispatcher) WithBatch(batchSize int, pollInterval time.Duration) *OutboxDispatcher {
	if batchSize > 0 {
		d.batchSize = batchSize
	}
	if pollInterval > 0 {
		d.pollInterval = pollInterval
	}
	return d
}

func (d *OutboxDispatcher) WithMetrics(collector *metrics.Collector) *OutboxDispatcher {
	d.metrics = collector
	return d
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	defer d.closeProducer()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.FlushOnce(ctx); err != nil {
				d.logger.Warn("outbox flush error", zap.Error(err))
			}
		}
	}
}

// FlushOnce claims one batch and publishes it.
func (d *OutboxDispatcher) FlushOnce(ctx context.Context) error {
	staleAfterSeconds := int(d.staleProcessingTime.Seconds())
	messages, err := d.repo.ClaimOutboxMessages(ctx, d.batchSize, staleAfterSeconds)
	if err != nil {
		return err
	}

	for _, message := range messages {
		if err := d.publishMessage(ctx, message); err != nil {
			retryAfter := retryDelaySeconds(message.Attempts)
			d.logger.Warn("outbox publish failed",
				zap.Int64("outbox_id", message.ID),
				zap.String("routing_key", message.RoutingKey),
				zap.Int("attempts", message.Attempts),
				zap.Int("retry_after_seconds", retryAfter),
				zap.Error(err),
			)
			d.metrics.RecordOutbox("failed")
			if markErr := d.repo.MarkOutboxFailed(ctx, message.ID, retryAfter, err.Error()); markErr != nil {
				d.logger.Error("failed to mark outbox message as failed", zap.Int64("outbox_id", message.ID), zap.Error(markErr))
			}
			continue
		}
		d.metrics.RecordOutbox("published")
		if err := d.repo.MarkOutboxPublished(ctx, message.ID); err != nil {
			d.logger.Error("failed to mark outbox message as published", zap.Int64("outbox_id", message.ID), zap.Error(err))
		}
	}
	return nil
}

func (d *OutboxDispatcher) publishMessage(ctx context.Context, message store.OutboxMessage) error {
	if d.producer == nil {
		producer, err := d.connect()
		if err != nil {
			return err
		}
		d.producer = producer
	}

	if !json.Valid(message.Payload) {
		return errInvalidOutboxPayload
	}

	if err := d.producer.Publish(ctx, message.Exchange, message.RoutingKey, json.RawMessage(message.Payload)); err != nil {
		d.closeProducer()
		return err
	}
	return nil
}

func (d *OutboxDispatcher) closeProducer() {
	if d.producer != nil {
		d.producer.Close()
		d.producer = nil
	}
}

// retryDelaySeconds doubles per attempt and caps at five minutes.
func retryDelaySeconds(attempt int) int {
	if attempt < 1 {
		return 1
	}
	delay := 1 << min(attempt, 8)
	if delay > 300 {
		return 300
	}
	return delay
}
