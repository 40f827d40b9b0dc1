// Package kafka publishes outbox events to Kafka as an alternative to RabbitMQ. The exchange
// name becomes the topic and the routing key becomes the message key.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type EventProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// ParseBrokers splits a comma separated broker list and drops blanks.
func ParseBrokers(raw string) []string {
	brokers := make([]string, 0)
	for _, broker := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

func NewEventProducer(brokers []string, logger *zap.Logger) (*EventProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "kafka_producer"))

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		AllowAutoTopicCreation: true,
		Logger:                 kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	}
	return &EventProducer{writer: writer, logger: logger}, nil
}

// Publish writes body as JSON. It blocks until the brokers acknowledge the write.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	value, err := json.Marshal(body)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: exchange,
		Key:   []byte(routingKey),
		Value: value,
		Time:  time.Now(),
	}

	produceCtx, cancel := context.WithTimeout(ctx, p.writer.WriteTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(produceCtx, msg); err != nil {
		p.logger.Error("failed to produce message", zap.String("topic", exchange), zap.String("key", routingKey), zap.Error(err))
		return fmt.Errorf("failed to produce message to kafka: %w", err)
	}
	p.logger.Debug("message produced", zap.String("topic", exchange), zap.String("key", routingKey))
	return nil
}

func (p *EventProducer) Close() {
	if p.writer == nil {
		return
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Error("failed to close kafka producer", zap.Error(err))
	}
}
