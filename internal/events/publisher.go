// Package events publishes search lifecycle events for downstream analytics.
//
// # Overview
//
// After a search response is composed the orchestrator submits a background
// task that publishes a domain.SearchCompletedEvent. Publishing never affects
// the response: failures are logged by the caller and dropped.
//
// # Publishers
//
//   - KafkaPublisher: writes JSON events to a Kafka topic keyed by language
//   - NopPublisher: discards events when Kafka is disabled
//
// # Usage
//
//	pub := events.NewKafkaPublisher(events.KafkaConfig{
//	    Brokers: []string{"localhost:9092"},
//	    Topic:   "events.paper_search_service",
//	}, logger)
//	defer pub.Close()
//
//	err := pub.Publish(ctx, domain.NewSearchCompletedEvent(hash, "ja", 1, 50, 120))
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/paper-search-service/internal/domain"
)

const (
	// DefaultServiceName is the source header attached to every event.
	DefaultServiceName = "paper-search-service"

	headerEventType = "event_type"
	headerSource    = "source"
)

// Publisher delivers search events.
type Publisher interface {
	Publish(ctx context.Context, event *domain.SearchCompletedEvent) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, *domain.SearchCompletedEvent) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures a KafkaPublisher.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the destination topic.
	Topic string
	// BatchSize is the maximum number of messages per batch.
	BatchSize int
	// BatchTimeout is the maximum time to wait for a batch to fill.
	BatchTimeout time.Duration
	// ServiceName is sent as the source header.
	ServiceName string
}

// KafkaPublisher writes events to Kafka.
type KafkaPublisher struct {
	writer      messageWriter
	serviceName string
	logger      zerolog.Logger
}

// NewKafkaPublisher creates a publisher backed by a kafka.Writer.
func NewKafkaPublisher(cfg KafkaConfig, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, cfg.ServiceName, logger)
}

func newKafkaPublisher(writer messageWriter, serviceName string, logger zerolog.Logger) *KafkaPublisher {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	return &KafkaPublisher{
		writer:      writer,
		serviceName: serviceName,
		logger:      logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish writes event as a JSON message keyed by its language.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.SearchCompletedEvent) error {
	if event == nil {
		return errors.New("event is required")
	}
	if event.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Language),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.EventType)},
			{Key: headerSource, Value: []byte(p.serviceName)},
		},
		Time: event.CreatedAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", event.EventType, err)
	}

	p.logger.Debug().
		Str("event_id", event.EventID).
		Str("event_type", event.EventType).
		Msg("published event")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info().Msg("closing event publisher")
	return p.writer.Close()
}
