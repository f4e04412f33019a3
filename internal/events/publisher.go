// Package events connects harvest runs to Kafka: a publisher announcing
// finished runs and a listener accepting harvest requests.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/disease-literature-harvester/internal/config"
	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/observability"
)

// HeaderEventType carries the event type on every published message.
const HeaderEventType = "event_type"

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes one event per finished run, keyed by run ID.
type KafkaPublisher struct {
	writer  messageWriter
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic. metrics may be nil.
func NewKafkaPublisher(cfg config.KafkaConfig, logger zerolog.Logger, metrics *observability.Metrics) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaPublisher(writer, logger, metrics), nil
}

func newKafkaPublisher(w messageWriter, logger zerolog.Logger, metrics *observability.Metrics) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  w,
		logger:  observability.WithComponent(logger, "event_publisher"),
		metrics: metrics,
	}
}

// PublishRunCompleted publishes harvest.completed, or harvest.cancelled for a
// cancelled run.
func (p *KafkaPublisher) PublishRunCompleted(ctx context.Context, c *domain.Corpus) error {
	if c == nil {
		return domain.NewValidationError("corpus", "corpus is required")
	}
	m := c.Metadata

	eventType := domain.EventTypeHarvestCompleted
	if m.Cancelled {
		eventType = domain.EventTypeHarvestCancelled
	}
	event, err := domain.NewEvent(eventType, m.RunID, domain.HarvestCompletedPayload{
		RunID:            m.RunID,
		Query:            m.Query,
		CanonicalRecords: c.Len(),
		PerSourceCounts:  m.PerSourceCounts,
		PerSourceErrors:  m.PerSourceErrors,
		Cancelled:        m.Cancelled,
		Duration:         m.Elapsed,
	})
	if err != nil {
		return fmt.Errorf("build event: %w", err)
	}
	return p.publish(ctx, event)
}

// PublishRunStarted publishes harvest.started for a planned run.
func (p *KafkaPublisher) PublishRunStarted(ctx context.Context, runID string, q domain.Query) error {
	event, err := domain.NewEvent(domain.EventTypeHarvestStarted, runID, domain.HarvestStartedPayload{
		RunID: runID,
		Query: q,
	})
	if err != nil {
		return fmt.Errorf("build event: %w", err)
	}
	return p.publish(ctx, event)
}

func (p *KafkaPublisher) publish(ctx context.Context, event *domain.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.RunID),
		Value: value,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		if p.metrics != nil {
			p.metrics.RecordEventFailed()
		}
		return fmt.Errorf("write %s event: %w", event.EventType, err)
	}

	if p.metrics != nil {
		p.metrics.RecordEventPublished()
	}
	p.logger.Info().
		Str("run_id", event.RunID).
		Str("event_type", event.EventType).
		Str("event_id", event.EventID).
		Msg("published run event")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
