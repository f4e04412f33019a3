package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/disease-literature-harvester/internal/config"
	"github.com/helixir/disease-literature-harvester/internal/harvest"
	"github.com/helixir/disease-literature-harvester/internal/observability"
)

// Starter starts a harvest in the background and returns its run ID.
type Starter interface {
	StartHarvest(ctx context.Context, req harvest.Request) (string, error)
}

// messageReader is the subset of *kafka.Reader the listener uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Listener consumes harvest requests from Kafka and starts a run for each.
type Listener struct {
	reader  messageReader
	starter Starter
	logger  zerolog.Logger
}

// NewListener creates a listener on cfg.RequestTopic.
func NewListener(cfg config.KafkaConfig, starter Starter, logger zerolog.Logger) (*Listener, error) {
	if len(cfg.Brokers) == 0 || cfg.RequestTopic == "" {
		return nil, errors.New("kafka brokers and request topic are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.RequestTopic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
	return newListener(reader, starter, logger), nil
}

func newListener(r messageReader, starter Starter, logger zerolog.Logger) *Listener {
	return &Listener{
		reader:  r,
		starter: starter,
		logger:  observability.WithComponent(logger, "request_listener"),
	}
}

// Run reads requests until ctx is cancelled. Malformed or rejected requests
// are logged and skipped.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting harvest request listener")

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("harvest request listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received harvest request")

		if err := l.handle(ctx, msg); err != nil {
			l.logger.Error().Err(err).
				Str("raw_value", string(msg.Value)).
				Msg("failed to handle harvest request")
		}
	}
}

func (l *Listener) handle(ctx context.Context, msg kafka.Message) error {
	var req harvest.Request
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("unmarshal request: %w", err)
	}

	runID, err := l.starter.StartHarvest(ctx, req)
	if err != nil {
		return fmt.Errorf("start harvest: %w", err)
	}

	l.logger.Info().
		Str("run_id", runID).
		Strs("diseases", req.Diseases).
		Msg("started harvest from request")
	return nil
}

// Close closes the Kafka reader.
func (l *Listener) Close() error {
	l.logger.Info().Msg("closing harvest request listener")
	return l.reader.Close()
}
