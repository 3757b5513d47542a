package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/sahayata-dashboard/internal/config"
	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
	"github.com/couchcryptid/sahayata-dashboard/internal/observability"
)

// Event types carried in the event_type header.
const (
	EventSubmission = "submission"
	EventSnapshot   = "heatmap_snapshot"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes relief events to a Kafka topic.
// It implements hazard.SnapshotPublisher and relief.EventPublisher.
type Writer struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a Kafka producer for the configured event topic.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger, metrics: metrics}
}

// PublishSubmission writes one journaled submission outcome, keyed by its ID.
func (w *Writer) PublishSubmission(ctx context.Context, s domain.Submission) error {
	msg, err := submissionMessage(s)
	if err != nil {
		return err
	}
	return w.write(ctx, EventSubmission, msg)
}

// PublishSnapshot writes a heatmap snapshot summary, keyed by source.
func (w *Writer) PublishSnapshot(ctx context.Context, snap domain.HeatSnapshot) error {
	msg, err := snapshotMessage(snap)
	if err != nil {
		return err
	}
	return w.write(ctx, EventSnapshot, msg)
}

func (w *Writer) write(ctx context.Context, eventType string, msg kafkago.Message) error {
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		w.metrics.EventsPublished.WithLabelValues(eventType, "error").Inc()
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	w.metrics.EventsPublished.WithLabelValues(eventType, "success").Inc()
	w.logger.Debug("event published", "type", eventType, "key", string(msg.Key))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// snapshotEvent is the published form of a heatmap snapshot. Points are
// summarized per source rather than sent in full.
type snapshotEvent struct {
	Source     domain.Source     `json:"source"`
	Points     int               `json:"points"`
	Status     map[string]string `json:"status"`
	LastUpdate time.Time         `json:"last_update"`
}

func submissionMessage(s domain.Submission) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize submission: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(s.ID.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventSubmission)},
			{Key: "kind", Value: []byte(s.Kind)},
			{Key: "produced_at", Value: []byte(s.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}

func snapshotMessage(snap domain.HeatSnapshot) (kafkago.Message, error) {
	data, err := json.Marshal(snapshotEvent{
		Source:     snap.Source,
		Points:     len(snap.Points),
		Status:     snap.Status,
		LastUpdate: snap.LastUpdate,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize heatmap snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(snap.Source),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventSnapshot)},
			{Key: "produced_at", Value: []byte(snap.LastUpdate.Format(time.RFC3339))},
		},
	}, nil
}
