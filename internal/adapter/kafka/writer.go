// Package kafka publishes exported risk records to a Kafka topic for
// downstream consumers that want push delivery instead of polling the
// processed CSV.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/federalrisk/county-risk-etl/internal/config"
	"github.com/federalrisk/county-risk-etl/internal/domain"
)

// Writer produces risk records to the configured sink topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the risk score topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishBatch serializes and publishes all risk records in a single
// WriteMessages call. Messages for the same county share a key, so consumers
// on a compacted topic keep only the newest score per county.
func (w *Writer) PublishBatch(ctx context.Context, records []domain.RiskRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish risk records: %w", err)
	}
	w.logger.Info("published risk records", "count", len(records))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a RiskRecord into a Kafka message.
func serializeToMessage(rec domain.RiskRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize risk record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(countyKey(rec)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "region", Value: []byte(rec.Region)},
			{Key: "generated_at", Value: []byte(rec.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}

func countyKey(rec domain.RiskRecord) string {
	return strings.ToLower(rec.County) + "|" + strings.ToLower(rec.State)
}
