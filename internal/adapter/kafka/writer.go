// Package kafka publishes usage events describing served data requests.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/oceanvis/llc4320-gateway/internal/config"
	"github.com/oceanvis/llc4320-gateway/internal/domain"
	"github.com/oceanvis/llc4320-gateway/internal/observability"
)

// publishTimeout bounds how long a request may wait on the broker. Usage
// publishing is best effort and must not stall slice responses.
const publishTimeout = 2 * time.Second

// UsageWriter produces usage events to the configured topic.
// It implements service.UsageRecorder.
type UsageWriter struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewUsageWriter creates a Kafka producer for the usage-event topic.
func NewUsageWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *UsageWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaUsageTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}
	return &UsageWriter{writer: w, logger: logger, metrics: metrics}
}

// Record serializes and publishes one usage event. Failures are logged and
// counted, never returned: the API response must not depend on the broker.
func (w *UsageWriter) Record(ctx context.Context, evt domain.UsageEvent) {
	msg, err := buildMessage(evt)
	if err != nil {
		w.logger.Warn("serialize usage event failed", "error", err)
		w.metrics.UsageEvents.WithLabelValues("failed").Inc()
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := w.writer.WriteMessages(writeCtx, msg); err != nil {
		w.logger.Warn("publish usage event failed", "error", err, "endpoint", evt.Endpoint)
		w.metrics.UsageEvents.WithLabelValues("failed").Inc()
		return
	}
	w.metrics.UsageEvents.WithLabelValues("published").Inc()
}

// Close flushes and closes the producer.
func (w *UsageWriter) Close() error {
	return w.writer.Close()
}

// buildMessage keys events by field so per-field consumers stay ordered.
func buildMessage(evt domain.UsageEvent) (kafkago.Message, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return kafkago.Message{}, err
	}
	headers := []kafkago.Header{
		{Key: "endpoint", Value: []byte(evt.Endpoint)},
	}
	if evt.RequestID != "" {
		headers = append(headers, kafkago.Header{Key: "request_id", Value: []byte(evt.RequestID)})
	}
	return kafkago.Message{
		Key:     []byte(evt.Field),
		Value:   value,
		Headers: headers,
		Time:    evt.At,
	}, nil
}
