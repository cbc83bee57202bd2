//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanvis/llc4320-gateway/internal/adapter/kafka"
	"github.com/oceanvis/llc4320-gateway/internal/config"
	"github.com/oceanvis/llc4320-gateway/internal/domain"
	"github.com/oceanvis/llc4320-gateway/internal/observability"
)

const testUsageTopic = "test-usage-events"

// TestUsageWriterRoundTrip publishes a usage event through UsageWriter and
// reads it back from the topic, verifying key, headers, and payload.
func TestUsageWriterRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testUsageTopic)

	cfg := &config.Config{
		KafkaBrokers:    []string{broker},
		KafkaUsageTopic: testUsageTopic,
	}

	metrics := observability.NewMetricsForTesting()
	writer := kafka.NewUsageWriter(cfg, discardLogger(), metrics)
	t.Cleanup(func() { _ = writer.Close() })

	evt := domain.UsageEvent{
		RequestID:    "req-integration-1",
		Endpoint:     "slice",
		Field:        "salt",
		Timestep:     42,
		Region:       domain.Region{LatMin: 20, LatMax: 30, LonMin: -80, LonMax: -70},
		Quality:      -8,
		PayloadBytes: 8192,
		DurationMS:   250,
		At:           time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC),
	}

	// Record is best effort and swallows transient broker errors, so retry
	// until the published counter moves or the deadline passes.
	published := metrics.UsageEvents.WithLabelValues("published")
	for testutil.ToFloat64(published) == 0 {
		require.NoError(t, ctx.Err(), "timed out waiting for usage event to publish")
		writer.Record(ctx, evt)
	}

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testUsageTopic,
		GroupID:     fmt.Sprintf("test-usage-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from usage topic")

	assert.Equal(t, []byte("salt"), msg.Key)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "slice", headers["endpoint"])
	assert.Equal(t, "req-integration-1", headers["request_id"])

	var decoded domain.UsageEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, evt, decoded)
}

// TestUsageWriterBrokerDown verifies that Record never fails the caller even
// when no broker is reachable.
func TestUsageWriterBrokerDown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := &config.Config{
		KafkaBrokers:    []string{"127.0.0.1:1"},
		KafkaUsageTopic: testUsageTopic,
	}

	metrics := observability.NewMetricsForTesting()
	writer := kafka.NewUsageWriter(cfg, discardLogger(), metrics)
	t.Cleanup(func() { _ = writer.Close() })

	writer.Record(ctx, domain.UsageEvent{Endpoint: "slice", Field: "theta"})

	failed := metrics.UsageEvents.WithLabelValues("failed")
	assert.Equal(t, 1.0, testutil.ToFloat64(failed))
}
