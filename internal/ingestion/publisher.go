package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"acefeed/internal/invalidate"
	"acefeed/internal/observability"

	"github.com/nats-io/nats.go/jetstream"
)

// InvalidatePublisher publishes snapshot invalidations after the feed
// writes that caused them have committed. It satisfies the processor's
// Emitter interface.
// Subjects follow the pattern: ace.invalidate.{message_type}
type InvalidatePublisher struct {
	js      jetstream.JetStream
	metrics *observability.Metrics
}

func NewInvalidatePublisher(js jetstream.JetStream, metrics *observability.Metrics) *InvalidatePublisher {
	return &InvalidatePublisher{js: js, metrics: metrics}
}

func (ip *InvalidatePublisher) Emit(ctx context.Context, msgs []invalidate.Message) error {
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal invalidation: %w", err)
		}

		subject := fmt.Sprintf("ace.invalidate.%s", msg.Type)
		if _, err := ip.js.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("publish %s: %w", subject, err)
		}
		if ip.metrics != nil {
			ip.metrics.InvalidationsEmitted.WithLabelValues(string(msg.Type)).Inc()
		}
	}
	return nil
}
