package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"SynthVault/internal/observability"
)

// OutboundPublisher publishes applied operations to NATS for downstream
// consumers. Subjects follow the pattern synth.engine.events.{op_type}.
type OutboundPublisher struct {
	js      jetstream.JetStream
	input   <-chan PublishableEvent
	log     zerolog.Logger
	metrics *observability.Metrics
}

// PublishableEvent is an applied operation ready for outbound publishing.
type PublishableEvent struct {
	Sequence       int64           `json:"sequence"`
	OpType         string          `json:"op_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	Payload        json.RawMessage `json:"payload"`
	StateHash      []byte          `json:"state_hash"`
	Timestamp      time.Time       `json:"timestamp"`
}

func NewOutboundPublisher(js jetstream.JetStream, input <-chan PublishableEvent, log zerolog.Logger, metrics *observability.Metrics) *OutboundPublisher {
	return &OutboundPublisher{
		js:      js,
		input:   input,
		log:     log,
		metrics: metrics,
	}
}

// Run drains the publish channel until the context is cancelled or the
// channel is closed. Publish failures are non-fatal: the event log is the
// source of truth and consumers can catch up from it.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-op.input:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, evt); err != nil {
				op.log.Warn().
					Err(err).
					Int64("sequence", evt.Sequence).
					Str("op_type", evt.OpType).
					Msg("outbound publish failed")
				continue
			}
			op.metrics.EventsPublished.WithLabelValues(evt.OpType).Inc()
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, evt PublishableEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("synth.engine.events.%s", evt.OpType)
	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream if absent.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "SYNTH_ENGINE_EVENTS",
		Subjects:  []string{"synth.engine.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Info().Str("stream", "SYNTH_ENGINE_EVENTS").Msg("ensured outbound stream")
	return nil
}
