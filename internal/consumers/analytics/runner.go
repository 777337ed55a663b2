package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/gatsis/gatsishub-backend/pkg/enums"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
	"github.com/gatsis/gatsishub-backend/pkg/outbox"
)

type envelopeHandler interface {
	Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error
}

// Runner pumps the analytics subscription into a handler. Decode failures are
// acked since redelivery cannot fix a malformed message; handler failures are
// nacked for retry.
type Runner struct {
	subscription *pubsub.Subscriber
	handler      envelopeHandler
	logg         *logger.Logger
}

// NewRunner builds the receive loop around an envelope handler.
func NewRunner(subscription *pubsub.Subscriber, handler envelopeHandler, logg *logger.Logger) (*Runner, error) {
	if subscription == nil {
		return nil, fmt.Errorf("subscription required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Runner{subscription: subscription, handler: handler, logg: logg}, nil
}

// Run blocks on the subscription until the context is canceled.
func (r *Runner) Run(ctx context.Context) error {
	return r.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		eventType := enums.OutboxEventType(msg.Attributes["event_type"])
		logCtx := r.logg.WithFields(ctx, map[string]any{
			"message_id": msg.ID,
			"event_type": eventType,
		})

		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			r.logg.Error(logCtx, "failed to decode envelope", err)
			msg.Ack()
			return
		}

		if err := r.handler.Process(ctx, eventType, envelope); err != nil {
			r.logg.Error(logCtx, "analytics handling failed", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
}
