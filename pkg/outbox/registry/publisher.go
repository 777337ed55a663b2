package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/pkg/config"
	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	"github.com/gatsis/gatsishub-backend/pkg/outbox"
	"github.com/gatsis/gatsishub-backend/pkg/outbox/payloads"
)

// EventDescriptor binds an event type to its aggregate, destination topic,
// and typed payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is a decoded outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps every supported event type to its descriptor. A row
// with an unknown type can never publish and resolves to a non-retryable
// error.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row as permanently unpublishable so the
// dispatcher dead-letters it instead of retrying.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry wires each event type to its configured topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.OrdersTopic == "":
		return nil, fmt.Errorf("orders topic is required")
	case cfg.MessagingTopic == "":
		return nil, fmt.Errorf("messaging topic is required")
	case cfg.ProductionTopic == "":
		return nil, fmt.Errorf("production topic is required")
	}

	descriptors := []EventDescriptor{
		{
			EventType:      enums.EventOrderCreated,
			AggregateType:  enums.AggregateOrder,
			Topic:          cfg.OrdersTopic,
			PayloadFactory: func() interface{} { return &payloads.OrderCreatedEvent{} },
		},
		{
			EventType:      enums.EventOrderStatusChanged,
			AggregateType:  enums.AggregateOrder,
			Topic:          cfg.OrdersTopic,
			PayloadFactory: func() interface{} { return &payloads.OrderStatusChangedEvent{} },
		},
		{
			EventType:      enums.EventOrderDeadlineApproaching,
			AggregateType:  enums.AggregateOrder,
			Topic:          cfg.OrdersTopic,
			PayloadFactory: func() interface{} { return &payloads.OrderDeadlineApproachingEvent{} },
		},
		{
			EventType:      enums.EventMessageCreated,
			AggregateType:  enums.AggregateMessage,
			Topic:          cfg.MessagingTopic,
			PayloadFactory: func() interface{} { return &payloads.MessageCreatedEvent{} },
		},
		{
			EventType:      enums.EventSubmissionCreated,
			AggregateType:  enums.AggregateSubmission,
			Topic:          cfg.ProductionTopic,
			PayloadFactory: func() interface{} { return &payloads.SubmissionCreatedEvent{} },
		},
		{
			EventType:      enums.EventSubmissionReviewed,
			AggregateType:  enums.AggregateSubmission,
			Topic:          cfg.ProductionTopic,
			PayloadFactory: func() interface{} { return &payloads.SubmissionReviewedEvent{} },
		},
	}

	entries := make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))
	for _, desc := range descriptors {
		if desc.PayloadFactory == nil {
			continue
		}
		entries[desc.EventType] = desc
	}
	return &EventRegistry{entries: entries}, nil
}

// Resolve validates an outbox row and decodes its typed payload. Every
// failure here is non-retryable since the stored bytes will not change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	case desc.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, NewNonRetryableError(fmt.Errorf("payload factory not configured for %s", event.EventType))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
