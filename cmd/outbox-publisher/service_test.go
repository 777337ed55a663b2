package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/config"
	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
	"github.com/gatsis/gatsishub-backend/pkg/outbox"
	"github.com/gatsis/gatsishub-backend/pkg/outbox/payloads"
	"github.com/gatsis/gatsishub-backend/pkg/outbox/registry"
)

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	first := stubOrderEvent(t, "event-one")
	second := stubOrderEvent(t, "event-two")
	repo := &stubRepo{events: []models.OutboxEvent{first, second}}
	pub := &stubPublisher{results: []publishReceipt{
		stubResult{err: errors.New("transient")},
		stubResult{},
	}}
	dlq := &stubDLQRepo{}
	svc := buildService(t, repo, pub, &stubResolver{resolved: stubResolved()}, dlq, nil)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	require.Len(t, repo.failed, 1, "the transient failure should mark exactly one row failed")
	require.Len(t, repo.published, 1)
	require.Equal(t, first.ID, repo.failed[0])
	require.Equal(t, second.ID, repo.published[0])
	require.Empty(t, dlq.entries)
}

func TestProcessBatchDeadLettersNonRetryable(t *testing.T) {
	event := stubOrderEvent(t, "nonretryable")
	repo := &stubRepo{events: []models.OutboxEvent{event}}
	resolver := &stubResolver{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	dlq := &stubDLQRepo{}
	svc := buildService(t, repo, &stubPublisher{}, resolver, dlq, nil)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	require.Len(t, dlq.entries, 1)
	entry := dlq.entries[0]
	require.Equal(t, event.ID, entry.EventID)
	require.JSONEq(t, string(event.Payload), string(entry.Payload))
	require.Equal(t, enums.DLQReasonNonRetryable, entry.ErrorReason)
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	event := stubOrderEvent(t, "max-attempts")
	event.AttemptCount = 1
	repo := &stubRepo{events: []models.OutboxEvent{event}}
	pub := &stubPublisher{results: []publishReceipt{
		stubResult{err: errors.New("transient")},
	}}
	dlq := &stubDLQRepo{}
	svc := buildService(t, repo, pub, &stubResolver{resolved: stubResolved()}, dlq, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	require.Len(t, dlq.entries, 1)
	require.Equal(t, event.ID, dlq.entries[0].EventID)
	require.Equal(t, enums.DLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
}

func buildService(t *testing.T, repo eventStore, pub topicPublisher, resolver eventResolver, dlq deadLetterStore, override *config.OutboxConfig) *Service {
	t.Helper()

	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if override != nil {
		outboxCfg = *override
	}
	svc, err := NewService(ServiceDeps{
		Config:       &config.Config{Outbox: outboxCfg},
		Logger:       logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		Database:     stubDB{},
		Broker:       stubPubSubClient{},
		Outbox:       repo,
		Resolver:     resolver,
		NewPublisher: func(string) topicPublisher { return pub },
		DeadLetters:  dlq,
	})
	require.NoError(t, err)
	return svc
}

func stubOrderEvent(t *testing.T, eventID string) models.OutboxEvent {
	t.Helper()

	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func stubResolved() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			Topic:         "orders-topic",
			AggregateType: enums.AggregateOrder,
		},
		Envelope: outbox.PayloadEnvelope{
			EventID:    uuid.NewString(),
			OccurredAt: time.Now(),
		},
		Payload: &payloads.OrderCreatedEvent{},
	}
}

type stubRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (s *stubRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return s.events, nil
}

func (s *stubRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	s.published = append(s.published, id)
	return nil
}

func (s *stubRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	s.failed = append(s.failed, id)
	return nil
}

func (s *stubRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	s.failed = append(s.failed, id)
	return nil
}

type stubDB struct{}

func (stubDB) Ping(context.Context) error { return nil }

func (stubDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type stubPubSubClient struct{}

func (stubPubSubClient) Ping(context.Context) error { return nil }

func (stubPubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type stubPublisher struct {
	results []publishReceipt
}

func (s *stubPublisher) Publish(context.Context, *gcppubsub.Message) publishReceipt {
	if len(s.results) == 0 {
		return nil
	}
	next := s.results[0]
	s.results = s.results[1:]
	return next
}

type stubResult struct {
	err error
}

func (s stubResult) Get(context.Context) (string, error) { return "", s.err }

type stubResolver struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (s *stubResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if s.resolved == nil {
		return nil, s.err
	}
	resolved := *s.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, s.err
}

type stubDLQRepo struct {
	entries []models.OutboxDLQ
}

func (s *stubDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	s.entries = append(s.entries, entry)
	return nil
}
