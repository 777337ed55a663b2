package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/config"
	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
	"github.com/gatsis/gatsishub-backend/pkg/outbox"
	"github.com/gatsis/gatsishub-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterRand = rand.New(rand.NewSource(time.Now().UnixNano()))

type txDatabase interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type messageBroker interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishReceipt
}

type publishReceipt interface {
	Get(context.Context) (string, error)
}

type publisherFor func(topic string) topicPublisher

// ServiceDeps carries everything the publisher loop needs.
type ServiceDeps struct {
	Config       *config.Config
	Logger       *logger.Logger
	Database     txDatabase
	Broker       messageBroker
	Outbox       eventStore
	Resolver     eventResolver
	DeadLetters  deadLetterStore
	NewPublisher publisherFor
}

// Service drains the outbox table: each poll claims a batch under a row
// lock, pushes every event to its Pub/Sub topic, and records the outcome in
// the same transaction. Unresolvable or exhausted events move to the DLQ.
type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	db           txDatabase
	broker       messageBroker
	outbox       eventStore
	resolver     eventResolver
	deadLetters  deadLetterStore
	newPublisher publisherFor
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(deps ServiceDeps) (*Service, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("nil config")
	case deps.Logger == nil:
		return nil, errors.New("nil logger")
	case deps.Database == nil:
		return nil, errors.New("nil database client")
	case deps.Broker == nil:
		return nil, errors.New("nil pubsub client")
	case deps.Outbox == nil:
		return nil, errors.New("nil outbox repository")
	case deps.Resolver == nil:
		return nil, errors.New("nil event registry")
	case deps.DeadLetters == nil:
		return nil, errors.New("nil dlq repository")
	}

	factory := deps.NewPublisher
	if factory == nil {
		factory = func(topic string) topicPublisher {
			return wrapPublisher(deps.Broker.Publisher(topic))
		}
	}

	svc := &Service{
		cfg:          deps.Config,
		logg:         deps.Logger,
		db:           deps.Database,
		broker:       deps.Broker,
		outbox:       deps.Outbox,
		resolver:     deps.Resolver,
		deadLetters:  deps.DeadLetters,
		newPublisher: factory,
		batchSize:    deps.Config.Outbox.BatchSize,
		maxAttempts:  deps.Config.Outbox.MaxAttempts,
		pollInterval: time.Duration(deps.Config.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if svc.batchSize <= 0 {
		svc.batchSize = defaultBatchSize
	}
	if svc.maxAttempts <= 0 {
		svc.maxAttempts = defaultMaxAttempts
	}
	if svc.pollInterval <= 0 {
		svc.pollInterval = defaultPollInterval
	}
	return svc, nil
}

// Run polls until the context is canceled. An empty batch waits one jittered
// interval; batch errors back off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{{"database", s.db.Ping}, {"pubsub", s.broker.Ping}} {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.name), err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	backoff := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		drained, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
		case drained:
			backoff = s.pollInterval
		default:
			backoff = s.pollInterval
			if err := s.sleep(ctx, withJitter(s.pollInterval)); err != nil {
				return err
			}
		}
	}
}

// processBatch claims one batch and dispatches each event; the bool reports
// whether any events were found, so the caller knows to poll again
// immediately.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	found := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.outbox.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		found = true
		for _, event := range events {
			if err := s.dispatch(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return found, err
}

// dispatch publishes one event and records the outcome. Returned errors are
// bookkeeping failures that abort the whole batch; publish failures are
// absorbed into retry or DLQ state.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.resolver.Resolve(event)
	if err != nil {
		return s.moveToDLQ(ctx, tx, event, enums.DLQReasonNonRetryable, err, "", nil)
	}

	topic := resolved.Descriptor.Topic
	fields := s.publishLogFields(event, resolved.Envelope, topic)

	pubErr := s.publishResolved(ctx, event, resolved)
	if pubErr == nil {
		if err := s.outbox.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(pubErr, &nonRetry) {
		return s.moveToDLQ(ctx, tx, event, enums.DLQReasonNonRetryable, pubErr, topic, fields)
	}

	attempts := event.AttemptCount + 1
	fields["attempt_count"] = attempts
	if attempts >= s.maxAttempts {
		fields["terminal_reason"] = "max_attempts"
		return s.moveToDLQ(ctx, tx, event, enums.DLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", pubErr), topic, fields)
	}

	logCtx := s.logg.WithFields(ctx, fields)
	logCtx = s.logg.WithField(logCtx, "error", pubErr.Error())
	s.logg.Warn(logCtx, "outbox publish failed")
	if err := s.outbox.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) moveToDLQ(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, topic string, fields map[string]any) error {
	if fields == nil {
		fields = s.publishLogFields(event, outbox.PayloadEnvelope{}, topic)
	}
	fields["error_reason"] = reason
	logCtx := s.logg.WithFields(ctx, fields)
	logCtx = s.logg.WithField(logCtx, "error", cause.Error())
	s.logg.Warn(logCtx, "outbox event will not be retried")

	message := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.deadLetters.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.outbox.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publishResolved(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.newPublisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	receipt := pub.Publish(publishCtx, msg)
	if receipt == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := receipt.Get(publishCtx)
	return err
}

func (s *Service) publishLogFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"batch_size":     s.batchSize,
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	if next := current * 2; next < max {
		return next
	}
	return max
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterRand.Int63n(int64(jitterWindow)))
}

func wrapPublisher(p *gcppubsub.Publisher) topicPublisher {
	if p == nil {
		return nil
	}
	return &gcpTopicPublisher{Publisher: p}
}

type gcpTopicPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpTopicPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishReceipt {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpReceipt{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpReceipt struct {
	*gcppubsub.PublishResult
}

func (r *gcpReceipt) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
