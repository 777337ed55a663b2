package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/pkg/enums"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
	"github.com/gatsis/gatsishub-backend/pkg/outbox"
)

const analyticsConsumerName = "analytics"

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// ingestedEvents lists the event types that land in the production facts
// table. Everything else is acked without a write.
var ingestedEvents = map[enums.OutboxEventType]struct{}{
	enums.EventOrderStatusChanged: {},
	enums.EventSubmissionCreated:  {},
	enums.EventSubmissionReviewed: {},
}

// Consumer flattens production events into BigQuery rows. The idempotency
// mark is taken before the insert and released on failure so a retry can
// run the write again.
type Consumer struct {
	client  tableInserter
	table   string
	manager idempotencyChecker
	logg    *logger.Logger
}

func NewConsumer(client tableInserter, table string, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	table = strings.TrimSpace(table)
	switch {
	case client == nil:
		return nil, fmt.Errorf("bigquery client required")
	case table == "":
		return nil, fmt.Errorf("bigquery table name required")
	case manager == nil:
		return nil, fmt.Errorf("idempotency manager required")
	case logg == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{client: client, table: table, manager: manager, logg: logg}, nil
}

// Process ingests one envelope. Unsupported event types succeed without a
// row so the subscription can fan every production event at the sink.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if _, ok := ingestedEvents[eventType]; !ok {
		c.logg.Info(logCtx, "event not handled by analytics consumer")
		return nil
	}
	if envelope.EventID == "" {
		return fmt.Errorf("event id missing")
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, analyticsConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	row, err := newProductionEventRow(eventType, envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to build production row", err)
		_ = c.manager.Delete(ctx, analyticsConsumerName, eventID)
		return err
	}
	if err := c.client.InsertRows(ctx, c.table, []any{row}); err != nil {
		c.logg.Error(logCtx, "failed to insert production row", err)
		_ = c.manager.Delete(ctx, analyticsConsumerName, eventID)
		return err
	}

	c.logg.Info(logCtx, "production event ingested")
	return nil
}

type productionEventRow struct {
	EventID      string             `bigquery:"event_id"`
	EventType    string             `bigquery:"event_type"`
	OccurredAt   time.Time          `bigquery:"occurred_at"`
	OrderID      *string            `bigquery:"order_id"`
	CustomerID   *string            `bigquery:"customer_id"`
	QuotaID      *string            `bigquery:"quota_id"`
	TeamID       *string            `bigquery:"team_id"`
	SubmissionID *string            `bigquery:"submission_id"`
	Units        *int64             `bigquery:"units"`
	Status       *string            `bigquery:"status"`
	Payload      cbigquery.NullJSON `bigquery:"payload"`
}

func newProductionEventRow(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (*productionEventRow, error) {
	fields := map[string]any{}
	raw := cbigquery.NullJSON{}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &fields); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		if fields == nil {
			fields = map[string]any{}
		}
		raw = cbigquery.NullJSON{Valid: true, JSONVal: string(envelope.Data)}
	}

	// Status transitions carry to_status; snapshots carry status.
	status := optString(fields, "to_status")
	if status == nil {
		status = optString(fields, "status")
	}

	return &productionEventRow{
		EventID:      envelope.EventID,
		EventType:    string(eventType),
		OccurredAt:   envelope.OccurredAt,
		OrderID:      optString(fields, "order_id"),
		CustomerID:   optString(fields, "customer_id"),
		QuotaID:      optString(fields, "quota_id"),
		TeamID:       optString(fields, "team_id"),
		SubmissionID: optString(fields, "submission_id"),
		Units:        optInt(fields, "units"),
		Status:       status,
		Payload:      raw,
	}, nil
}

func optString(fields map[string]any, key string) *string {
	str, ok := fields[key].(string)
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(str)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func optInt(fields map[string]any, key string) *int64 {
	num, ok := fields[key].(float64)
	if !ok {
		return nil
	}
	value := int64(num)
	return &value
}
