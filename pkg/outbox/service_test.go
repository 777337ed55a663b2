package outbox

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_event_aggregate
    ON outbox_events (event_type, aggregate_type, aggregate_id)
    WHERE event_type = 'order_deadline_approaching';`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func reminderEvent(orderID uuid.UUID) DomainEvent {
	return DomainEvent{
		EventType:     enums.EventOrderDeadlineApproaching,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data:          map[string]any{"order_id": orderID.String()},
		Version:       1,
	}
}

func countEvents(t *testing.T, db *gorm.DB, eventType enums.OutboxEventType, orderID uuid.UUID) int64 {
	t.Helper()
	var count int64
	err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", eventType, orderID).
		Count(&count).Error
	require.NoError(t, err)
	return count
}

func TestEmitIfNotExistsKeepsOneReminderPerOrder(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)
	ctx := context.Background()

	orderID := uuid.New()
	require.NoError(t, svc.EmitIfNotExists(ctx, db, reminderEvent(orderID)))
	require.NoError(t, svc.EmitIfNotExists(ctx, db, reminderEvent(orderID)))

	require.EqualValues(t, 1, countEvents(t, db, enums.EventOrderDeadlineApproaching, orderID))
}

func TestEmitIfNotExistsIsScopedPerOrder(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	require.NoError(t, svc.EmitIfNotExists(ctx, db, reminderEvent(first)))
	require.NoError(t, svc.EmitIfNotExists(ctx, db, reminderEvent(second)))

	require.EqualValues(t, 1, countEvents(t, db, enums.EventOrderDeadlineApproaching, first))
	require.EqualValues(t, 1, countEvents(t, db, enums.EventOrderDeadlineApproaching, second))
}

func TestEmitAllowsRepeatedStatusEventsForOneOrder(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)
	ctx := context.Background()

	orderID := uuid.New()
	statusEvent := DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data:          map[string]any{"order_id": orderID.String()},
		Version:       1,
	}
	require.NoError(t, svc.Emit(ctx, db, statusEvent))
	require.NoError(t, svc.Emit(ctx, db, statusEvent))

	require.EqualValues(t, 2, countEvents(t, db, enums.EventOrderStatusChanged, orderID))
}

func TestReminderIndexRejectsDuplicateInsert(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	orderID := uuid.New()
	row := models.OutboxEvent{
		EventType:     enums.EventOrderDeadlineApproaching,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       []byte(`{}`),
	}
	require.NoError(t, repo.Insert(db, row))

	err := repo.Insert(db, row)
	require.Error(t, err)
	require.Contains(t, err.Error(), "UNIQUE constraint failed")
}
