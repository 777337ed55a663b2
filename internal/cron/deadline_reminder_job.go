package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
	"github.com/gatsis/gatsishub-backend/pkg/outbox"
	"github.com/gatsis/gatsishub-backend/pkg/outbox/payloads"
)

const defaultDeadlineWindowHours = 48

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type dueOrderFinder interface {
	FindDueBetween(ctx context.Context, from, to time.Time) ([]models.Order, error)
}

type reminderEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type DeadlineReminderJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Orders      dueOrderFinder
	Outbox      reminderEmitter
	WindowHours int
}

// NewDeadlineReminderJob emits a reminder event for every in-flight order
// whose deadline falls inside the lookahead window. The partial unique index
// on outbox_events (scoped to reminder events) keeps each order to a single
// reminder.
func NewDeadlineReminderJob(params DeadlineReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	window := params.WindowHours
	if window <= 0 {
		window = defaultDeadlineWindowHours
	}
	return &deadlineReminderJob{
		logg:   params.Logger,
		db:     params.DB,
		orders: params.Orders,
		outbox: params.Outbox,
		window: time.Duration(window) * time.Hour,
		now:    time.Now,
	}, nil
}

type deadlineReminderJob struct {
	logg   *logger.Logger
	db     txRunner
	orders dueOrderFinder
	outbox reminderEmitter
	window time.Duration
	now    func() time.Time
}

func (j *deadlineReminderJob) Name() string { return "deadline-reminder" }

func (j *deadlineReminderJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	due, err := j.orders.FindDueBetween(ctx, now, now.Add(j.window))
	if err != nil {
		return fmt.Errorf("find due orders: %w", err)
	}
	if len(due) == 0 {
		j.logg.Info(ctx, "no orders approaching their deadline")
		return nil
	}

	emitted := 0
	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, order := range due {
			if order.Deadline == nil {
				continue
			}
			hoursLeft := int(order.Deadline.Sub(now).Hours())
			event := outbox.DomainEvent{
				EventType:     enums.EventOrderDeadlineApproaching,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.OrderDeadlineApproachingEvent{
					OrderID:     order.ID,
					OrderNumber: order.OrderNumber,
					CustomerID:  order.CustomerID,
					Status:      order.Status,
					Deadline:    *order.Deadline,
					HoursLeft:   hoursLeft,
				},
				Version:    1,
				OccurredAt: now,
			}
			if err := j.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
				return fmt.Errorf("emit reminder for order %s: %w", order.ID, err)
			}
			emitted++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deadline reminder: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"window_hours": int(j.window.Hours()),
		"orders_due":   len(due),
		"emitted":      emitted,
	})
	j.logg.Info(logCtx, "deadline reminders emitted")
	return nil
}
