package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/gatsis/gatsishub-backend/pkg/logger"
)

const notificationRetentionDays = 30

type NotificationCleanupJobParams struct {
	Logger    *logger.Logger
	Customer  customerNotificationCleaner
	Admin     adminNotificationCleaner
	Retention int
}

type customerNotificationCleaner interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type adminNotificationCleaner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewNotificationCleanupJob prunes read customer notifications and stale
// admin notifications past the retention window.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Customer == nil {
		return nil, fmt.Errorf("customer notifications repository required")
	}
	if params.Admin == nil {
		return nil, fmt.Errorf("admin notifications repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = notificationRetentionDays
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		customer:  params.Customer,
		admin:     params.Admin,
		retention: retention,
		now:       time.Now,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	customer  customerNotificationCleaner
	admin     adminNotificationCleaner
	retention int
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)

	var runErr error
	customerDeleted, err := j.customer.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		runErr = multierr.Append(runErr, fmt.Errorf("customer notifications: %w", err))
	}
	adminDeleted, err := j.admin.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		runErr = multierr.Append(runErr, fmt.Errorf("admin notifications: %w", err))
	}
	if runErr != nil {
		return fmt.Errorf("notification cleanup: %w", runErr)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":           cutoff,
		"retention_days":   j.retention,
		"customer_deleted": customerDeleted,
		"admin_deleted":    adminDeleted,
	})
	j.logg.Info(logCtx, "notification cleanup complete")
	return nil
}
