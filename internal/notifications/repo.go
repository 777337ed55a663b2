package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	"github.com/gatsis/gatsishub-backend/pkg/pagination"
)

// Repository exposes persistence helpers for customer notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error)
	MarkRead(ctx context.Context, customerID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	MarkAllRead(ctx context.Context, customerID uuid.UUID, now time.Time) (int64, error)
	Delete(ctx context.Context, customerID, notificationID uuid.UUID) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AdminRepository exposes persistence helpers for staff notifications and
// their per-employee read marks.
type AdminRepository interface {
	WithTx(tx *gorm.DB) AdminRepository
	Create(ctx context.Context, notification *models.AdminNotification) error
	List(ctx context.Context, params listAdminNotificationsParams) ([]AdminNotificationRow, *pagination.Cursor, error)
	MarkRead(ctx context.Context, employeeID, notificationID uuid.UUID) (notificationMarkResult, error)
	MarkAllRead(ctx context.Context, employeeID uuid.UUID, roles []enums.AdminTargetRole, now time.Time) (int64, error)
	Delete(ctx context.Context, notificationID uuid.UUID) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type listNotificationsParams struct {
	CustomerID uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

type listAdminNotificationsParams struct {
	EmployeeID uuid.UUID
	Roles      []enums.AdminTargetRole
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

// notificationMarkResult distinguishes "marked now" from "already read"
// from "does not exist".
type notificationMarkResult struct {
	Updated bool
	Found   bool
}

// AdminNotificationRow is an admin notification joined with the caller's read mark.
type AdminNotificationRow struct {
	models.AdminNotification
	ReadAt *time.Time `gorm:"column:read_at"`
}

// trimToPage drops the lookahead row fetched beyond the requested limit
// and derives the cursor for the following page.
func trimToPage[T any](rows []T, limit int, keyOf func(T) pagination.Cursor) ([]T, *pagination.Cursor) {
	normalized := pagination.NormalizeLimit(limit)
	if len(rows) <= normalized {
		return rows, nil
	}
	page := rows[:normalized]
	next := keyOf(page[len(page)-1])
	return page, &next
}

type customerRepo struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &customerRepo{db: db}
}

func (r *customerRepo) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &customerRepo{db: tx}
}

func (r *customerRepo) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *customerRepo) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("customer_id = ?", params.CustomerID)
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if cur := params.Cursor; cur != nil {
		query = query.Where("(created_at, id) < (?, ?)", cur.CreatedAt, cur.ID)
	}

	var rows []models.Notification
	err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	page, next := trimToPage(rows, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *customerRepo) MarkRead(ctx context.Context, customerID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND customer_id = ? AND read_at IS NULL", notificationID, customerID).
		UpdateColumn("read_at", now)
	switch {
	case result.Error != nil:
		return notificationMarkResult{}, result.Error
	case result.RowsAffected > 0:
		return notificationMarkResult{Found: true, Updated: true}, nil
	}

	// Nothing updated: either already read or not this customer's row.
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND customer_id = ?", notificationID, customerID).
		Count(&count).Error
	if err != nil {
		return notificationMarkResult{}, err
	}
	return notificationMarkResult{Found: count > 0}, nil
}

func (r *customerRepo) MarkAllRead(ctx context.Context, customerID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("customer_id = ? AND read_at IS NULL", customerID).
		UpdateColumn("read_at", now)
	return result.RowsAffected, result.Error
}

func (r *customerRepo) Delete(ctx context.Context, customerID, notificationID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Delete(&models.Notification{}, "id = ? AND customer_id = ?", notificationID, customerID)
	return result.RowsAffected, result.Error
}

func (r *customerRepo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Delete(&models.Notification{}, "read_at IS NOT NULL AND created_at < ?", cutoff)
	return result.RowsAffected, result.Error
}

type adminRepo struct {
	db *gorm.DB
}

// NewAdminRepository returns an admin notifications repository.
func NewAdminRepository(db *gorm.DB) AdminRepository {
	return &adminRepo{db: db}
}

func (r *adminRepo) WithTx(tx *gorm.DB) AdminRepository {
	if tx == nil {
		return r
	}
	return &adminRepo{db: tx}
}

func (r *adminRepo) Create(ctx context.Context, notification *models.AdminNotification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *adminRepo) List(ctx context.Context, params listAdminNotificationsParams) ([]AdminNotificationRow, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.AdminNotification{}).
		Select("admin_notifications.*, reads.read_at AS read_at").
		Joins("LEFT JOIN admin_notification_reads reads ON reads.notification_id = admin_notifications.id AND reads.employee_id = ?", params.EmployeeID).
		Where("admin_notifications.target_role IN ?", params.Roles)
	if params.UnreadOnly {
		query = query.Where("reads.read_at IS NULL")
	}
	if cur := params.Cursor; cur != nil {
		query = query.Where("(admin_notifications.created_at, admin_notifications.id) < (?, ?)", cur.CreatedAt, cur.ID)
	}

	var rows []AdminNotificationRow
	err := query.
		Order("admin_notifications.created_at DESC, admin_notifications.id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	page, next := trimToPage(rows, params.Limit, func(row AdminNotificationRow) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}

func (r *adminRepo) MarkRead(ctx context.Context, employeeID, notificationID uuid.UUID) (notificationMarkResult, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AdminNotification{}).
		Where("id = ?", notificationID).
		Count(&count).Error
	if err != nil {
		return notificationMarkResult{}, err
	}
	if count == 0 {
		return notificationMarkResult{}, nil
	}

	// Read marks are per employee; repeat calls keep the original read_at.
	mark := models.AdminNotificationRead{NotificationID: notificationID, EmployeeID: employeeID}
	result := r.db.WithContext(ctx).
		Where("notification_id = ? AND employee_id = ?", notificationID, employeeID).
		FirstOrCreate(&mark)
	if result.Error != nil {
		return notificationMarkResult{}, result.Error
	}
	return notificationMarkResult{Found: true, Updated: result.RowsAffected > 0}, nil
}

func (r *adminRepo) MarkAllRead(ctx context.Context, employeeID uuid.UUID, roles []enums.AdminTargetRole, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		INSERT INTO admin_notification_reads (notification_id, employee_id, read_at)
		SELECT n.id, ?, ?
		FROM admin_notifications n
		WHERE n.target_role IN ?
		  AND NOT EXISTS (
			SELECT 1 FROM admin_notification_reads r
			WHERE r.notification_id = n.id AND r.employee_id = ?
		  )
	`, employeeID, now, roles, employeeID)
	return result.RowsAffected, result.Error
}

func (r *adminRepo) Delete(ctx context.Context, notificationID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.AdminNotification{}, "id = ?", notificationID)
	return result.RowsAffected, result.Error
}

func (r *adminRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.AdminNotification{}, "created_at < ?", cutoff)
	return result.RowsAffected, result.Error
}
