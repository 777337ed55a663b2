package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

// AdminNotification stores notifications fanned out to staff by target role.
// Read state is tracked per employee in AdminNotificationRead.
type AdminNotification struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type       enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	TargetRole enums.AdminTargetRole  `gorm:"column:target_role;type:admin_target_role;not null"`
	Title      string                 `gorm:"column:title;type:text;not null"`
	Message    string                 `gorm:"column:message;type:text;not null"`
	Link       *string                `gorm:"column:link;type:text"`
	CreatedAt  time.Time              `gorm:"column:created_at;type:timestamptz;default:now()"`
}

func (AdminNotification) TableName() string { return "admin_notifications" }

// AdminNotificationRead marks a staff notification as read by one employee.
type AdminNotificationRead struct {
	NotificationID uuid.UUID `gorm:"column:notification_id;type:uuid;primaryKey"`
	EmployeeID     uuid.UUID `gorm:"column:employee_id;type:uuid;primaryKey"`
	ReadAt         time.Time `gorm:"column:read_at;type:timestamptz;autoCreateTime"`
}

func (AdminNotificationRead) TableName() string { return "admin_notification_reads" }
