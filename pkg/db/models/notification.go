package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to a customer.
type Notification struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID              `gorm:"column:customer_id;type:uuid;not null;index"`
	Type       enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title      string                 `gorm:"column:title;type:text;not null"`
	Message    string                 `gorm:"column:message;type:text;not null"`
	Link       *string                `gorm:"column:link;type:text"`
	ReadAt     *time.Time             `gorm:"column:read_at;type:timestamptz"`
	CreatedAt  time.Time              `gorm:"column:created_at;type:timestamptz;default:now()"`
}

func (Notification) TableName() string { return "notifications" }
