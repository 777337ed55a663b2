package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

// OrderLog records a single status transition on an order.
type OrderLog struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus *enums.OrderStatus `gorm:"column:from_status;type:order_status"`
	ToStatus   enums.OrderStatus  `gorm:"column:to_status;type:order_status;not null"`
	ActorKind  enums.ActorKind    `gorm:"column:actor_kind;type:actor_kind;not null"`
	ActorID    uuid.UUID          `gorm:"column:actor_id;type:uuid;not null"`
	Note       *string            `gorm:"column:note"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (OrderLog) TableName() string { return "order_logs" }
