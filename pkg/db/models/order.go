package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

// Order represents a custom hanger manufacturing order.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     string            `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID      uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	Customer        *Customer         `gorm:"foreignKey:CustomerID"`
	MaterialID      uuid.UUID         `gorm:"column:material_id;type:uuid;not null"`
	Material        *Material         `gorm:"foreignKey:MaterialID"`
	Status          enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Quantity        int               `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal   `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TotalAmount     decimal.Decimal   `gorm:"column:total_amount;type:numeric(14,2);not null"`
	LogoURL         *string           `gorm:"column:logo_url"`
	Specifications  *string           `gorm:"column:specifications"`
	PaymentVerified bool              `gorm:"column:payment_verified;not null;default:false"`
	Deadline        *time.Time        `gorm:"column:deadline;type:timestamptz"`
	Logs            []OrderLog        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }
