package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Material is a catalog entry for a hanger material variant.
type Material struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string          `gorm:"column:name;not null;uniqueIndex"`
	Description  *string         `gorm:"column:description"`
	Features     pq.StringArray  `gorm:"column:features;type:text[];not null;default:ARRAY[]::text[]"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	ImageURL     *string         `gorm:"column:image_url"`
	IsActive     bool            `gorm:"column:is_active;not null;default:true"`
	DisplayOrder int             `gorm:"column:display_order;not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Material) TableName() string { return "materials" }
