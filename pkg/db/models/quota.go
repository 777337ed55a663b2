package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

// Quota is a production target assigned to a team for a date range.
type Quota struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TeamID        uuid.UUID         `gorm:"column:team_id;type:uuid;not null;index"`
	Team          *Team             `gorm:"foreignKey:TeamID"`
	Status        enums.QuotaStatus `gorm:"column:status;type:quota_status;not null;default:'active'"`
	TargetUnits   int               `gorm:"column:target_units;not null"`
	FinishedUnits int               `gorm:"column:finished_units;not null;default:0"`
	StartsAt      time.Time         `gorm:"column:starts_at;type:timestamptz;not null"`
	EndsAt        time.Time         `gorm:"column:ends_at;type:timestamptz;not null"`
	Orders        []QuotaOrder      `gorm:"foreignKey:QuotaID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Quota) TableName() string { return "quotas" }

// QuotaOrder links a quota to the orders whose units it covers.
type QuotaOrder struct {
	QuotaID   uuid.UUID `gorm:"column:quota_id;type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;primaryKey"`
	Units     int       `gorm:"column:units;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (QuotaOrder) TableName() string { return "quota_orders" }
