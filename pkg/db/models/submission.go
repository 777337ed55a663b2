package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

// Submission is a worker's reported unit count against a quota, held as
// pending until a manager verifies or rejects it.
type Submission struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuotaID      uuid.UUID              `gorm:"column:quota_id;type:uuid;not null;index"`
	Quota        *Quota                 `gorm:"foreignKey:QuotaID"`
	EmployeeID   uuid.UUID              `gorm:"column:employee_id;type:uuid;not null;index"`
	Employee     *Employee              `gorm:"foreignKey:EmployeeID"`
	OrderID      *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	Order        *Order                 `gorm:"foreignKey:OrderID"`
	Units        int                    `gorm:"column:units;not null"`
	Note         *string                `gorm:"column:note"`
	Priority     *string                `gorm:"column:priority"`
	Status       enums.SubmissionStatus `gorm:"column:status;type:submission_status;not null;default:'pending'"`
	ReviewedBy   *uuid.UUID             `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt   *time.Time             `gorm:"column:reviewed_at;type:timestamptz"`
	RejectReason *string                `gorm:"column:reject_reason"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Submission) TableName() string { return "submissions" }
