package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

// Employee represents a staff account with a fixed role.
type Employee struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string             `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash string             `gorm:"column:password_hash;not null"`
	FullName     string             `gorm:"column:full_name;not null"`
	Role         enums.EmployeeRole `gorm:"column:role;type:employee_role;not null"`
	TeamID       *uuid.UUID         `gorm:"column:team_id;type:uuid"`
	Team         *Team              `gorm:"foreignKey:TeamID"`
	IsActive     bool               `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time         `gorm:"column:last_login_at"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Employee) TableName() string { return "employees" }
