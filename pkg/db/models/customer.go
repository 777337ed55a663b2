package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer represents a wholesale buyer account.
type Customer struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash     *string    `gorm:"column:password_hash"`
	GoogleSubject    *string    `gorm:"column:google_subject;uniqueIndex"`
	CompanyName      string     `gorm:"column:company_name;not null"`
	ContactName      string     `gorm:"column:contact_name;not null"`
	Phone            *string    `gorm:"column:phone"`
	Address          *string    `gorm:"column:address"`
	TaxID            *string    `gorm:"column:tax_id"`
	TwoFactorEnabled bool       `gorm:"column:two_factor_enabled;not null;default:false"`
	IsActive         bool       `gorm:"column:is_active;not null;default:true"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Customer) TableName() string { return "customers" }
