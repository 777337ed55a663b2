package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

// Message is a single entry within a customer/staff conversation. A
// conversation is keyed by the customer; staff replies share the same key.
type Message struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID     uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	Sender         enums.MessageSender `gorm:"column:sender;type:message_sender;not null"`
	SenderStaffID  *uuid.UUID          `gorm:"column:sender_staff_id;type:uuid"`
	Body           string              `gorm:"column:body;not null"`
	AttachmentName *string             `gorm:"column:attachment_name"`
	AttachmentMime *string             `gorm:"column:attachment_mime"`
	AttachmentData []byte              `gorm:"column:attachment_data;type:bytea"`
	ReadAt         *time.Time          `gorm:"column:read_at;type:timestamptz"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (Message) TableName() string { return "messages" }
