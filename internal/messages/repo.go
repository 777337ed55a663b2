package messages

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

// Repository exposes persistence helpers for conversation threads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, message *models.Message) error
	Thread(ctx context.Context, customerID uuid.UUID) ([]models.Message, error)
	Conversations(ctx context.Context) ([]ConversationSummary, error)
	MarkReadBySender(ctx context.Context, customerID uuid.UUID, sender enums.MessageSender, now time.Time) (int64, error)
}

// ConversationSummary is one row of the staff conversation list.
type ConversationSummary struct {
	CustomerID    uuid.UUID `gorm:"column:customer_id" json:"customerId"`
	CompanyName   string    `gorm:"column:company_name" json:"companyName"`
	ContactName   string    `gorm:"column:contact_name" json:"contactName"`
	LastMessage   string    `gorm:"column:last_message" json:"lastMessage"`
	LastMessageAt time.Time `gorm:"column:last_message_at" json:"lastMessageAt"`
	UnreadCount   int64     `gorm:"column:unread_count" json:"unreadCount"`
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a messages repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repositoryImpl) Thread(ctx context.Context, customerID uuid.UUID) ([]models.Message, error) {
	var rows []models.Message
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) Conversations(ctx context.Context) ([]ConversationSummary, error) {
	var rows []ConversationSummary
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.id AS customer_id,
		       c.company_name,
		       c.contact_name,
		       m.body AS last_message,
		       m.created_at AS last_message_at,
		       (SELECT COUNT(*) FROM messages u
		        WHERE u.customer_id = c.id AND u.sender = 'customer' AND u.read_at IS NULL) AS unread_count
		FROM messages m
		JOIN customers c ON c.id = m.customer_id
		WHERE m.id = (
			SELECT m2.id FROM messages m2
			WHERE m2.customer_id = m.customer_id
			ORDER BY m2.created_at DESC, m2.id DESC
			LIMIT 1
		)
		ORDER BY m.created_at DESC
	`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) MarkReadBySender(ctx context.Context, customerID uuid.UUID, sender enums.MessageSender, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("customer_id = ? AND sender = ? AND read_at IS NULL", customerID, sender).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
