package messages

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gatsis/gatsishub-backend/pkg/config"
	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/outbox"
	"github.com/gatsis/gatsishub-backend/pkg/outbox/payloads"
)

const previewRuneLimit = 120

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines conversation operations for both customer and staff sides.
type Service interface {
	Thread(ctx context.Context, customerID uuid.UUID, viewer enums.ActorKind) ([]models.Message, error)
	Conversations(ctx context.Context) ([]ConversationSummary, error)
	Send(ctx context.Context, input SendInput) (*models.Message, error)
}

// Attachment is an optional inline file on a message.
type Attachment struct {
	Name string
	Mime string
	Data []byte
}

// SendInput carries one outgoing message; sender identity comes from the
// session, never the request body.
type SendInput struct {
	CustomerID    uuid.UUID
	Sender        enums.MessageSender
	SenderStaffID *uuid.UUID
	SenderRole    string
	Body          string
	Attachment    *Attachment
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	cfg    config.MessagingConfig
}

// NewService wires the messaging dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, cfg config.MessagingConfig) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "messages repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if outboxSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc, cfg: cfg}, nil
}

// Thread returns the full ordered conversation and marks the counterpart's
// messages as read for the viewing side.
func (s *service) Thread(ctx context.Context, customerID uuid.UUID, viewer enums.ActorKind) ([]models.Message, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	rows, err := s.repo.Thread(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation")
	}

	counterpart := enums.MessageSenderAdmin
	if viewer == enums.ActorKindStaff {
		counterpart = enums.MessageSenderCustomer
	}
	if _, err := s.repo.MarkReadBySender(ctx, customerID, counterpart, time.Now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark conversation read")
	}

	return rows, nil
}

func (s *service) Conversations(ctx context.Context) ([]ConversationSummary, error) {
	rows, err := s.repo.Conversations(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list conversations")
	}
	return rows, nil
}

func (s *service) Send(ctx context.Context, input SendInput) (*models.Message, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if !input.Sender.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sender")
	}
	if input.Sender == enums.MessageSenderAdmin && (input.SenderStaffID == nil || *input.SenderStaffID == uuid.Nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staff sender identity required")
	}

	body := strings.TrimSpace(input.Body)
	if body == "" && input.Attachment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message text or attachment required")
	}
	if input.Attachment != nil {
		limit := s.maxAttachmentBytes()
		if len(input.Attachment.Data) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "attachment is empty")
		}
		if len(input.Attachment.Data) > limit {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "attachment exceeds size limit")
		}
		if strings.TrimSpace(input.Attachment.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "attachment name required")
		}
	}

	message := &models.Message{
		CustomerID: input.CustomerID,
		Sender:     input.Sender,
		Body:       body,
	}
	if input.Sender == enums.MessageSenderAdmin {
		message.SenderStaffID = input.SenderStaffID
	}
	if input.Attachment != nil {
		name := strings.TrimSpace(input.Attachment.Name)
		mime := strings.TrimSpace(input.Attachment.Mime)
		message.AttachmentName = &name
		message.AttachmentData = input.Attachment.Data
		if mime != "" {
			message.AttachmentMime = &mime
		}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, message); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create message")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventMessageCreated,
			AggregateType: enums.AggregateMessage,
			AggregateID:   message.ID,
			Version:       1,
			Actor:         buildActor(input),
			Data: payloads.MessageCreatedEvent{
				MessageID:     message.ID,
				CustomerID:    message.CustomerID,
				Sender:        message.Sender,
				Preview:       preview(body),
				HasAttachment: message.AttachmentName != nil,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

func (s *service) maxAttachmentBytes() int {
	mb := s.cfg.MaxAttachmentMB
	if mb <= 0 {
		mb = 10
	}
	return mb * 1024 * 1024
}

func preview(body string) string {
	if utf8.RuneCountInString(body) <= previewRuneLimit {
		return body
	}
	runes := []rune(body)
	return string(runes[:previewRuneLimit])
}

func buildActor(input SendInput) *outbox.ActorRef {
	if input.Sender == enums.MessageSenderAdmin && input.SenderStaffID != nil {
		return &outbox.ActorRef{
			ActorID:   *input.SenderStaffID,
			ActorKind: string(enums.ActorKindStaff),
			Role:      input.SenderRole,
		}
	}
	return &outbox.ActorRef{
		ActorID:   input.CustomerID,
		ActorKind: string(enums.ActorKindCustomer),
	}
}
