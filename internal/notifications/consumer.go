package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/internal/changefeed"
	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
	"github.com/gatsis/gatsishub-backend/pkg/outbox"
	"github.com/gatsis/gatsishub-backend/pkg/outbox/payloads"
)

const notificationConsumerName = "notifications"

type notificationWriter interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type adminNotificationWriter interface {
	Create(ctx context.Context, notification *models.AdminNotification) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type changePublisher interface {
	Publish(ctx context.Context, event changefeed.ChangeEvent) error
}

// Consumer turns domain events into notification rows and republishes each
// event as a change-feed entry for connected clients.
type Consumer struct {
	repo         notificationWriter
	adminRepo    adminNotificationWriter
	subscription *pubsub.Subscriber
	idempotency  idempotencyChecker
	feed         changePublisher
	logg         *logger.Logger
}

// NewConsumer builds the worker-side notification consumer.
func NewConsumer(
	repo notificationWriter,
	adminRepo adminNotificationWriter,
	subscription *pubsub.Subscriber,
	manager idempotencyChecker,
	feed changePublisher,
	logg *logger.Logger,
) (*Consumer, error) {
	switch {
	case repo == nil:
		return nil, fmt.Errorf("notifications repository required")
	case adminRepo == nil:
		return nil, fmt.Errorf("admin notifications repository required")
	case subscription == nil:
		return nil, fmt.Errorf("domain subscription required")
	case manager == nil:
		return nil, fmt.Errorf("idempotency manager required")
	case feed == nil:
		return nil, fmt.Errorf("change feed publisher required")
	case logg == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		adminRepo:    adminRepo,
		subscription: subscription,
		idempotency:  manager,
		feed:         feed,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.consume(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// consume reports whether the message should be acked. Malformed messages
// are acked so they do not cycle forever; transient failures nack for
// redelivery.
func (c *Consumer) consume(ctx context.Context, msg *pubsub.Message) bool {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return true
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, notificationConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return true
	}

	if err := c.Handle(ctx, eventType, envelope); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, notificationConsumerName, eventID)
		return false
	}
	return true
}

func decodePayload[T any](envelope outbox.PayloadEnvelope) (T, error) {
	var payload T
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return payload, fmt.Errorf("parse payload: %w", err)
	}
	return payload, nil
}

// Handle routes one decoded envelope. Exposed separately so tests can drive
// it without a live subscription.
func (c *Consumer) Handle(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	switch eventType {
	case enums.EventOrderCreated:
		payload, err := decodePayload[payloads.OrderCreatedEvent](envelope)
		if err != nil {
			return err
		}
		return c.orderCreated(ctx, payload, envelope)
	case enums.EventOrderStatusChanged:
		payload, err := decodePayload[payloads.OrderStatusChangedEvent](envelope)
		if err != nil {
			return err
		}
		return c.orderStatusChanged(ctx, payload, envelope)
	case enums.EventOrderDeadlineApproaching:
		payload, err := decodePayload[payloads.OrderDeadlineApproachingEvent](envelope)
		if err != nil {
			return err
		}
		return c.deadlineApproaching(ctx, payload, envelope)
	case enums.EventMessageCreated:
		payload, err := decodePayload[payloads.MessageCreatedEvent](envelope)
		if err != nil {
			return err
		}
		return c.messageCreated(ctx, payload, envelope)
	case enums.EventSubmissionCreated:
		payload, err := decodePayload[payloads.SubmissionCreatedEvent](envelope)
		if err != nil {
			return err
		}
		return c.submissionCreated(ctx, payload, envelope)
	case enums.EventSubmissionReviewed:
		payload, err := decodePayload[payloads.SubmissionReviewedEvent](envelope)
		if err != nil {
			return err
		}
		return c.submissionReviewed(ctx, payload, envelope)
	default:
		return nil
	}
}

func (c *Consumer) orderCreated(ctx context.Context, payload payloads.OrderCreatedEvent, envelope outbox.PayloadEnvelope) error {
	link := fmt.Sprintf("/admin/orders/%s", payload.OrderID)
	err := c.adminRepo.Create(ctx, &models.AdminNotification{
		Type:       enums.NotificationTypeOrderUpdate,
		TargetRole: enums.AdminTargetSalesAdmin,
		Title:      "New order placed",
		Message:    fmt.Sprintf("Order %s was placed for %d units.", payload.OrderNumber, payload.Quantity),
		Link:       &link,
	})
	if err != nil {
		return err
	}
	return c.feed.Publish(ctx, changefeed.ChangeEvent{
		Table:  "orders",
		Action: "insert",
		Scopes: []string{
			changefeed.CustomerScope(payload.CustomerID),
			changefeed.RoleScope(enums.EmployeeRoleSalesAdmin),
		},
		OccurredAt: envelope.OccurredAt,
	})
}

func (c *Consumer) orderStatusChanged(ctx context.Context, payload payloads.OrderStatusChangedEvent, envelope outbox.PayloadEnvelope) error {
	notificationType := enums.NotificationTypeOrderUpdate
	title := "Order status updated"
	message := fmt.Sprintf("Order %s moved to %s.", payload.OrderNumber, payload.ToStatus)
	if payload.ToStatus == enums.OrderStatusVerifyingPayment {
		notificationType = enums.NotificationTypePayment
		title = "Payment verification"
		message = fmt.Sprintf("Order %s is awaiting payment verification.", payload.OrderNumber)
	}
	if payload.Note != "" {
		message = fmt.Sprintf("%s Note: %s", message, payload.Note)
	}

	link := fmt.Sprintf("/orders/%s", payload.OrderID)
	err := c.repo.Create(ctx, &models.Notification{
		CustomerID: payload.CustomerID,
		Type:       notificationType,
		Title:      title,
		Message:    message,
		Link:       &link,
	})
	if err != nil {
		return err
	}
	return c.feed.Publish(ctx, changefeed.ChangeEvent{
		Table:  "orders",
		Action: "update",
		Scopes: []string{
			changefeed.CustomerScope(payload.CustomerID),
			changefeed.RoleScope(enums.EmployeeRoleSalesAdmin),
			changefeed.RoleScope(enums.EmployeeRoleOperationalManager),
		},
		OccurredAt: envelope.OccurredAt,
	})
}

func (c *Consumer) deadlineApproaching(ctx context.Context, payload payloads.OrderDeadlineApproachingEvent, envelope outbox.PayloadEnvelope) error {
	link := fmt.Sprintf("/admin/orders/%s", payload.OrderID)
	err := c.adminRepo.Create(ctx, &models.AdminNotification{
		Type:       enums.NotificationTypeProduction,
		TargetRole: enums.AdminTargetBoth,
		Title:      "Order deadline approaching",
		Message:    fmt.Sprintf("Order %s (%s) is due in %dh.", payload.OrderNumber, payload.Status, payload.HoursLeft),
		Link:       &link,
	})
	if err != nil {
		return err
	}
	return c.feed.Publish(ctx, changefeed.ChangeEvent{
		Table:  "orders",
		Action: "update",
		Scopes: []string{
			changefeed.RoleScope(enums.EmployeeRoleSalesAdmin),
			changefeed.RoleScope(enums.EmployeeRoleOperationalManager),
		},
		OccurredAt: envelope.OccurredAt,
	})
}

func (c *Consumer) messageCreated(ctx context.Context, payload payloads.MessageCreatedEvent, envelope outbox.PayloadEnvelope) error {
	switch payload.Sender {
	case enums.MessageSenderAdmin:
		link := "/messages"
		message := payload.Preview
		if message == "" && payload.HasAttachment {
			message = "Sent you an attachment."
		}
		err := c.repo.Create(ctx, &models.Notification{
			CustomerID: payload.CustomerID,
			Type:       enums.NotificationTypeMessage,
			Title:      "New message",
			Message:    message,
			Link:       &link,
		})
		if err != nil {
			return err
		}
	case enums.MessageSenderCustomer:
		link := fmt.Sprintf("/admin/conversations/%s", payload.CustomerID)
		message := payload.Preview
		if message == "" && payload.HasAttachment {
			message = "Customer sent an attachment."
		}
		err := c.adminRepo.Create(ctx, &models.AdminNotification{
			Type:       enums.NotificationTypeMessage,
			TargetRole: enums.AdminTargetSalesAdmin,
			Title:      "New customer message",
			Message:    message,
			Link:       &link,
		})
		if err != nil {
			return err
		}
	}

	return c.feed.Publish(ctx, changefeed.ChangeEvent{
		Table:  "messages",
		Action: "insert",
		Scopes: []string{
			changefeed.ConversationScope(payload.CustomerID),
			changefeed.CustomerScope(payload.CustomerID),
			changefeed.RoleScope(enums.EmployeeRoleSalesAdmin),
		},
		OccurredAt: envelope.OccurredAt,
	})
}

func (c *Consumer) submissionCreated(ctx context.Context, payload payloads.SubmissionCreatedEvent, envelope outbox.PayloadEnvelope) error {
	link := fmt.Sprintf("/admin/submissions/%s", payload.SubmissionID)
	err := c.adminRepo.Create(ctx, &models.AdminNotification{
		Type:       enums.NotificationTypeProduction,
		TargetRole: enums.AdminTargetOperationalManager,
		Title:      "Submission awaiting review",
		Message:    fmt.Sprintf("%d units reported against quota %s.", payload.Units, payload.QuotaID),
		Link:       &link,
	})
	if err != nil {
		return err
	}
	return c.feed.Publish(ctx, changefeed.ChangeEvent{
		Table:  "submissions",
		Action: "insert",
		Scopes: []string{
			changefeed.RoleScope(enums.EmployeeRoleOperationalManager),
			changefeed.TeamScope(payload.TeamID),
		},
		OccurredAt: envelope.OccurredAt,
	})
}

func (c *Consumer) submissionReviewed(ctx context.Context, payload payloads.SubmissionReviewedEvent, envelope outbox.PayloadEnvelope) error {
	title := "Submission verified"
	message := fmt.Sprintf("%d units verified against quota %s.", payload.Units, payload.QuotaID)
	if payload.Status == enums.SubmissionStatusRejected {
		title = "Submission rejected"
		message = fmt.Sprintf("Submission against quota %s was rejected.", payload.QuotaID)
		if payload.RejectReason != "" {
			message = fmt.Sprintf("%s Reason: %s", message, payload.RejectReason)
		}
	}
	link := fmt.Sprintf("/admin/submissions/%s", payload.SubmissionID)
	err := c.adminRepo.Create(ctx, &models.AdminNotification{
		Type:       enums.NotificationTypeProduction,
		TargetRole: enums.AdminTargetOperationalManager,
		Title:      title,
		Message:    message,
		Link:       &link,
	})
	if err != nil {
		return err
	}
	return c.feed.Publish(ctx, changefeed.ChangeEvent{
		Table:  "submissions",
		Action: "update",
		Scopes: []string{
			changefeed.RoleScope(enums.EmployeeRoleOperationalManager),
			changefeed.TeamScope(payload.TeamID),
		},
		OccurredAt: envelope.OccurredAt,
	})
}
