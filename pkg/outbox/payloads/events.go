package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

// OrderCreatedEvent signals a new customer order awaiting approval.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerID  uuid.UUID `json:"customer_id"`
	MaterialID  uuid.UUID `json:"material_id"`
	Quantity    int       `json:"quantity"`
	TotalAmount string    `json:"total_amount"`
}

// OrderStatusChangedEvent is emitted on every order status transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID          `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	CustomerID  uuid.UUID          `json:"customer_id"`
	FromStatus  *enums.OrderStatus `json:"from_status,omitempty"`
	ToStatus    enums.OrderStatus  `json:"to_status"`
	Note        string             `json:"note,omitempty"`
}

// OrderDeadlineApproachingEvent warns staff when an in-flight order nears its deadline.
type OrderDeadlineApproachingEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	Status      enums.OrderStatus `json:"status"`
	Deadline    time.Time         `json:"deadline"`
	HoursLeft   int               `json:"hours_left"`
}

// MessageCreatedEvent is emitted when either side posts in a conversation.
type MessageCreatedEvent struct {
	MessageID     uuid.UUID           `json:"message_id"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	Sender        enums.MessageSender `json:"sender"`
	Preview       string              `json:"preview"`
	HasAttachment bool                `json:"has_attachment"`
}

// SubmissionCreatedEvent reports a new pending production submission.
type SubmissionCreatedEvent struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	QuotaID      uuid.UUID `json:"quota_id"`
	TeamID       uuid.UUID `json:"team_id"`
	EmployeeID   uuid.UUID `json:"employee_id"`
	Units        int       `json:"units"`
}

// SubmissionReviewedEvent reports a manager verdict on a submission.
type SubmissionReviewedEvent struct {
	SubmissionID uuid.UUID              `json:"submission_id"`
	QuotaID      uuid.UUID              `json:"quota_id"`
	TeamID       uuid.UUID              `json:"team_id"`
	EmployeeID   uuid.UUID              `json:"employee_id"`
	Units        int                    `json:"units"`
	Status       enums.SubmissionStatus `json:"status"`
	ReviewedBy   uuid.UUID              `json:"reviewed_by"`
	RejectReason string                 `json:"reject_reason,omitempty"`
}
