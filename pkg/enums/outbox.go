package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder      OutboxAggregateType = "order"
	AggregateMessage    OutboxAggregateType = "message"
	AggregateSubmission OutboxAggregateType = "submission"
	AggregateQuota      OutboxAggregateType = "quota"
	AggregateCustomer   OutboxAggregateType = "customer"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateMessage,
	AggregateSubmission,
	AggregateQuota,
	AggregateCustomer,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated             OutboxEventType = "order_created"
	EventOrderStatusChanged       OutboxEventType = "order_status_changed"
	EventOrderDeadlineApproaching OutboxEventType = "order_deadline_approaching"
	EventMessageCreated           OutboxEventType = "message_created"
	EventSubmissionCreated        OutboxEventType = "submission_created"
	EventSubmissionReviewed       OutboxEventType = "submission_reviewed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderDeadlineApproaching,
	EventMessageCreated,
	EventSubmissionCreated,
	EventSubmissionReviewed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason classifies terminal publish failures.
type OutboxDLQErrorReason string

const (
	DLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts_exceeded"
	DLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var validDLQErrorReasons = []OutboxDLQErrorReason{
	DLQReasonMaxAttempts,
	DLQReasonNonRetryable,
}

// IsValid reports whether the value is a known OutboxDLQErrorReason.
func (r OutboxDLQErrorReason) IsValid() bool {
	for _, candidate := range validDLQErrorReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
