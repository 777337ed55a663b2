package enums

import "fmt"

// OrderStatus maps to the order_status enum in Postgres.
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "pending"
	OrderStatusApproved           OrderStatus = "approved"
	OrderStatusVerifyingPayment   OrderStatus = "verifying_payment"
	OrderStatusInProduction       OrderStatus = "in_production"
	OrderStatusWaitingForShipment OrderStatus = "waiting_for_shipment"
	OrderStatusCompleted          OrderStatus = "completed"
	OrderStatusCancelled          OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusApproved,
	OrderStatusVerifyingPayment,
	OrderStatusInProduction,
	OrderStatusWaitingForShipment,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// Legal forward transitions. Cancellation is handled separately: any
// non-terminal status may move to cancelled.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:            {OrderStatusApproved},
	OrderStatusApproved:           {OrderStatusVerifyingPayment},
	OrderStatusVerifyingPayment:   {OrderStatusInProduction},
	OrderStatusInProduction:       {OrderStatusWaitingForShipment},
	OrderStatusWaitingForShipment: {OrderStatusCompleted},
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusCompleted || o == OrderStatusCancelled
}

// CanTransitionTo reports whether the transition o -> next is legal.
func (o OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if next == OrderStatusCancelled {
		return !o.IsTerminal()
	}
	for _, candidate := range orderTransitions[o] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
