package enums

import "fmt"

// MessageSender records which side of a conversation authored a message.
// The legacy clients call the staff side "admin".
type MessageSender string

const (
	MessageSenderCustomer MessageSender = "customer"
	MessageSenderAdmin    MessageSender = "admin"
)

var validMessageSenders = []MessageSender{
	MessageSenderCustomer,
	MessageSenderAdmin,
}

// IsValid reports whether the value is a known MessageSender.
func (m MessageSender) IsValid() bool {
	for _, candidate := range validMessageSenders {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMessageSender converts raw input into a MessageSender.
func ParseMessageSender(value string) (MessageSender, error) {
	for _, candidate := range validMessageSenders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid message sender %q", value)
}
