package enums

import "fmt"

// ActorKind is the tagged session discriminator: every authenticated
// principal is either a customer or a staff employee.
type ActorKind string

const (
	ActorKindCustomer ActorKind = "customer"
	ActorKindStaff    ActorKind = "staff"
)

var validActorKinds = []ActorKind{
	ActorKindCustomer,
	ActorKindStaff,
}

// String implements fmt.Stringer.
func (a ActorKind) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorKind.
func (a ActorKind) IsValid() bool {
	for _, candidate := range validActorKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActorKind converts raw input into an ActorKind.
func ParseActorKind(value string) (ActorKind, error) {
	for _, candidate := range validActorKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor kind %q", value)
}
