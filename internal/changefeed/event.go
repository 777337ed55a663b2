package changefeed

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatsis/gatsishub-backend/pkg/enums"
)

// ChangeEvent is the compact row-change notification fanned out to clients.
// Clients treat it as an invalidation hint and refetch over REST; delivery
// is at-least-once and unordered.
type ChangeEvent struct {
	Table      string    `json:"table"`
	Action     string    `json:"action"`
	Scopes     []string  `json:"scopes"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Scope key constructors. A socket subscribes to the keys its session
// implies; an event reaches every socket sharing at least one key.
func CustomerScope(customerID uuid.UUID) string {
	return fmt.Sprintf("customer:%s", customerID)
}

func RoleScope(role enums.EmployeeRole) string {
	return fmt.Sprintf("role:%s", role)
}

func ConversationScope(customerID uuid.UUID) string {
	return fmt.Sprintf("conversation:%s", customerID)
}

func TeamScope(teamID uuid.UUID) string {
	return fmt.Sprintf("team:%s", teamID)
}
