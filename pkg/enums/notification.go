package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderUpdate NotificationType = "order_update"
	NotificationTypePayment     NotificationType = "payment"
	NotificationTypeMessage     NotificationType = "message"
	NotificationTypeProduction  NotificationType = "production"
	NotificationTypeSystem      NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderUpdate,
	NotificationTypePayment,
	NotificationTypeMessage,
	NotificationTypeProduction,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// AdminTargetRole scopes an admin notification to the staff roles that
// should see it; "both" covers sales_admin and operational_manager.
type AdminTargetRole string

const (
	AdminTargetSalesAdmin         AdminTargetRole = "sales_admin"
	AdminTargetOperationalManager AdminTargetRole = "operational_manager"
	AdminTargetBoth               AdminTargetRole = "both"
)

var validAdminTargetRoles = []AdminTargetRole{
	AdminTargetSalesAdmin,
	AdminTargetOperationalManager,
	AdminTargetBoth,
}

// IsValid reports whether the value is a known AdminTargetRole.
func (a AdminTargetRole) IsValid() bool {
	for _, candidate := range validAdminTargetRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// Matches reports whether a notification with this target is visible to
// the given staff role.
func (a AdminTargetRole) Matches(role EmployeeRole) bool {
	switch a {
	case AdminTargetBoth:
		return role == EmployeeRoleSalesAdmin || role == EmployeeRoleOperationalManager
	case AdminTargetSalesAdmin:
		return role == EmployeeRoleSalesAdmin
	case AdminTargetOperationalManager:
		return role == EmployeeRoleOperationalManager
	}
	return false
}

// ParseAdminTargetRole converts raw input into an AdminTargetRole.
func ParseAdminTargetRole(value string) (AdminTargetRole, error) {
	for _, candidate := range validAdminTargetRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid admin target role %q", value)
}
