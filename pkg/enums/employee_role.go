package enums

import "fmt"

// EmployeeRole maps to the employee_role enum in Postgres.
type EmployeeRole string

const (
	EmployeeRoleSalesAdmin         EmployeeRole = "sales_admin"
	EmployeeRoleOperationalManager EmployeeRole = "operational_manager"
	EmployeeRoleProduction         EmployeeRole = "production"
	EmployeeRoleAssembly           EmployeeRole = "assembly"
)

var validEmployeeRoles = []EmployeeRole{
	EmployeeRoleSalesAdmin,
	EmployeeRoleOperationalManager,
	EmployeeRoleProduction,
	EmployeeRoleAssembly,
}

// String implements fmt.Stringer.
func (e EmployeeRole) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EmployeeRole.
func (e EmployeeRole) IsValid() bool {
	for _, candidate := range validEmployeeRoles {
		if candidate == e {
			return true
		}
	}
	return false
}

// IsWorker reports whether the role reports units against quotas.
func (e EmployeeRole) IsWorker() bool {
	return e == EmployeeRoleProduction || e == EmployeeRoleAssembly
}

// ParseEmployeeRole converts raw input into an EmployeeRole.
func ParseEmployeeRole(value string) (EmployeeRole, error) {
	for _, candidate := range validEmployeeRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid employee role %q", value)
}
