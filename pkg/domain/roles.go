package domain

// Canonical roles. Role is otherwise a free string.
const (
	RoleAdmin       = "Admin"
	RoleLabManager  = "Jefe de Lab"
	RoleTechnician  = "Técnico"
	RolePathologist = "Patóloga"
)

var rolePermissions = map[string][]string{
	RoleAdmin: {
		"manage_labs",
		"manage_users",
		"view_all",
		"assign_tests",
		"manage_inventory",
		"delete_labs",
		"delete_machines",
		"manage_permissions",
		"view_activities",
		"system_admin",
	},
	RoleLabManager:  {"manage_labs", "view_all", "assign_tests", "manage_inventory", "view_activities"},
	RoleTechnician:  {"view_assigned", "update_tests", "view_inventory"},
	RolePathologist: {"view_results", "approve_tests", "view_all"},
}

// PermissionsForRole returns a fresh copy of the role's permission set.
// Unknown roles have no permissions.
func PermissionsForRole(role string) []string {
	perms, ok := rolePermissions[role]
	if !ok {
		return []string{}
	}
	return append([]string(nil), perms...)
}
