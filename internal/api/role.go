// ABOUTME: Role type with ordered integer constants for permission comparison.
// ABOUTME: parseRole converts a profile role string to a Role value.
package api

// Role represents a permission level. Higher integer values grant more permissions.
type Role int

// Role permission level constants, ordered from least to most privileged.
const (
	RoleCustomer Role = 1 // portal read access scoped to own company
	RoleAdmin    Role = 2 // full administrative control, global scope
)

// parseRole converts a role string from the profiles table to a Role.
// Unknown or empty values map to RoleCustomer (least privilege).
func parseRole(s string) Role {
	switch s {
	case "admin":
		return RoleAdmin
	default:
		return RoleCustomer
	}
}
