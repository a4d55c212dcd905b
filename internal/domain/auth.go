package domain

import "strings"

// Role tags the kind of principal acting on the system.
type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleVendor Role = "vendor"
)

// ParseRole maps a raw role claim onto a Role. Comparison is case-insensitive and
// anything unrecognised is treated as a vendor, the platform's default account type.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	default:
		return RoleVendor
	}
}

// Principal is the authenticated caller of a request.
type Principal struct {
	ID    string
	Role  Role
	Email string
}
