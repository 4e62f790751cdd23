package enums

import "fmt"

// Role is the authenticated actor's platform role.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

var validRoles = []Role{
	RoleCustomer,
	RoleVendor,
	RoleAdmin,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

// DisputeRole is the perspective a participant holds inside a dispute.
type DisputeRole string

const (
	DisputeRoleBuyer  DisputeRole = "buyer"
	DisputeRoleSeller DisputeRole = "seller"
	DisputeRoleAdmin  DisputeRole = "admin"
)

var validDisputeRoles = []DisputeRole{
	DisputeRoleBuyer,
	DisputeRoleSeller,
	DisputeRoleAdmin,
}

// String implements fmt.Stringer.
func (d DisputeRole) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeRole.
func (d DisputeRole) IsValid() bool {
	for _, candidate := range validDisputeRoles {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeRole converts raw input into a DisputeRole.
func ParseDisputeRole(value string) (DisputeRole, error) {
	for _, candidate := range validDisputeRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute role %q", value)
}
