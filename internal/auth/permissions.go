package auth

import "slices"

type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleOperator, RoleAdmin:
		return true
	}
	return false
}

type Permission string

const (
	PermParametersRead  Permission = "parameters:read"
	PermParametersWrite Permission = "parameters:write"
	PermSyncControl     Permission = "sync:control"
)

var rolePermissions = map[Role][]Permission{
	RoleViewer:   {PermParametersRead},
	RoleOperator: {PermParametersRead, PermSyncControl},
	RoleAdmin:    {PermParametersRead, PermParametersWrite, PermSyncControl},
}

// Permissions returns what the role may do
func (r Role) Permissions() []Permission {
	return slices.Clone(rolePermissions[r])
}

// Has reports whether the role grants p
func (r Role) Has(p Permission) bool {
	return slices.Contains(rolePermissions[r], p)
}
