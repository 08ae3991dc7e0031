package access

// basePermissions is the static role authorization model: the CRUD grant a
// role carries before any route-level override. Admin holds every capability;
// Dairy and Farmer start view-only and pick up extra rights per route from
// the policy table. The table is the single source of truth, there are no
// runtime grant mutations, so the "edit/delete implies view" invariant holds
// by construction.
var basePermissions = map[Role]PermissionSet{
	RoleAdmin: {
		CanView:   true,
		CanCreate: true,
		CanEdit:   true,
		CanDelete: true,
	},
	RoleDairy: {
		CanView: true,
	},
	RoleFarmer: {
		CanView: true,
	},
}

// HasPermission is a pure lookup into the base model. Invalid roles have no
// permissions at all.
func HasPermission(role Role, permission Permission) bool {
	perms, ok := basePermissions[role]
	if !ok {
		return false
	}
	return perms.Has(permission)
}

// BasePermissions returns a copy of the role's base grant, empty for roles
// outside the closed set.
func BasePermissions(role Role) PermissionSet {
	return basePermissions[role]
}
