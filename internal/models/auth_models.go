package models

// Staff roles. Authentication is per role, shared by everyone on that station.
const (
	RoleWaiter  = "waiter"
	RoleKitchen = "kitchen"
	RoleManager = "manager"
)

// Roles lists every known role.
var Roles = []string{RoleWaiter, RoleKitchen, RoleManager}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}
