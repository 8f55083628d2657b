package authz

import "github.com/google/uuid"

const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

func ValidRole(role string) bool {
	return role == RoleCustomer || role == RoleVendor || role == RoleAdmin
}

// SignupRole reports whether a self-service signup may request role.
func SignupRole(role string) bool {
	return role == RoleCustomer || role == RoleVendor
}

func IsAdmin(role string) bool {
	return role == RoleAdmin
}

// Actor is the authenticated caller as derived from the bearer token.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// System is used for changes driven by payment provider webhooks.
var System = Actor{Role: RoleAdmin}
