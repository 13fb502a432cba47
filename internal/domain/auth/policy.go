package auth

// Decision is the outcome of evaluating an identity against a tenant.
type Decision struct {
	Authorized bool
	Role       Role
}

// Evaluate decides whether identity may sign in to tenant and with which role.
// A nil tenant (domain not registered) is never authorized.
// It is a pure function of its inputs.
func Evaluate(identity Identity, tenant *Tenant) Decision {
	if tenant == nil || !tenant.Allows(identity.Email) {
		return Decision{Authorized: false, Role: RoleNone}
	}
	if tenant.IsAdmin(identity.Email) {
		return Decision{Authorized: true, Role: RoleAdmin}
	}
	return Decision{Authorized: true, Role: RoleStaff}
}
