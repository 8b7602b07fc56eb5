package domain

// Role is the support role of the caller, resolved once per request.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleCompany  Role = "company"
	RoleAdmin    Role = "admin"
	// RoleSystem marks audit entries written by deadline checks rather than a person.
	RoleSystem Role = "system"
)

// Actor is the authenticated caller acting on tickets.
type Actor struct {
	UserID     string
	Role       Role
	CompanyIDs []string
}

// OwnsCompany reports whether the actor operates the given company.
func (a Actor) OwnsCompany(companyID string) bool {
	if a.Role != RoleCompany {
		return false
	}
	for _, id := range a.CompanyIDs {
		if id == companyID {
			return true
		}
	}
	return false
}

// CanAccess reports whether the actor may view or mutate the ticket.
func (a Actor) CanAccess(t *Ticket) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleCompany:
		return a.OwnsCompany(t.CompanyID)
	case RoleCustomer:
		return a.UserID != "" && t.CustomerID == a.UserID
	}
	return false
}

// CanResolve reports whether the actor may resolve the ticket.
func (a Actor) CanResolve(t *Ticket) bool {
	return a.Role == RoleAdmin || a.OwnsCompany(t.CompanyID)
}

// SenderType maps the role to the conversation sender type.
func (a Actor) SenderType() SenderType {
	switch a.Role {
	case RoleAdmin:
		return SenderTypeAdmin
	case RoleCompany:
		return SenderTypeCompany
	default:
		return SenderTypeCustomer
	}
}
