package domain

import "time"

// UserType mirrors the account kind chosen at registration.
type UserType string

const (
	UserTypeTourist UserType = "user"
	UserTypeCompany UserType = "company"
)

// User is an account of the marketplace identity provider.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	UserType     UserType
	IsStaff      bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role resolves the support role of the account.
func (u *User) Role() Role {
	switch {
	case u.IsStaff:
		return RoleAdmin
	case u.UserType == UserTypeCompany:
		return RoleCompany
	default:
		return RoleCustomer
	}
}
