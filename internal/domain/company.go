package domain

import "time"

// ApprovalStatus tracks the marketplace's vetting of a tour company.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Company is a tour operator that customers can raise tickets against.
type Company struct {
	ID             string
	OwnerID        *string
	Name           string
	Email          string
	ApprovalStatus ApprovalStatus
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AcceptsTickets reports whether new tickets may be opened against the company.
func (c *Company) AcceptsTickets() bool {
	return c.IsActive && c.ApprovalStatus == ApprovalApproved
}
