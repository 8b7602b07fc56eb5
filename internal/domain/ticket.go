package domain

import (
	"errors"
	"fmt"
	"time"
)

// EscalationWindow is how long a company has to answer before a ticket escalates.
const EscalationWindow = 48 * time.Hour

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPendingCompany TicketStatus = "pending_company"
	TicketStatusInProgress     TicketStatus = "in_progress"
	TicketStatusResolved       TicketStatus = "resolved"
	TicketStatusEscalated      TicketStatus = "escalated"
	TicketStatusClosed         TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPendingCompany, TicketStatusInProgress, TicketStatusResolved,
		TicketStatusEscalated, TicketStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions apply.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates customer-declared urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// IssueType classifies what the ticket is about.
type IssueType string

const (
	IssueTypeDelivery     IssueType = "delivery"
	IssueTypeQuality      IssueType = "quality"
	IssueTypePackageIssue IssueType = "package_issue"
	IssueTypeBilling      IssueType = "billing"
	IssueTypeBooking      IssueType = "booking"
	IssueTypeRefund       IssueType = "refund"
	IssueTypeOther        IssueType = "other"
)

var (
	// ErrNotYetEligible is returned when a customer escalates before the company deadline.
	ErrNotYetEligible = errors.New("ticket cannot be escalated yet, the company still has time to respond")
	// ErrAlreadyResolved is returned when escalating a resolved or closed ticket.
	ErrAlreadyResolved = errors.New("ticket is already resolved")
)

// Ticket is the aggregate for support requests raised by customers against a company.
type Ticket struct {
	ID                 string
	Reference          string
	CustomerID         string
	CompanyID          string
	OrderID            *string
	PackageID          *string
	Subject            string
	Description        string
	IssueType          IssueType
	Priority           TicketPriority
	Status             TicketStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
	FirstResponseAt    *time.Time
	ResolvedAt         *time.Time
	EscalatedAt        *time.Time
	EscalationDeadline time.Time
	EscalatedToAdmin   bool
}

// NewTicket builds a ticket waiting on the company, with its deadline fixed at creation.
func NewTicket(customerID, companyID, subject, description string, issueType IssueType, priority TicketPriority, now time.Time) *Ticket {
	if issueType == "" {
		issueType = IssueTypeOther
	}
	if priority == "" {
		priority = TicketPriorityMedium
	}
	return &Ticket{
		CustomerID:         customerID,
		CompanyID:          companyID,
		Subject:            subject,
		Description:        description,
		IssueType:          issueType,
		Priority:           priority,
		Status:             TicketStatusPendingCompany,
		CreatedAt:          now,
		UpdatedAt:          now,
		EscalationDeadline: now.Add(EscalationWindow),
	}
}

// IsOverdue reports whether the company response deadline has passed.
func (t *Ticket) IsOverdue(now time.Time) bool {
	if t.Status.Terminal() {
		return false
	}
	return now.After(t.EscalationDeadline)
}

// TimeRemaining is the time left before auto-escalation, zero once it no longer applies.
func (t *Ticket) TimeRemaining(now time.Time) time.Duration {
	if t.Status.Terminal() || t.Status == TicketStatusEscalated {
		return 0
	}
	remaining := t.EscalationDeadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CheckAndEscalate escalates a pending ticket whose deadline has passed.
// It reports whether the ticket changed; calling it again with the same now is a no-op.
func (t *Ticket) CheckAndEscalate(now time.Time) bool {
	if t.Status != TicketStatusPendingCompany || !t.IsOverdue(now) {
		return false
	}
	t.Escalate(now)
	return true
}

// Escalate hands the ticket to an administrator unconditionally.
func (t *Ticket) Escalate(now time.Time) {
	t.Status = TicketStatusEscalated
	t.EscalatedToAdmin = true
	escalatedAt := now
	t.EscalatedAt = &escalatedAt
	t.UpdatedAt = now
}

// EscalateManually applies a customer's escalation request.
func (t *Ticket) EscalateManually(now time.Time) (bool, error) {
	if t.Status.Terminal() {
		return false, ErrAlreadyResolved
	}
	if t.Status == TicketStatusEscalated {
		return false, nil
	}
	if !t.IsOverdue(now) {
		return false, ErrNotYetEligible
	}
	t.Escalate(now)
	return true, nil
}

// Resolve marks the ticket resolved. Resolving a resolved or closed ticket changes nothing.
func (t *Ticket) Resolve(now time.Time) bool {
	if t.Status.Terminal() {
		return false
	}
	t.Status = TicketStatusResolved
	resolvedAt := now
	t.ResolvedAt = &resolvedAt
	t.UpdatedAt = now
	return true
}

// RecordReply applies the side effects of a new conversation message.
// Only a company reply on a pending ticket moves it forward; it reports whether the status changed.
func (t *Ticket) RecordReply(sender SenderType, now time.Time) bool {
	t.UpdatedAt = now
	if sender != SenderTypeCompany {
		return false
	}
	if t.FirstResponseAt == nil {
		firstResponse := now
		t.FirstResponseAt = &firstResponse
	}
	if t.Status != TicketStatusPendingCompany {
		return false
	}
	t.Status = TicketStatusInProgress
	return true
}

// FormatRemaining renders a remaining duration as "{h}h {m}m".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%dh %dm", total/3600, (total%3600)/60)
}
