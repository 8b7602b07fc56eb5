package events

import (
	"time"

	"github.com/touripk/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketMessageAdded  EventType = "ticket_message_added"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketResolved      EventType = "ticket_resolved"
)

// AllEventTypes lists every event a subscriber may want to mirror.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketMessageAdded,
	EventTicketStatusChanged,
	EventTicketEscalated,
	EventTicketResolved,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Role   domain.Role `json:"role"`
	UserID *string     `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Reference string      `json:"reference"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CustomerID         string                `json:"customer_id"`
	CompanyID          string                `json:"company_id"`
	CompanyName        string                `json:"company_name"`
	CompanyEmail       string                `json:"company_email,omitempty"`
	Subject            string                `json:"subject"`
	IssueType          domain.IssueType      `json:"issue_type"`
	Priority           domain.TicketPriority `json:"priority"`
	EscalationDeadline time.Time             `json:"escalation_deadline"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus  `json:"old_status"`
	NewStatus domain.TicketStatus  `json:"new_status"`
	Trigger   domain.ChangeTrigger `json:"trigger"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	CompanyID          string               `json:"company_id"`
	Subject            string               `json:"subject"`
	Trigger            domain.ChangeTrigger `json:"trigger"`
	EscalationDeadline time.Time            `json:"escalation_deadline"`
	EscalatedAt        time.Time            `json:"escalated_at"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	OldStatus     domain.TicketStatus `json:"old_status"`
	ResolvedAt    time.Time           `json:"resolved_at"`
	Subject       string              `json:"subject"`
	CustomerEmail string              `json:"customer_email,omitempty"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID     string            `json:"message_id"`
	SenderType    domain.SenderType `json:"sender_type"`
	SenderID      string            `json:"sender_id"`
	BodyPreview   string            `json:"body_preview"`
	HasAttachment bool              `json:"has_attachment"`
}
