package domain

import "time"

// ChangeTrigger captures what caused a status change.
type ChangeTrigger string

const (
	TriggerCompanyReply      ChangeTrigger = "company_reply"
	TriggerResolve           ChangeTrigger = "resolve"
	TriggerManualEscalation  ChangeTrigger = "manual_escalation"
	TriggerEscalationOnRead  ChangeTrigger = "escalation_on_read"
	TriggerEscalationOnSweep ChangeTrigger = "escalation_sweep"
)

// TicketHistory is an immutable audit trail entry of a status change.
type TicketHistory struct {
	ID            string
	TicketID      string
	ChangedByRole Role
	ChangedByID   *string
	Trigger       ChangeTrigger
	OldStatus     TicketStatus
	NewStatus     TicketStatus
	CreatedAt     time.Time
}
