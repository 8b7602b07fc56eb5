package dto

import (
	"time"

	"github.com/touripk/support-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CompanyID   string                `json:"company_id"`
	OrderID     *string               `json:"order_id"`
	PackageID   *string               `json:"package_id"`
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	IssueType   domain.IssueType      `json:"issue_type"`
	Priority    domain.TicketPriority `json:"priority"`
}

// TicketSummary response.
type TicketSummary struct {
	ID                 string                `json:"id"`
	Reference          string                `json:"reference"`
	CompanyID          string                `json:"company_id"`
	Subject            string                `json:"subject"`
	IssueType          domain.IssueType      `json:"issue_type"`
	Priority           domain.TicketPriority `json:"priority"`
	Status             domain.TicketStatus   `json:"status"`
	EscalatedToAdmin   bool                  `json:"escalated_to_admin"`
	IsOverdue          bool                  `json:"is_overdue"`
	TimeRemaining      string                `json:"time_remaining"`
	EscalationDeadline time.Time             `json:"escalation_deadline"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	CustomerID      string                  `json:"customer_id"`
	OrderID         *string                 `json:"order_id"`
	PackageID       *string                 `json:"package_id"`
	Description     string                  `json:"description"`
	FirstResponseAt *time.Time              `json:"first_response_at"`
	ResolvedAt      *time.Time              `json:"resolved_at"`
	EscalatedAt     *time.Time              `json:"escalated_at"`
	Messages        []TicketMessageResponse `json:"messages,omitempty"`
}

// TicketMessageResponse represents thread message.
type TicketMessageResponse struct {
	ID         string              `json:"id"`
	SenderID   string              `json:"sender_id"`
	SenderType domain.SenderType   `json:"sender_type"`
	Message    string              `json:"message"`
	Attachment *AttachmentResponse `json:"attachment,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Message    string             `json:"message"`
	Attachment *AttachmentRequest `json:"attachment"`
}

// AttachmentRequest describes attachment input.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ChangedByRole domain.Role          `json:"changed_by_role"`
	ChangedByID   *string              `json:"changed_by_id"`
	Trigger       domain.ChangeTrigger `json:"trigger"`
	OldStatus     domain.TicketStatus  `json:"old_status"`
	NewStatus     domain.TicketStatus  `json:"new_status"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Pagination describes a list page.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// TicketListResponse wraps a page of tickets.
type TicketListResponse struct {
	Data       []TicketSummary `json:"data"`
	Pagination Pagination      `json:"pagination"`
}

// NewTicketSummary renders a ticket at now.
func NewTicketSummary(t domain.Ticket, now time.Time) TicketSummary {
	return TicketSummary{
		ID:                 t.ID,
		Reference:          t.Reference,
		CompanyID:          t.CompanyID,
		Subject:            t.Subject,
		IssueType:          t.IssueType,
		Priority:           t.Priority,
		Status:             t.Status,
		EscalatedToAdmin:   t.EscalatedToAdmin,
		IsOverdue:          t.IsOverdue(now),
		TimeRemaining:      domain.FormatRemaining(t.TimeRemaining(now)),
		EscalationDeadline: t.EscalationDeadline,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// NewTicketDetail renders a ticket with its conversation.
func NewTicketDetail(t domain.Ticket, msgs []domain.TicketMessage, now time.Time) TicketDetailResponse {
	resp := TicketDetailResponse{
		TicketSummary:   NewTicketSummary(t, now),
		CustomerID:      t.CustomerID,
		OrderID:         t.OrderID,
		PackageID:       t.PackageID,
		Description:     t.Description,
		FirstResponseAt: t.FirstResponseAt,
		ResolvedAt:      t.ResolvedAt,
		EscalatedAt:     t.EscalatedAt,
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, NewTicketMessage(m))
	}
	return resp
}

// NewTicketMessage renders a conversation entry.
func NewTicketMessage(m domain.TicketMessage) TicketMessageResponse {
	resp := TicketMessageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		SenderType: m.SenderType,
		Message:    m.Body,
		CreatedAt:  m.CreatedAt,
	}
	if m.Attachment != nil {
		resp.Attachment = &AttachmentResponse{
			StorageKey: m.Attachment.StorageKey,
			FileName:   m.Attachment.FileName,
			MimeType:   m.Attachment.MimeType,
			SizeBytes:  m.Attachment.SizeBytes,
		}
	}
	return resp
}
