package domain

import "time"

// SenderType indicates who authored a message.
type SenderType string

const (
	SenderTypeCustomer SenderType = "customer"
	SenderTypeCompany  SenderType = "company"
	SenderTypeAdmin    SenderType = "admin"
)

// TicketMessage is one entry of a ticket's append-only conversation.
type TicketMessage struct {
	ID         string
	TicketID   string
	SenderID   string
	SenderType SenderType
	Body       string
	Attachment *Attachment
	CreatedAt  time.Time
}

// Attachment references an already uploaded file.
type Attachment struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}
