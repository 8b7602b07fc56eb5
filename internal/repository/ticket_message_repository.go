package repository

import (
	"context"

	"github.com/touripk/support-desk/internal/domain"
)

// TicketMessageRepository manages ticket conversation messages. Messages are never updated.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
}

type ticketMessageRepository struct {
	db DBTX
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(db DBTX) TicketMessageRepository {
	return &ticketMessageRepository{db: db}
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, sender_id, sender_type, body,
            attachment_key, attachment_name, attachment_mime, attachment_size, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id`
	var key, name, mime *string
	var size *int64
	if att := msg.Attachment; att != nil {
		key, name, mime, size = &att.StorageKey, &att.FileName, &att.MimeType, &att.SizeBytes
	}
	return r.db.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderID,
		msg.SenderType,
		msg.Body,
		key,
		name,
		mime,
		size,
		msg.CreatedAt,
	).Scan(&msg.ID)
}

// ListByTicket returns the conversation oldest first; seq breaks ties between equal timestamps.
func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, sender_id, sender_type, body,
               attachment_key, attachment_name, attachment_mime, attachment_size, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var (
			msg  domain.TicketMessage
			key  *string
			name *string
			mime *string
			size *int64
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.SenderID,
			&msg.SenderType,
			&msg.Body,
			&key,
			&name,
			&mime,
			&size,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		if key != nil {
			msg.Attachment = &domain.Attachment{StorageKey: *key}
			if name != nil {
				msg.Attachment.FileName = *name
			}
			if mime != nil {
				msg.Attachment.MimeType = *mime
			}
			if size != nil {
				msg.Attachment.SizeBytes = *size
			}
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
