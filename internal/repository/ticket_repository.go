package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/touripk/support-desk/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	CustomerID    *string
	CompanyIDs    []string
	Statuses      []domain.TicketStatus
	EscalatedOnly bool
	Limit         int
	Offset        int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByReference(ctx context.Context, reference string) (*domain.Ticket, error)
	GetByReferenceForUpdate(ctx context.Context, reference string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListOverdueForUpdate locks pending tickets past their deadline. Only the customer and
	// company scope of filter applies; locked rows held by other transactions are skipped.
	ListOverdueForUpdate(ctx context.Context, filter TicketFilter, now time.Time) ([]domain.Ticket, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, reference, customer_id, company_id, order_id, package_id, subject, description,
               issue_type, priority, status, created_at, updated_at, first_response_at, resolved_at,
               escalated_at, escalation_deadline, escalated_to_admin`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO support_tickets (reference, customer_id, company_id, order_id, package_id, subject, description,
            issue_type, priority, status, created_at, updated_at, escalation_deadline, escalated_to_admin)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		ticket.Reference,
		ticket.CustomerID,
		ticket.CompanyID,
		ticket.OrderID,
		ticket.PackageID,
		ticket.Subject,
		ticket.Description,
		ticket.IssueType,
		ticket.Priority,
		ticket.Status,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.EscalationDeadline,
		ticket.EscalatedToAdmin,
	).Scan(&ticket.ID)
}

// Update writes the mutable lifecycle columns; created_at and escalation_deadline never change.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE support_tickets SET status=$1, updated_at=$2, first_response_at=$3, resolved_at=$4,
            escalated_at=$5, escalated_to_admin=$6
        WHERE id=$7`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Status,
		ticket.UpdatedAt,
		ticket.FirstResponseAt,
		ticket.ResolvedAt,
		ticket.EscalatedAt,
		ticket.EscalatedToAdmin,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByReference(ctx context.Context, reference string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM support_tickets WHERE reference=$1`
	return r.fetchSingle(ctx, query, reference)
}

func (r *ticketRepository) GetByReferenceForUpdate(ctx context.Context, reference string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM support_tickets WHERE reference=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, reference)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses, args := scopeClauses(filter)
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.EscalatedOnly {
		args = append(args, domain.TicketStatusEscalated)
		clauses = append(clauses, fmt.Sprintf("(status=$%d OR escalated_to_admin)", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM support_tickets WHERE %s ORDER BY created_at ASC, id ASC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListOverdueForUpdate(ctx context.Context, filter TicketFilter, now time.Time) ([]domain.Ticket, error) {
	clauses, args := scopeClauses(filter)
	args = append(args, domain.TicketStatusPendingCompany)
	clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	args = append(args, now)
	clauses = append(clauses, fmt.Sprintf("escalation_deadline < $%d", len(args)))

	query := fmt.Sprintf(`SELECT %s FROM support_tickets WHERE %s ORDER BY escalation_deadline ASC`,
		ticketColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	query += " FOR UPDATE SKIP LOCKED"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scopeClauses(filter TicketFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.CompanyIDs != nil {
		args = append(args, filter.CompanyIDs)
		clauses = append(clauses, fmt.Sprintf("company_id = ANY($%d)", len(args)))
	}
	return clauses, args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Reference,
		&ticket.CustomerID,
		&ticket.CompanyID,
		&ticket.OrderID,
		&ticket.PackageID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.IssueType,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.FirstResponseAt,
		&ticket.ResolvedAt,
		&ticket.EscalatedAt,
		&ticket.EscalationDeadline,
		&ticket.EscalatedToAdmin,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
