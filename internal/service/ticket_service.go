package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/touripk/support-desk/internal/domain"
	"github.com/touripk/support-desk/internal/events"
	"github.com/touripk/support-desk/internal/observability"
	"github.com/touripk/support-desk/internal/repository"
	apperrors "github.com/touripk/support-desk/pkg/util"
)

// Clock returns the current time. Tests inject a fixed one.
type Clock func() time.Time

// SystemClock is UTC wall time at the precision Postgres stores.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	repos      repository.Repositories
	tx         repository.TxRunner
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        Clock
	validate   *validator.Validate
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Repos      repository.Repositories
	Tx         repository.TxRunner
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      Clock
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	CompanyID   string                `validate:"required,uuid"`
	OrderID     *string               `validate:"omitempty,uuid"`
	PackageID   *string               `validate:"omitempty,uuid"`
	Subject     string                `validate:"required,max=200"`
	Description string                `validate:"required,max=10000"`
	IssueType   domain.IssueType      `validate:"omitempty,oneof=delivery quality package_issue billing booking refund other"`
	Priority    domain.TicketPriority `validate:"omitempty,oneof=low medium high urgent"`
}

// MessageInput is a reply on a ticket conversation.
type MessageInput struct {
	Body       string
	Attachment *domain.Attachment
}

// TicketListFilter narrows list results.
type TicketListFilter struct {
	Statuses []domain.TicketStatus
	// All lists every ticket on the admin queue instead of the escalated ones only.
	All    bool
	Limit  int
	Offset int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		repos:      deps.Repos,
		tx:         deps.Tx,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
		validate:   validator.New(),
	}
}

// CreateTicket opens a ticket for a customer against a company.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input CreateTicketInput) (*domain.Ticket, error) {
	if actor.Role != domain.RoleCustomer {
		return nil, apperrors.NewForbidden("only customers can open support tickets")
	}
	input.CompanyID = strings.TrimSpace(input.CompanyID)
	input.Subject = strings.TrimSpace(input.Subject)
	input.Description = strings.TrimSpace(input.Description)
	input.OrderID = trimOptional(input.OrderID)
	input.PackageID = trimOptional(input.PackageID)
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	var (
		ticket  *domain.Ticket
		company *domain.Company
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		company, err = repos.Companies.GetByID(ctx, input.CompanyID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("company does not exist", map[string]any{"company_id": input.CompanyID})
		}
		if err != nil {
			return err
		}
		if !company.AcceptsTickets() {
			return apperrors.NewValidationError("company is not accepting support tickets", map[string]any{"company_id": input.CompanyID})
		}

		ticket = domain.NewTicket(actor.UserID, company.ID, input.Subject, input.Description, input.IssueType, input.Priority, now)
		ticket.Reference = generateTicketReference()

		if input.OrderID != nil {
			ok, err := repos.References.OrderBelongsTo(ctx, *input.OrderID, actor.UserID)
			if err != nil {
				return err
			}
			if ok {
				ticket.OrderID = input.OrderID
			}
		}
		if input.PackageID != nil {
			ok, err := repos.References.PackageExists(ctx, *input.PackageID)
			if err != nil {
				return err
			}
			if ok {
				ticket.PackageID = input.PackageID
			}
		}

		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		return repos.Messages.Create(ctx, &domain.TicketMessage{
			TicketID:   ticket.ID,
			SenderID:   actor.UserID,
			SenderType: domain.SenderTypeCustomer,
			Body:       ticket.Description,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.String("reference", ticket.Reference),
		zap.String("company_id", ticket.CompanyID),
		zap.Time("escalation_deadline", ticket.EscalationDeadline))
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		Reference: ticket.Reference,
		Actor:     eventActor(actor),
		Timestamp: now,
		Payload: events.TicketCreatedPayload{
			CustomerID:         ticket.CustomerID,
			CompanyID:          company.ID,
			CompanyName:        company.Name,
			CompanyEmail:       company.Email,
			Subject:            ticket.Subject,
			IssueType:          ticket.IssueType,
			Priority:           ticket.Priority,
			EscalationDeadline: ticket.EscalationDeadline,
		},
	})
	return ticket, nil
}

// GetTicket returns a ticket with its conversation after applying any due escalation.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, reference string) (*domain.Ticket, []domain.TicketMessage, error) {
	now := s.now()
	var (
		ticket    *domain.Ticket
		msgs      []domain.TicketMessage
		escalated bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ticket, err = s.loadForUpdate(ctx, repos, actor, reference)
		if err != nil {
			return err
		}
		if escalated, err = s.applyDeadline(ctx, repos, ticket, now, domain.TriggerEscalationOnRead); err != nil {
			return err
		}
		msgs, err = repos.Messages.ListByTicket(ctx, ticket.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if escalated {
		s.afterEscalation(ctx, ticket, systemActor(), domain.TriggerEscalationOnRead, domain.TicketStatusPendingCompany)
	}
	return ticket, msgs, nil
}

// AddMessage appends a reply to the conversation. A company reply moves a pending ticket forward.
func (s *TicketService) AddMessage(ctx context.Context, actor domain.Actor, reference string, input MessageInput) (*domain.TicketMessage, *domain.Ticket, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" && input.Attachment == nil {
		return nil, nil, apperrors.NewValidationError("message body is required", map[string]any{"field": "message"})
	}
	if input.Attachment != nil {
		if err := validateAttachment(input.Attachment); err != nil {
			return nil, nil, err
		}
	}

	now := s.now()
	sender := actor.SenderType()
	var (
		ticket    *domain.Ticket
		msg       *domain.TicketMessage
		escalated bool
		oldStatus domain.TicketStatus
		changed   bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ticket, err = s.loadForUpdate(ctx, repos, actor, reference)
		if err != nil {
			return err
		}
		if escalated, err = s.applyDeadline(ctx, repos, ticket, now, domain.TriggerEscalationOnRead); err != nil {
			return err
		}

		oldStatus = ticket.Status
		changed = ticket.RecordReply(sender, now)
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		msg = &domain.TicketMessage{
			TicketID:   ticket.ID,
			SenderID:   actor.UserID,
			SenderType: sender,
			Body:       body,
			Attachment: input.Attachment,
			CreatedAt:  now,
		}
		if err := repos.Messages.Create(ctx, msg); err != nil {
			return err
		}
		if changed {
			return recordHistory(ctx, repos, ticket.ID, actor.Role, &actor.UserID, domain.TriggerCompanyReply, oldStatus, ticket.Status, now)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if escalated {
		s.afterEscalation(ctx, ticket, systemActor(), domain.TriggerEscalationOnRead, domain.TicketStatusPendingCompany)
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketMessageAdded,
		TicketID:  ticket.ID,
		Reference: ticket.Reference,
		Actor:     eventActor(actor),
		Timestamp: now,
		Payload: events.TicketMessageAddedPayload{
			MessageID:     msg.ID,
			SenderType:    msg.SenderType,
			SenderID:      msg.SenderID,
			BodyPreview:   stringPreview(msg.Body, 120),
			HasAttachment: msg.Attachment != nil,
		},
	})
	if changed {
		s.publishStatusChange(ctx, ticket, eventActor(actor), oldStatus, domain.TriggerCompanyReply, now)
	}
	return msg, ticket, nil
}

// Escalate hands an overdue ticket to the administrators at the customer's request.
func (s *TicketService) Escalate(ctx context.Context, actor domain.Actor, reference string) (*domain.Ticket, error) {
	now := s.now()
	var (
		ticket    *domain.Ticket
		oldStatus domain.TicketStatus
		changed   bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ticket, err = s.loadForUpdate(ctx, repos, actor, reference)
		if err != nil {
			return err
		}
		if actor.Role != domain.RoleCustomer {
			return apperrors.NewForbidden("only the customer who opened the ticket can escalate it")
		}

		oldStatus = ticket.Status
		changed, err = ticket.EscalateManually(now)
		switch {
		case errors.Is(err, domain.ErrNotYetEligible):
			remaining := ticket.TimeRemaining(now)
			return apperrors.NewRejected(err.Error(), map[string]any{
				"escalation_deadline": ticket.EscalationDeadline,
				"time_remaining":      domain.FormatRemaining(remaining),
			})
		case errors.Is(err, domain.ErrAlreadyResolved):
			return apperrors.NewRejected(err.Error(), map[string]any{"status": ticket.Status})
		case err != nil:
			return err
		}
		if !changed {
			return nil
		}
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		return recordHistory(ctx, repos, ticket.ID, actor.Role, &actor.UserID, domain.TriggerManualEscalation, oldStatus, ticket.Status, now)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.afterEscalation(ctx, ticket, eventActor(actor), domain.TriggerManualEscalation, oldStatus)
	}
	return ticket, nil
}

// Resolve closes out a ticket on behalf of its company or an administrator.
func (s *TicketService) Resolve(ctx context.Context, actor domain.Actor, reference string) (*domain.Ticket, error) {
	now := s.now()
	var (
		ticket        *domain.Ticket
		oldStatus     domain.TicketStatus
		changed       bool
		customerEmail string
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ticket, err = s.loadForUpdate(ctx, repos, actor, reference)
		if err != nil {
			return err
		}
		if !actor.CanResolve(ticket) {
			return apperrors.NewForbidden("only the company or an administrator can resolve a ticket")
		}
		oldStatus = ticket.Status
		if changed = ticket.Resolve(now); !changed {
			return nil
		}
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if err := recordHistory(ctx, repos, ticket.ID, actor.Role, &actor.UserID, domain.TriggerResolve, oldStatus, ticket.Status, now); err != nil {
			return err
		}
		if customer, err := repos.Users.GetByID(ctx, ticket.CustomerID); err == nil {
			customerEmail = customer.Email
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return ticket, nil
	}

	s.logger.Info("ticket resolved",
		zap.String("reference", ticket.Reference),
		zap.String("old_status", string(oldStatus)),
		zap.String("role", string(actor.Role)))
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketResolved,
		TicketID:  ticket.ID,
		Reference: ticket.Reference,
		Actor:     eventActor(actor),
		Timestamp: now,
		Payload: events.TicketResolvedPayload{
			OldStatus:     oldStatus,
			ResolvedAt:    now,
			CustomerEmail: customerEmail,
			Subject:       ticket.Subject,
		},
	})
	s.publishStatusChange(ctx, ticket, eventActor(actor), oldStatus, domain.TriggerResolve, now)
	return ticket, nil
}

// ListCustomerTickets lists the caller's own tickets, oldest first.
func (s *TicketService) ListCustomerTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	if actor.Role != domain.RoleCustomer {
		return nil, apperrors.NewForbidden("customer account required")
	}
	customerID := actor.UserID
	return s.listWithEscalation(ctx, repository.TicketFilter{CustomerID: &customerID}, filter)
}

// ListCompanyTickets lists tickets raised against the companies the caller operates.
func (s *TicketService) ListCompanyTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	if actor.Role != domain.RoleCompany {
		return nil, apperrors.NewForbidden("company account required")
	}
	if len(actor.CompanyIDs) == 0 {
		return nil, apperrors.NewNotFound("company", nil)
	}
	return s.listWithEscalation(ctx, repository.TicketFilter{CompanyIDs: actor.CompanyIDs}, filter)
}

// ListAdminTickets lists the escalation queue, or every ticket when filter.All is set.
func (s *TicketService) ListAdminTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("administrator access required")
	}
	return s.listWithEscalation(ctx, repository.TicketFilter{EscalatedOnly: !filter.All}, filter)
}

// ListHistory returns the status audit trail of a ticket.
func (s *TicketService) ListHistory(ctx context.Context, actor domain.Actor, reference string) ([]domain.TicketHistory, error) {
	ticket, err := s.repos.Tickets.GetByReference(ctx, reference)
	if err != nil {
		return nil, notFoundTicket(err, reference)
	}
	if !actor.CanAccess(ticket) {
		return nil, apperrors.NewForbidden("you do not have access to this ticket")
	}
	return s.repos.History.ListByTicket(ctx, ticket.ID)
}

// EscalateOverdue escalates up to limit overdue pending tickets across all companies.
func (s *TicketService) EscalateOverdue(ctx context.Context, limit int) (int, error) {
	now := s.now()
	var escalated []domain.Ticket
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		escalated, err = s.escalateScope(ctx, repos, repository.TicketFilter{Limit: limit}, now, domain.TriggerEscalationOnSweep)
		return err
	})
	if err != nil {
		return 0, err
	}
	for i := range escalated {
		s.afterEscalation(ctx, &escalated[i], systemActor(), domain.TriggerEscalationOnSweep, domain.TicketStatusPendingCompany)
	}
	return len(escalated), nil
}

func (s *TicketService) listWithEscalation(ctx context.Context, scope repository.TicketFilter, filter TicketListFilter) ([]domain.Ticket, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": status})
		}
	}

	now := s.now()
	var (
		tickets   []domain.Ticket
		escalated []domain.Ticket
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		escalated, err = s.escalateScope(ctx, repos, repository.TicketFilter{
			CustomerID: scope.CustomerID,
			CompanyIDs: scope.CompanyIDs,
		}, now, domain.TriggerEscalationOnRead)
		if err != nil {
			return err
		}
		scope.Statuses = filter.Statuses
		scope.Limit = filter.Limit
		scope.Offset = filter.Offset
		tickets, err = repos.Tickets.List(ctx, scope)
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := range escalated {
		s.afterEscalation(ctx, &escalated[i], systemActor(), domain.TriggerEscalationOnRead, domain.TicketStatusPendingCompany)
	}
	return tickets, nil
}

func (s *TicketService) escalateScope(ctx context.Context, repos repository.Repositories, scope repository.TicketFilter, now time.Time, trigger domain.ChangeTrigger) ([]domain.Ticket, error) {
	overdue, err := repos.Tickets.ListOverdueForUpdate(ctx, scope, now)
	if err != nil {
		return nil, err
	}
	escalated := make([]domain.Ticket, 0, len(overdue))
	for i := range overdue {
		ok, err := s.applyDeadline(ctx, repos, &overdue[i], now, trigger)
		if err != nil {
			return nil, err
		}
		if ok {
			escalated = append(escalated, overdue[i])
		}
	}
	return escalated, nil
}

// applyDeadline persists a due escalation of a locked ticket and reports whether one happened.
func (s *TicketService) applyDeadline(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, now time.Time, trigger domain.ChangeTrigger) (bool, error) {
	oldStatus := ticket.Status
	if !ticket.CheckAndEscalate(now) {
		return false, nil
	}
	if err := repos.Tickets.Update(ctx, ticket); err != nil {
		return false, err
	}
	if err := recordHistory(ctx, repos, ticket.ID, domain.RoleSystem, nil, trigger, oldStatus, ticket.Status, now); err != nil {
		return false, err
	}
	return true, nil
}

func (s *TicketService) loadForUpdate(ctx context.Context, repos repository.Repositories, actor domain.Actor, reference string) (*domain.Ticket, error) {
	ticket, err := repos.Tickets.GetByReferenceForUpdate(ctx, reference)
	if err != nil {
		return nil, notFoundTicket(err, reference)
	}
	if !actor.CanAccess(ticket) {
		return nil, apperrors.NewForbidden("you do not have access to this ticket")
	}
	return ticket, nil
}

func (s *TicketService) afterEscalation(ctx context.Context, ticket *domain.Ticket, actor events.Actor, trigger domain.ChangeTrigger, oldStatus domain.TicketStatus) {
	s.metrics.RecordEscalation(string(trigger))
	s.logger.Warn("ticket escalated to admin",
		zap.String("reference", ticket.Reference),
		zap.String("trigger", string(trigger)),
		zap.Time("escalation_deadline", ticket.EscalationDeadline))

	escalatedAt := ticket.UpdatedAt
	if ticket.EscalatedAt != nil {
		escalatedAt = *ticket.EscalatedAt
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketEscalated,
		TicketID:  ticket.ID,
		Reference: ticket.Reference,
		Actor:     actor,
		Timestamp: escalatedAt,
		Payload: events.TicketEscalatedPayload{
			CompanyID:          ticket.CompanyID,
			Subject:            ticket.Subject,
			Trigger:            trigger,
			EscalationDeadline: ticket.EscalationDeadline,
			EscalatedAt:        escalatedAt,
		},
	})
	s.publishStatusChange(ctx, ticket, actor, oldStatus, trigger, escalatedAt)
}

func (s *TicketService) publishStatusChange(ctx context.Context, ticket *domain.Ticket, actor events.Actor, oldStatus domain.TicketStatus, trigger domain.ChangeTrigger, at time.Time) {
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketStatusChanged,
		TicketID:  ticket.ID,
		Reference: ticket.Reference,
		Actor:     actor,
		Timestamp: at,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
			Trigger:   trigger,
		},
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	s.metrics.RecordEvent(string(event.Type))
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("reference", event.Reference),
			zap.Error(err))
	}
}

func (s *TicketService) validateInput(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError("invalid request", nil)
	}
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[toSnake(fe.Field())] = fe.Tag()
	}
	return apperrors.NewValidationError("invalid ticket fields", details)
}

func recordHistory(ctx context.Context, repos repository.Repositories, ticketID string, role domain.Role, actorID *string, trigger domain.ChangeTrigger, oldStatus, newStatus domain.TicketStatus, now time.Time) error {
	return repos.History.Create(ctx, &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByRole: role,
		ChangedByID:   actorID,
		Trigger:       trigger,
		OldStatus:     oldStatus,
		NewStatus:     newStatus,
		CreatedAt:     now,
	})
}

func validateAttachment(att *domain.Attachment) error {
	details := map[string]any{}
	if strings.TrimSpace(att.StorageKey) == "" {
		details["storage_key"] = "required"
	}
	if strings.TrimSpace(att.FileName) == "" {
		details["file_name"] = "required"
	}
	if att.SizeBytes < 0 {
		details["size_bytes"] = "min"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid attachment", details)
	}
	return nil
}

func notFoundTicket(err error, reference string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"reference": reference})
	}
	return err
}

func generateTicketReference() string {
	return "TKT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func eventActor(actor domain.Actor) events.Actor {
	id := actor.UserID
	return events.Actor{Role: actor.Role, UserID: &id}
}

func systemActor() events.Actor {
	return events.Actor{Role: domain.RoleSystem}
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// stringPreview shortens body to at most max runes.
func stringPreview(body string, max int) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= max {
		return string(runes)
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func toSnake(field string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range field {
		upper := r >= 'A' && r <= 'Z'
		if upper {
			if prevLower {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		prevLower = !upper
		b.WriteRune(r)
	}
	return b.String()
}
