package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/touripk/support-desk/internal/api/dto"
	"github.com/touripk/support-desk/internal/auth"
	"github.com/touripk/support-desk/internal/domain"
	"github.com/touripk/support-desk/internal/service"
	apperrors "github.com/touripk/support-desk/pkg/util"
)

const (
	maxPageSize = 100
	// maxListOffset bounds how deep a client can page into a queue.
	maxListOffset = 1_000_000
)

// TicketsHandler serves the ticket endpoints shared by every role.
type TicketsHandler struct {
	service *service.TicketService
	now     service.Clock
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, clock service.Clock) *TicketsHandler {
	if clock == nil {
		clock = service.SystemClock
	}
	return &TicketsHandler{service: ticketService, now: clock}
}

// CreateTicket POST /support/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.CreateTicketInput{
		CompanyID:   req.CompanyID,
		OrderID:     req.OrderID,
		PackageID:   req.PackageID,
		Subject:     req.Subject,
		Description: req.Description,
		IssueType:   req.IssueType,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketDetail(*ticket, nil, h.now())})
}

// ListMyTickets GET /support/tickets.
func (h *TicketsHandler) ListMyTickets(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	filter, page, err := parseTicketListQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListCustomerTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(ticketList(tickets, page, h.now))
}

// GetTicket GET /support/tickets/:reference.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticket, msgs, err := h.service.GetTicket(c.UserContext(), actor, c.Params("reference"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(*ticket, msgs, h.now())})
}

// AddMessage POST /support/tickets/:reference/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	input := service.MessageInput{Body: req.Message}
	if req.Attachment != nil {
		input.Attachment = &domain.Attachment{
			StorageKey: req.Attachment.StorageKey,
			FileName:   req.Attachment.FileName,
			MimeType:   req.Attachment.MimeType,
			SizeBytes:  req.Attachment.SizeBytes,
		}
	}

	msg, ticket, err := h.service.AddMessage(c.UserContext(), actor, c.Params("reference"), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"message": dto.NewTicketMessage(*msg),
		"ticket":  dto.NewTicketSummary(*ticket, h.now()),
	}})
}

// Escalate POST /support/tickets/:reference/escalate.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Escalate(c.UserContext(), actor, c.Params("reference"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(*ticket, h.now())})
}

// Resolve POST /support/tickets/:reference/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Resolve(c.UserContext(), actor, c.Params("reference"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(*ticket, h.now())})
}

// History GET /support/tickets/:reference/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	entries, err := h.service.ListHistory(c.UserContext(), actor, c.Params("reference"))
	if err != nil {
		return err
	}
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ChangedByRole: entry.ChangedByRole,
			ChangedByID:   entry.ChangedByID,
			Trigger:       entry.Trigger,
			OldStatus:     entry.OldStatus,
			NewStatus:     entry.NewStatus,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

func currentActor(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor, nil
}

func parseTicketListQuery(c *fiber.Ctx) (service.TicketListFilter, dto.Pagination, error) {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Statuses = append(filter.Statuses, domain.TicketStatus(part))
			}
		}
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page-1 > maxListOffset/pageSize {
		return filter, dto.Pagination{}, apperrors.NewValidationError("page is out of range",
			map[string]any{"page": page, "max_offset": maxListOffset})
	}
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, dto.Pagination{Page: page, PageSize: pageSize}, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketList(tickets []domain.Ticket, page dto.Pagination, now service.Clock) dto.TicketListResponse {
	items := make([]dto.TicketSummary, 0, len(tickets))
	at := now()
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(tickets[i], at))
	}
	return dto.TicketListResponse{Data: items, Pagination: page}
}
