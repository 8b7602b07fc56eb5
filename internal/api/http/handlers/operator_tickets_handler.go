package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/touripk/support-desk/internal/service"
	apperrors "github.com/touripk/support-desk/pkg/util"
)

// OperatorTicketsHandler serves the company and admin queues.
type OperatorTicketsHandler struct {
	service *service.TicketService
	now     service.Clock
}

// NewOperatorTicketsHandler constructs handler.
func NewOperatorTicketsHandler(ticketService *service.TicketService, clock service.Clock) *OperatorTicketsHandler {
	if clock == nil {
		clock = service.SystemClock
	}
	return &OperatorTicketsHandler{service: ticketService, now: clock}
}

// ListCompanyTickets GET /support/company/tickets.
func (h *OperatorTicketsHandler) ListCompanyTickets(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	filter, page, err := parseTicketListQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListCompanyTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(ticketList(tickets, page, h.now))
}

// ListAdminTickets GET /support/admin/tickets.
func (h *OperatorTicketsHandler) ListAdminTickets(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	filter, page, err := parseTicketListQuery(c)
	if err != nil {
		return err
	}
	if all := c.Query("all"); all != "" {
		parsed, err := strconv.ParseBool(all)
		if err != nil {
			return apperrors.NewValidationError("all must be a boolean", map[string]any{"all": all})
		}
		filter.All = parsed
	}
	tickets, err := h.service.ListAdminTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(ticketList(tickets, page, h.now))
}
