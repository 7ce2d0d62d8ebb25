package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/deskline/helpdesk/internal/api/dto"
	"github.com/deskline/helpdesk/internal/auth"
	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/service"
	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), principal, service.TicketCreateInput{
		RequesterEmail: req.RequesterEmail,
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		AssigneeID:     req.AssigneeID,
		Tags:           req.Tags,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TicketDetail(ticket)})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.service.ListTickets(c.UserContext(), parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.Summary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetail(ticket)})
}

// GetVersion GET /api/tickets/:id/version.
func (h *TicketsHandler) GetVersion(c *fiber.Ctx) error {
	version, err := h.service.GetVersion(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.TicketVersionResponse{
		TicketID:  version.TicketID,
		Version:   version.Version,
		UpdatedAt: version.UpdatedAt,
	})
}

// UpdateTicket PATCH /api/tickets/:id. A stale expectedVersion answers 409
// with the authoritative version; nothing is written in that case.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.UpdateWithVersionCheck(c.UserContext(), principal, c.Params("id"), req.ExpectedVersion, req.Patch())
	if err != nil {
		return err
	}
	return writeUpdateResult(c, result)
}

// AssignToSelf POST /api/tickets/:id/assign-self.
func (h *TicketsHandler) AssignToSelf(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.AssignToSelf(c.UserContext(), principal, c.Params("id"), req.ExpectedVersion)
	if err != nil {
		return err
	}
	return writeUpdateResult(c, result)
}

func writeUpdateResult(c *fiber.Ctx, result domain.VersionUpdateResult) error {
	status := http.StatusOK
	if result.Conflict != nil {
		status = http.StatusConflict
	}
	return c.Status(status).JSON(dto.UpdateResult(result))
}

// ListHistory GET /api/tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	limit, offset := pageParams(c)
	entries, err := h.service.ListHistory(c.UserContext(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.History(entries)})
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}
	filter.Limit, filter.Offset = pageParams(c)
	return filter
}

func pageParams(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	return pageSize, (page - 1) * pageSize
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
