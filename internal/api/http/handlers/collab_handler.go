package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/deskline/helpdesk/internal/api/dto"
	"github.com/deskline/helpdesk/internal/auth"
	"github.com/deskline/helpdesk/internal/service"
	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

// TypingHandler serves ticket typing indicators.
type TypingHandler struct {
	service *service.TypingService
}

// NewTypingHandler constructs handler.
func NewTypingHandler(typingService *service.TypingService) *TypingHandler {
	return &TypingHandler{service: typingService}
}

// SetTyping PUT /api/tickets/:id/typing.
func (h *TypingHandler) SetTyping(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.TypingRequest
	if err := c.BodyParser(&req); err != nil || req.IsTyping == nil {
		return apperrors.NewValidationError("isTyping required", nil)
	}
	if err := h.service.SetTyping(c.UserContext(), principal, c.Params("id"), *req.IsTyping); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListTyping GET /api/tickets/:id/typing.
func (h *TypingHandler) ListTyping(c *fiber.Ctx) error {
	list, err := h.service.ListTyping(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.TypingIndicators(list))
}

// PresenceHandler serves agent availability.
type PresenceHandler struct {
	service *service.PresenceService
}

// NewPresenceHandler constructs handler.
func NewPresenceHandler(presenceService *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{service: presenceService}
}

// GetOwn GET /api/presence.
func (h *PresenceHandler) GetOwn(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	return h.respond(c, principal.AgentID)
}

// Get GET /api/presence/:userId.
func (h *PresenceHandler) Get(c *fiber.Ctx) error {
	return h.respond(c, c.Params("userId"))
}

// Set PUT /api/presence.
func (h *PresenceHandler) Set(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.PresenceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if _, err := h.service.SetStatus(c.UserContext(), principal, req.Status); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *PresenceHandler) respond(c *fiber.Ctx, userID string) error {
	status, err := h.service.GetStatus(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(dto.PresenceResponse{UserID: userID, Status: status})
}
