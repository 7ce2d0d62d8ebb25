package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/deskline/helpdesk/internal/api/dto"
	"github.com/deskline/helpdesk/internal/service"
)

// AuthHandler exposes agent login and account endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password, service.LoginMeta{
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		AccessToken: result.Token,
		ExpiresAt:   result.ExpiresAt,
		Agent:       dto.Agent(result.Agent),
	}})
}

// LoginAttempts handles GET /api/auth/login-attempts.
func (h *AuthHandler) LoginAttempts(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit"))
	attempts, err := h.auth.ListLoginAttempts(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginAttempts(attempts)})
}

// CreateAgent handles POST /api/agents.
func (h *AuthHandler) CreateAgent(c *fiber.Ctx) error {
	var req dto.CreateAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	agent, err := h.auth.CreateAgent(c.UserContext(), service.AgentCreateInput{
		Name:     req.Name,
		Handle:   req.Handle,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.Agent(agent)})
}
