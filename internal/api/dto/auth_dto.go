package dto

import (
	"time"

	"github.com/deskline/helpdesk/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the access token.
type LoginResponse struct {
	AccessToken string        `json:"access_token"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Agent       AgentResponse `json:"agent"`
}

// CreateAgentRequest payload.
type CreateAgentRequest struct {
	Name     string           `json:"name"`
	Handle   string           `json:"handle"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Role     domain.AgentRole `json:"role"`
}

// AgentResponse is the public view of an agent.
type AgentResponse struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Handle string           `json:"handle"`
	Email  string           `json:"email"`
	Role   domain.AgentRole `json:"role"`
	Active bool             `json:"active"`
}

// LoginAttemptResponse is one audit log entry.
type LoginAttemptResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	AgentID   *string   `json:"agent_id"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// Agent maps the domain agent without its password hash.
func Agent(a *domain.Agent) AgentResponse {
	return AgentResponse{ID: a.ID, Name: a.Name, Handle: a.Handle, Email: a.Email, Role: a.Role, Active: a.Active}
}

// LoginAttempts maps audit entries.
func LoginAttempts(list []domain.LoginAttempt) []LoginAttemptResponse {
	out := make([]LoginAttemptResponse, 0, len(list))
	for _, a := range list {
		out = append(out, LoginAttemptResponse{
			ID:        a.ID,
			Email:     a.Email,
			AgentID:   a.AgentID,
			Success:   a.Success,
			Reason:    a.Reason,
			IPAddress: a.IPAddress,
			UserAgent: a.UserAgent,
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}
