package domain

import "time"

// AgentRole enumerates helpdesk operator roles.
type AgentRole string

const (
	AgentRoleAdmin  AgentRole = "ADMIN"
	AgentRoleAgent  AgentRole = "AGENT"
	AgentRoleViewer AgentRole = "VIEWER"
)

// CanEdit reports whether the role may mutate tickets.
func (r AgentRole) CanEdit() bool {
	return r == AgentRoleAdmin || r == AgentRoleAgent
}

// Agent models a support agent or administrator.
type Agent struct {
	ID           string
	Name         string
	Handle       string
	Email        string
	PasswordHash string
	Role         AgentRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
