package domain

import "time"

// LoginAttempt is one audited sign-in attempt, successful or not.
type LoginAttempt struct {
	ID        string
	Email     string
	AgentID   *string
	Success   bool
	Reason    string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Login failure reasons recorded in the audit log.
const (
	LoginReasonOK            = "ok"
	LoginReasonUnknownEmail  = "unknown_email"
	LoginReasonBadPassword   = "bad_password"
	LoginReasonAgentInactive = "agent_inactive"
)
