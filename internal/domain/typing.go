package domain

import "time"

// TypingIndicator is the ephemeral "user is composing" signal for one
// (ticket, user) pair. StartedAt fixes arrival order; ExpiresAt moves
// forward on every repeated start.
type TypingIndicator struct {
	TicketID  string    `json:"ticket_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Active reports whether the indicator is still live at now.
func (t TypingIndicator) Active(now time.Time) bool {
	return t.ExpiresAt.After(now)
}
