package dto

import (
	"encoding/json"
	"time"

	"github.com/deskline/helpdesk/internal/domain"
)

// TypingRequest toggles the caller's typing indicator.
type TypingRequest struct {
	IsTyping *bool `json:"isTyping"`
}

// TypingIndicatorResponse is one live indicator.
type TypingIndicatorResponse struct {
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TypingIndicators maps the live set, keeping order.
func TypingIndicators(list []domain.TypingIndicator) []TypingIndicatorResponse {
	out := make([]TypingIndicatorResponse, 0, len(list))
	for _, t := range list {
		out = append(out, TypingIndicatorResponse{UserID: t.UserID, UserName: t.UserName, ExpiresAt: t.ExpiresAt})
	}
	return out
}

// PresenceRequest sets the caller's status.
type PresenceRequest struct {
	Status string `json:"status"`
}

// PresenceResponse reports an agent's status.
type PresenceResponse struct {
	UserID string                `json:"user_id"`
	Status domain.PresenceStatus `json:"status"`
}

// FeedFrame is one message on a ticket feed.
type FeedFrame struct {
	ID        string          `json:"id,omitempty"`
	Type      string          `json:"type"`
	TicketID  string          `json:"ticket_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}
