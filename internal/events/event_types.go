package events

import (
	"time"

	"github.com/deskline/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketUpdated         EventType = "ticket_updated"
	EventTicketVersionConflict EventType = "ticket_version_conflict"
	EventTypingChanged         EventType = "typing_changed"
	EventPresenceChanged       EventType = "presence_changed"
	EventCommentAdded          EventType = "comment_added"
	EventAgentMentioned        EventType = "agent_mentioned"
)

// Actor identifies the agent behind an event.
type Actor struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name,omitempty"`
}

// Event represents a domain event emitted by services. TicketID is empty
// for events that are not scoped to a ticket.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ExternalKey string                `json:"external_key"`
	Priority    domain.TicketPriority `json:"priority"`
	Title       string                `json:"title"`
	Version     int64                 `json:"version"`
}

// TicketUpdatedPayload announces an accepted version-checked update.
type TicketUpdatedPayload struct {
	OldVersion int64    `json:"old_version"`
	NewVersion int64    `json:"new_version"`
	Fields     []string `json:"fields"`
}

// TicketVersionConflictPayload records a rejected update.
type TicketVersionConflictPayload struct {
	ExpectedVersion int64 `json:"expected_version"`
	CurrentVersion  int64 `json:"current_version"`
}

// TypingChangedPayload tells subscribers the typing set of a ticket moved.
type TypingChangedPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	IsTyping bool   `json:"is_typing"`
}

// PresenceChangedPayload payload.
type PresenceChangedPayload struct {
	UserID string                `json:"user_id"`
	Status domain.PresenceStatus `json:"status"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	Internal    bool   `json:"internal"`
	BodyPreview string `json:"body_preview"`
}

// AgentMentionedPayload payload.
type AgentMentionedPayload struct {
	CommentID string `json:"comment_id"`
	AgentID   string `json:"agent_id"`
	Handle    string `json:"handle"`
}
