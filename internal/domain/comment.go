package domain

import "time"

// TicketComment is a note on a ticket thread. Internal comments are only
// visible to agents.
type TicketComment struct {
	ID         string
	TicketID   string
	AuthorID   string
	AuthorName string
	Body       string
	Internal   bool
	Mentions   []Mention
	CreatedAt  time.Time
}

// Mention links a comment to an agent referenced with @handle.
type Mention struct {
	ID        string
	CommentID string
	TicketID  string
	AgentID   string
	Handle    string
	CreatedAt time.Time
}
