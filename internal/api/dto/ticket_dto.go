package dto

import (
	"time"

	"github.com/deskline/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	RequesterEmail string                `json:"requester_email"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Priority       domain.TicketPriority `json:"priority"`
	AssigneeID     *string               `json:"assignee_id"`
	Tags           []string              `json:"tags"`
}

// UpdateTicketRequest is the version-checked patch. Absent or null fields
// are left untouched; an empty assignee_id clears the assignee.
type UpdateTicketRequest struct {
	ExpectedVersion *int64                 `json:"expectedVersion"`
	Title           *string                `json:"title,omitempty"`
	Description     *string                `json:"description,omitempty"`
	Status          *domain.TicketStatus   `json:"status,omitempty"`
	Priority        *domain.TicketPriority `json:"priority,omitempty"`
	AssigneeID      *string                `json:"assignee_id,omitempty"`
	Tags            *[]string              `json:"tags,omitempty"`
}

// Patch extracts the domain patch.
func (r UpdateTicketRequest) Patch() domain.TicketPatch {
	return domain.TicketPatch{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		AssigneeID:  r.AssigneeID,
		Tags:        r.Tags,
	}
}

// UpdateTicketResponse is returned with 200 on success and 409 on conflict.
type UpdateTicketResponse struct {
	Success         bool       `json:"success"`
	Conflict        bool       `json:"conflict"`
	NewVersion      *int64     `json:"new_version,omitempty"`
	CurrentVersion  *int64     `json:"current_version,omitempty"`
	ExpectedVersion *int64     `json:"expected_version,omitempty"`
	UpdatedBy       *string    `json:"updated_by,omitempty"`
	UpdatedByName   *string    `json:"updated_by_name,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// TicketVersionResponse is the version witness of a ticket.
type TicketVersionResponse struct {
	TicketID  string    `json:"ticketId"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TicketSummary response.
type TicketSummary struct {
	ID          string                `json:"id"`
	ExternalKey string                `json:"external_key"`
	AssigneeID  *string               `json:"assignee_id"`
	Title       string                `json:"title"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	Tags        []string              `json:"tags"`
	Version     int64                 `json:"version"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID             string                `json:"id"`
	ExternalKey    string                `json:"external_key"`
	RequesterEmail string                `json:"requester_email"`
	AssigneeID     *string               `json:"assignee_id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Status         domain.TicketStatus   `json:"status"`
	Priority       domain.TicketPriority `json:"priority"`
	Tags           []string              `json:"tags"`
	Version        int64                 `json:"version"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	UpdatedBy      *string               `json:"updated_by"`
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangedByID *string                 `json:"changed_by_id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body     string `json:"body"`
	Internal bool   `json:"internal"`
}

// CommentResponse is a thread entry.
type CommentResponse struct {
	ID         string            `json:"id"`
	TicketID   string            `json:"ticket_id"`
	AuthorID   string            `json:"author_id"`
	AuthorName string            `json:"author_name"`
	Body       string            `json:"body"`
	Internal   bool              `json:"internal"`
	Mentions   []MentionResponse `json:"mentions"`
	CreatedAt  time.Time         `json:"created_at"`
}

// MentionResponse names a mentioned agent.
type MentionResponse struct {
	AgentID string `json:"agent_id"`
	Handle  string `json:"handle"`
}

// TicketDetail maps the domain ticket.
func TicketDetail(t *domain.Ticket) TicketDetailResponse {
	return TicketDetailResponse{
		ID:             t.ID,
		ExternalKey:    t.ExternalKey,
		RequesterEmail: t.RequesterEmail,
		AssigneeID:     t.AssigneeID,
		Title:          t.Title,
		Description:    t.Description,
		Status:         t.Status,
		Priority:       t.Priority,
		Tags:           nonNilTags(t.Tags),
		Version:        t.Version,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		UpdatedBy:      t.UpdatedBy,
	}
}

// Summary maps the domain ticket for list views.
func Summary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:          t.ID,
		ExternalKey: t.ExternalKey,
		AssigneeID:  t.AssigneeID,
		Title:       t.Title,
		Status:      t.Status,
		Priority:    t.Priority,
		Tags:        nonNilTags(t.Tags),
		Version:     t.Version,
		UpdatedAt:   t.UpdatedAt,
	}
}

// UpdateResult renders a version-checked update outcome.
func UpdateResult(result domain.VersionUpdateResult) UpdateTicketResponse {
	if c := result.Conflict; c != nil {
		current, expected := c.CurrentVersion, c.ExpectedVersion
		updatedAt := c.UpdatedAt
		return UpdateTicketResponse{
			Conflict:        true,
			CurrentVersion:  &current,
			ExpectedVersion: &expected,
			UpdatedBy:       c.UpdatedBy,
			UpdatedByName:   c.UpdatedByName,
			UpdatedAt:       &updatedAt,
		}
	}
	version := result.Updated.Version
	updatedAt := result.Updated.UpdatedAt
	return UpdateTicketResponse{
		Success:    true,
		NewVersion: &version,
		UpdatedBy:  result.Updated.UpdatedBy,
		UpdatedAt:  &updatedAt,
	}
}

// History maps audit entries.
func History(entries []domain.TicketHistory) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, TicketHistoryResponse{
			ID:          h.ID,
			ChangedByID: h.ChangedByID,
			ChangeType:  h.ChangeType,
			OldValue:    h.OldValue,
			NewValue:    h.NewValue,
			CreatedAt:   h.CreatedAt,
		})
	}
	return out
}

// Comment maps a thread entry.
func Comment(c *domain.TicketComment) CommentResponse {
	mentions := make([]MentionResponse, 0, len(c.Mentions))
	for _, m := range c.Mentions {
		mentions = append(mentions, MentionResponse{AgentID: m.AgentID, Handle: m.Handle})
	}
	return CommentResponse{
		ID:         c.ID,
		TicketID:   c.TicketID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Body:       c.Body,
		Internal:   c.Internal,
		Mentions:   mentions,
		CreatedAt:  c.CreatedAt,
	}
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
