// Package memory holds in-process implementations of the Postgres
// repositories. The API runs on them when no database is configured, and
// tests use them in place of a live pool.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/repository"
)

var (
	_ repository.TicketRepository        = (*TicketRepository)(nil)
	_ repository.TicketHistoryRepository = (*HistoryRepository)(nil)
	_ repository.AgentRepository         = (*AgentRepository)(nil)
	_ repository.CommentRepository       = (*CommentRepository)(nil)
	_ repository.LoginAttemptRepository  = (*LoginAttemptRepository)(nil)
)

// TicketRepository keeps tickets in a map. The version check runs under
// the same lock as the write, like the row lock of the SQL statement.
type TicketRepository struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

// NewTicketRepository returns an empty store.
func NewTicketRepository() *TicketRepository {
	return &TicketRepository{tickets: map[string]*domain.Ticket{}}
}

func (r *TicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.Version == 0 {
		ticket.Version = domain.InitialTicketVersion
	}
	now := time.Now().UTC()
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *TicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(t), nil
}

func (r *TicketRepository) GetVersion(_ context.Context, id string) (*domain.TicketVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &domain.TicketVersion{TicketID: id, Version: t.Version, UpdatedAt: t.UpdatedAt, UpdatedBy: t.UpdatedBy}, nil
}

func (r *TicketRepository) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := map[domain.TicketStatus]bool{}
	for _, s := range filter.Statuses {
		statuses[s] = true
	}
	priorities := map[domain.TicketPriority]bool{}
	for _, p := range filter.Priorities {
		priorities[p] = true
	}
	var search string
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}

	var out []domain.Ticket
	for _, t := range r.tickets {
		if filter.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if len(statuses) > 0 && !statuses[t.Status] {
			continue
		}
		if len(priorities) > 0 && !priorities[t.Priority] {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Title+" "+t.Description), search) {
			continue
		}
		out = append(out, *cloneTicket(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *TicketRepository) UpdateWithVersionCheck(_ context.Context, id string, expected int64, patch domain.TicketPatch, actorID string) (domain.VersionUpdateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return domain.VersionUpdateResult{}, pgx.ErrNoRows
	}
	if t.Version != expected {
		return domain.VersionUpdateResult{Conflict: &domain.VersionConflict{
			TicketID:        id,
			ExpectedVersion: expected,
			CurrentVersion:  t.Version,
			UpdatedBy:       t.UpdatedBy,
			UpdatedAt:       t.UpdatedAt,
		}}, nil
	}

	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.AssigneeID != nil {
		if *patch.AssigneeID == "" {
			t.AssigneeID = nil
		} else {
			assignee := *patch.AssigneeID
			t.AssigneeID = &assignee
		}
	}
	if patch.Tags != nil {
		t.Tags = append([]string{}, (*patch.Tags)...)
	}
	if actorID != "" {
		actor := actorID
		t.UpdatedBy = &actor
	}
	t.Version++
	t.UpdatedAt = time.Now().UTC()

	return domain.VersionUpdateResult{Updated: &domain.TicketVersion{
		TicketID:  id,
		Version:   t.Version,
		UpdatedAt: t.UpdatedAt,
		UpdatedBy: t.UpdatedBy,
	}}, nil
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	cp := *t
	cp.Tags = append([]string(nil), t.Tags...)
	return &cp
}

// HistoryRepository is an append-only list of audit entries.
type HistoryRepository struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
	failure error
}

// NewHistoryRepository returns an empty store.
func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

// FailWith makes every later Create return err. Nil restores normal writes.
func (r *HistoryRepository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure = err
}

func (r *HistoryRepository) Create(_ context.Context, h *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failure != nil {
		return r.failure
	}
	h.ID = uuid.NewString()
	h.CreatedAt = time.Now().UTC()
	r.entries = append(r.entries, *h)
	return nil
}

func (r *HistoryRepository) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range r.entries {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return page(out, limit, offset), nil
}

// AgentRepository keeps agents keyed by id.
type AgentRepository struct {
	mu     sync.Mutex
	agents map[string]domain.Agent
}

// NewAgentRepository returns a store seeded with agents.
func NewAgentRepository(agents ...domain.Agent) *AgentRepository {
	r := &AgentRepository{agents: map[string]domain.Agent{}}
	for _, a := range agents {
		r.agents[a.ID] = a
	}
	return r
}

func (r *AgentRepository) Create(_ context.Context, agent *domain.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	agent.CreatedAt, agent.UpdatedAt = now, now
	r.agents[agent.ID] = *agent
	return nil
}

func (r *AgentRepository) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r *AgentRepository) GetByEmail(_ context.Context, email string) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.agents {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *AgentRepository) ListByHandles(_ context.Context, handles []string) ([]domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := map[string]bool{}
	for _, h := range handles {
		wanted[h] = true
	}
	var out []domain.Agent
	for _, a := range r.agents {
		if a.Active && wanted[a.Handle] {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

// CommentRepository keeps comments in insertion order.
type CommentRepository struct {
	mu       sync.Mutex
	comments []domain.TicketComment
}

// NewCommentRepository returns an empty store.
func NewCommentRepository() *CommentRepository {
	return &CommentRepository{}
}

func (r *CommentRepository) Create(_ context.Context, c *domain.TicketComment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	for i := range c.Mentions {
		m := &c.Mentions[i]
		m.ID = uuid.NewString()
		m.CommentID = c.ID
		m.TicketID = c.TicketID
		m.CreatedAt = c.CreatedAt
	}
	cp := *c
	cp.Mentions = append([]domain.Mention(nil), c.Mentions...)
	r.comments = append(r.comments, cp)
	return nil
}

func (r *CommentRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketComment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketComment
	for _, c := range r.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

// LoginAttemptRepository is an append-only audit log.
type LoginAttemptRepository struct {
	mu       sync.Mutex
	attempts []domain.LoginAttempt
}

// NewLoginAttemptRepository returns an empty log.
func NewLoginAttemptRepository() *LoginAttemptRepository {
	return &LoginAttemptRepository{}
}

func (r *LoginAttemptRepository) Create(_ context.Context, a *domain.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()
	r.attempts = append(r.attempts, *a)
	return nil
}

// ListRecent returns newest first.
func (r *LoginAttemptRepository) ListRecent(_ context.Context, limit int) ([]domain.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LoginAttempt, 0, len(r.attempts))
	for i := len(r.attempts) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, r.attempts[i])
	}
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
