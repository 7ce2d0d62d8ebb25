package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/auth"
	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/events"
	"github.com/deskline/helpdesk/internal/observability"
	"github.com/deskline/helpdesk/internal/repository"
	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

// TicketService coordinates ticket reads and version-checked writes.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	agents     repository.AgentRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository

	// AgentRepo, when set, puts the last editor's name on conflicts.
	AgentRepo  repository.AgentRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	RequesterEmail string
	Title          string
	Description    string
	Priority       domain.TicketPriority
	AssigneeID     *string
	Tags           []string
}

// TicketListFilter describes inbox listing filters.
type TicketListFilter struct {
	AssigneeID *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	SearchTerm *string
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		agents:     deps.AgentRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// CreateTicket opens a ticket at the initial version.
func (s *TicketService) CreateTicket(ctx context.Context, principal *auth.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	if err := requireEditor(principal); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	email := strings.TrimSpace(input.RequesterEmail)
	if title == "" || email == "" {
		return nil, apperrors.NewValidationError("title and requester_email required", nil)
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": input.Priority})
	}

	actorID := principal.AgentID
	ticket := &domain.Ticket{
		ExternalKey:    generateTicketKey(),
		RequesterEmail: email,
		AssigneeID:     input.AssigneeID,
		Title:          title,
		Description:    strings.TrimSpace(input.Description),
		Status:         domain.TicketStatusOpen,
		Priority:       input.Priority,
		Tags:           input.Tags,
		Version:        domain.InitialTicketVersion,
		UpdatedBy:      &actorID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.recordHistory(ctx, &domain.TicketHistory{
		TicketID:    ticket.ID,
		ChangedByID: &actorID,
		ChangeType:  domain.ChangeTypeCreated,
		OldValue:    map[string]any{},
		NewValue:    map[string]any{"version": ticket.Version},
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actorOf(principal),
		Payload: events.TicketCreatedPayload{
			ExternalKey: ticket.ExternalKey,
			Priority:    ticket.Priority,
			Title:       ticket.Title,
			Version:     ticket.Version,
		},
	})
	return ticket, nil
}

// GetTicket returns the full ticket.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	return ticket, nil
}

// ListTickets returns the inbox page matching filter.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	return s.tickets.List(ctx, repository.TicketFilter{
		AssigneeID: filter.AssigneeID,
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// GetVersion returns the current version witness of a ticket.
func (s *TicketService) GetVersion(ctx context.Context, ticketID string) (*domain.TicketVersion, error) {
	version, err := s.tickets.GetVersion(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	return version, nil
}

// UpdateWithVersionCheck applies patch if the ticket is still at
// expectedVersion. A moved version is returned as a Conflict result, never
// as an error; errors are reserved for validation, authorization, missing
// tickets and storage failures.
func (s *TicketService) UpdateWithVersionCheck(ctx context.Context, principal *auth.Principal, ticketID string, expectedVersion *int64, patch domain.TicketPatch) (domain.VersionUpdateResult, error) {
	if err := requireEditor(principal); err != nil {
		return domain.VersionUpdateResult{}, err
	}
	if expectedVersion == nil {
		return domain.VersionUpdateResult{}, apperrors.NewValidationError("expectedVersion is required", nil)
	}
	if *expectedVersion < 0 {
		return domain.VersionUpdateResult{}, apperrors.NewValidationError("expectedVersion must be non-negative",
			map[string]any{"expectedVersion": *expectedVersion})
	}
	if err := validatePatch(&patch); err != nil {
		return domain.VersionUpdateResult{}, err
	}

	result, err := s.tickets.UpdateWithVersionCheck(ctx, ticketID, *expectedVersion, patch, principal.AgentID)
	if err != nil {
		return domain.VersionUpdateResult{}, notFoundOr(err, "ticket", ticketID)
	}

	if result.Conflict != nil {
		s.nameEditor(ctx, result.Conflict)
		s.metrics.RecordConflict()
		s.logger.Info("ticket version conflict",
			zap.String("ticket_id", ticketID),
			zap.Int64("expected_version", result.Conflict.ExpectedVersion),
			zap.Int64("current_version", result.Conflict.CurrentVersion))
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketVersionConflict,
			TicketID: ticketID,
			Actor:    actorOf(principal),
			Payload: events.TicketVersionConflictPayload{
				ExpectedVersion: result.Conflict.ExpectedVersion,
				CurrentVersion:  result.Conflict.CurrentVersion,
			},
		})
		return result, nil
	}

	fields := patch.Fields()
	actorID := principal.AgentID
	s.recordHistory(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: &actorID,
		ChangeType:  domain.ChangeTypeVersionUpdate,
		OldValue:    map[string]any{"version": *expectedVersion},
		NewValue:    map[string]any{"version": result.Updated.Version, "fields": fields},
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticketID,
		Actor:    actorOf(principal),
		Payload: events.TicketUpdatedPayload{
			OldVersion: *expectedVersion,
			NewVersion: result.Updated.Version,
			Fields:     fields,
		},
	})
	return result, nil
}

// nameEditor resolves the last editor for display. A lookup failure leaves
// the name unset.
func (s *TicketService) nameEditor(ctx context.Context, conflict *domain.VersionConflict) {
	if s.agents == nil || conflict.UpdatedBy == nil || *conflict.UpdatedBy == "" {
		return
	}
	agent, err := s.agents.GetByID(ctx, *conflict.UpdatedBy)
	if err != nil {
		s.logger.Debug("conflict editor lookup failed", zap.String("agent_id", *conflict.UpdatedBy), zap.Error(err))
		return
	}
	name := agent.Name
	conflict.UpdatedByName = &name
}

// AssignToSelf makes the caller the assignee. It goes through the same
// version check as any other edit.
func (s *TicketService) AssignToSelf(ctx context.Context, principal *auth.Principal, ticketID string, expectedVersion *int64) (domain.VersionUpdateResult, error) {
	if principal == nil {
		return domain.VersionUpdateResult{}, apperrors.NewUnauthorized("authentication required")
	}
	assignee := principal.AgentID
	return s.UpdateWithVersionCheck(ctx, principal, ticketID, expectedVersion, domain.TicketPatch{AssigneeID: &assignee})
}

// ListHistory returns a ticket's audit trail.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	if _, err := s.GetVersion(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.history.ListByTicket(ctx, ticketID, limit, offset)
}

func validatePatch(patch *domain.TicketPatch) error {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return apperrors.NewValidationError("title must not be empty", nil)
		}
		patch.Title = &title
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": *patch.Status})
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return apperrors.NewValidationError("invalid priority", map[string]any{"priority": *patch.Priority})
	}
	return nil
}

// recordHistory is best-effort: the update it describes is already committed.
func (s *TicketService) recordHistory(ctx context.Context, entry *domain.TicketHistory) {
	if s.history == nil {
		return
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record ticket history",
			zap.String("ticket_id", entry.TicketID),
			zap.String("change_type", string(entry.ChangeType)),
			zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, event)
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func publish(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = dispatcher.Publish(ctx, event)
}

func requireEditor(principal *auth.Principal) error {
	if principal == nil {
		return apperrors.NewUnauthorized("agent required")
	}
	if !principal.Role.CanEdit() {
		return apperrors.NewForbidden("read-only agents cannot modify tickets")
	}
	return nil
}

func actorOf(principal *auth.Principal) events.Actor {
	if principal == nil {
		return events.Actor{}
	}
	return events.Actor{AgentID: principal.AgentID, Name: principal.Name}
}

func notFoundOr(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
