package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/auth"
	"github.com/deskline/helpdesk/internal/clock"
	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/events"
	"github.com/deskline/helpdesk/internal/observability"
	"github.com/deskline/helpdesk/internal/repository"
	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

const defaultTypingTTL = 3 * time.Second

// TypingService records who is composing a reply on which ticket.
type TypingService struct {
	repo       repository.TypingRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	clock      clock.Clock
	ttl        time.Duration
	logger     *zap.Logger
}

// TypingDependencies bundles collaborators for the typing service.
type TypingDependencies struct {
	TypingRepo repository.TypingRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Clock      clock.Clock
	TTL        time.Duration
	Logger     *zap.Logger
}

// NewTypingService constructs the service.
func NewTypingService(deps TypingDependencies) *TypingService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.TTL <= 0 {
		deps.TTL = defaultTypingTTL
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TypingService{
		repo:       deps.TypingRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		ttl:        deps.TTL,
		logger:     deps.Logger,
	}
}

// SetTyping starts or clears the caller's indicator on ticketID. Repeated
// stops are accepted.
func (s *TypingService) SetTyping(ctx context.Context, principal *auth.Principal, ticketID string, isTyping bool) error {
	if err := requireEditor(principal); err != nil {
		return err
	}
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return apperrors.NewValidationError("ticket id required", nil)
	}

	if isTyping {
		now := s.clock.Now().UTC()
		err := s.repo.Set(ctx, domain.TypingIndicator{
			TicketID:  ticketID,
			UserID:    principal.AgentID,
			UserName:  principal.Name,
			StartedAt: now,
			ExpiresAt: now.Add(s.ttl),
		})
		if err != nil {
			return err
		}
	} else if err := s.repo.Clear(ctx, ticketID, principal.AgentID); err != nil {
		return err
	}

	s.metrics.RecordTypingSignal(isTyping)
	publish(ctx, s.dispatcher, events.Event{
		Type:     events.EventTypingChanged,
		TicketID: ticketID,
		Actor:    actorOf(principal),
		Payload: events.TypingChangedPayload{
			UserID:   principal.AgentID,
			UserName: principal.Name,
			IsTyping: isTyping,
		},
	})
	return nil
}

// ListTyping returns live indicators for ticketID in arrival order.
func (s *TypingService) ListTyping(ctx context.Context, ticketID string) ([]domain.TypingIndicator, error) {
	return s.repo.List(ctx, ticketID, s.clock.Now().UTC())
}

// PresenceService stores agent availability.
type PresenceService struct {
	repo       repository.PresenceRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewPresenceService constructs the service.
func NewPresenceService(repo repository.PresenceRepository, dispatcher events.Dispatcher, logger *zap.Logger) *PresenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresenceService{repo: repo, dispatcher: dispatcher, logger: logger}
}

// SetStatus validates raw and stores it as the caller's status.
func (s *PresenceService) SetStatus(ctx context.Context, principal *auth.Principal, raw string) (domain.PresenceStatus, error) {
	if principal == nil {
		return "", apperrors.NewUnauthorized("agent required")
	}
	status, err := domain.ParsePresenceStatus(strings.TrimSpace(raw))
	if err != nil {
		return "", apperrors.NewValidationError("invalid presence status",
			map[string]any{"status": raw, "allowed": []domain.PresenceStatus{
				domain.PresenceOnline, domain.PresenceAway, domain.PresenceBusy, domain.PresenceOffline,
			}})
	}
	if err := s.repo.Set(ctx, principal.AgentID, status); err != nil {
		return "", err
	}
	publish(ctx, s.dispatcher, events.Event{
		Type:  events.EventPresenceChanged,
		Actor: actorOf(principal),
		Payload: events.PresenceChangedPayload{
			UserID: principal.AgentID,
			Status: status,
		},
	})
	return status, nil
}

// GetStatus returns userID's status, offline when unknown.
func (s *PresenceService) GetStatus(ctx context.Context, userID string) (domain.PresenceStatus, error) {
	if strings.TrimSpace(userID) == "" {
		return "", apperrors.NewValidationError("user id required", nil)
	}
	return s.repo.Get(ctx, userID)
}
