package service

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/auth"
	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/events"
	"github.com/deskline/helpdesk/internal/repository"
	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

const (
	maxCommentLength = 10000
	previewLength    = 140
)

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9][A-Za-z0-9._-]*)`)

// CommentService manages the ticket comment thread and @mentions.
type CommentService struct {
	comments   repository.CommentRepository
	tickets    repository.TicketRepository
	agents     repository.AgentRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// CommentDependencies bundles collaborators for the comment service.
type CommentDependencies struct {
	CommentRepo repository.CommentRepository
	TicketRepo  repository.TicketRepository
	AgentRepo   repository.AgentRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{
		comments:   deps.CommentRepo,
		tickets:    deps.TicketRepo,
		agents:     deps.AgentRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// AddComment stores a comment and notifies every agent it mentions.
func (s *CommentService) AddComment(ctx context.Context, principal *auth.Principal, ticketID, body string, internal bool) (*domain.TicketComment, error) {
	if err := requireEditor(principal); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", nil)
	}
	if utf8.RuneCountInString(body) > maxCommentLength {
		return nil, apperrors.NewValidationError("comment body too long", map[string]any{"max": maxCommentLength})
	}
	if _, err := s.tickets.GetVersion(ctx, ticketID); err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}

	mentions, err := s.resolveMentions(ctx, principal.AgentID, ExtractMentions(body))
	if err != nil {
		return nil, err
	}

	comment := &domain.TicketComment{
		TicketID:   ticketID,
		AuthorID:   principal.AgentID,
		AuthorName: principal.Name,
		Body:       body,
		Internal:   internal,
		Mentions:   mentions,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	actor := actorOf(principal)
	publish(ctx, s.dispatcher, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticketID,
		Actor:    actor,
		Payload: events.CommentAddedPayload{
			CommentID:   comment.ID,
			Internal:    internal,
			BodyPreview: stringPreview(body, previewLength),
		},
	})
	for _, m := range comment.Mentions {
		publish(ctx, s.dispatcher, events.Event{
			Type:     events.EventAgentMentioned,
			TicketID: ticketID,
			Actor:    actor,
			Payload: events.AgentMentionedPayload{
				CommentID: comment.ID,
				AgentID:   m.AgentID,
				Handle:    m.Handle,
			},
		})
	}
	return comment, nil
}

// ListComments returns a ticket's thread, oldest first.
func (s *CommentService) ListComments(ctx context.Context, ticketID string) ([]domain.TicketComment, error) {
	if _, err := s.tickets.GetVersion(ctx, ticketID); err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	return s.comments.ListByTicket(ctx, ticketID)
}

func (s *CommentService) resolveMentions(ctx context.Context, authorID string, handles []string) ([]domain.Mention, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	agents, err := s.agents.ListByHandles(ctx, handles)
	if err != nil {
		return nil, err
	}
	byHandle := make(map[string]domain.Agent, len(agents))
	for _, a := range agents {
		byHandle[strings.ToLower(a.Handle)] = a
	}

	mentions := make([]domain.Mention, 0, len(handles))
	for _, h := range handles {
		agent, ok := byHandle[h]
		if !ok || agent.ID == authorID {
			continue
		}
		mentions = append(mentions, domain.Mention{AgentID: agent.ID, Handle: h})
	}
	return mentions, nil
}

// ExtractMentions returns the lowercased @handles in body, deduplicated in
// first-seen order. An @ preceded by a letter or digit (an email address)
// is not a mention, and trailing punctuation is not part of the handle.
func ExtractMentions(body string) []string {
	var handles []string
	seen := map[string]struct{}{}
	for _, loc := range mentionPattern.FindAllStringSubmatchIndex(body, -1) {
		if loc[0] > 0 {
			prev, _ := utf8.DecodeLastRuneInString(body[:loc[0]])
			if unicode.IsLetter(prev) || unicode.IsDigit(prev) || prev == '_' {
				continue
			}
		}
		handle := strings.ToLower(strings.TrimRight(body[loc[2]:loc[3]], "._-"))
		if handle == "" {
			continue
		}
		if _, dup := seen[handle]; dup {
			continue
		}
		seen[handle] = struct{}{}
		handles = append(handles, handle)
	}
	return handles
}
