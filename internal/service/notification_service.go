package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/events"
)

// PresenceChannel carries every presence change.
const PresenceChannel = "presence"

// TicketChannel is the pub/sub channel relayed by a ticket's feed.
func TicketChannel(ticketID string) string {
	return "ticket:" + ticketID
}

// AgentChannel carries notifications addressed to one agent.
func AgentChannel(agentID string) string {
	return "agent:" + agentID
}

// Broadcaster is the publish half of Redis pub/sub.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// NotificationService fans domain events out to Redis channels so every
// API instance can push them to its connected feeds.
type NotificationService struct {
	dispatcher  events.Dispatcher
	broadcaster Broadcaster
	logger      *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, broadcaster Broadcaster, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.broadcaster == nil {
		return
	}
	for _, t := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketUpdated,
		events.EventTicketVersionConflict,
		events.EventTypingChanged,
		events.EventCommentAdded,
	} {
		n.dispatcher.Subscribe(t, n.handleTicketEvent)
	}
	n.dispatcher.Subscribe(events.EventPresenceChanged, n.handlePresenceChanged)
	n.dispatcher.Subscribe(events.EventAgentMentioned, n.handleAgentMentioned)
}

func (n *NotificationService) handleTicketEvent(ctx context.Context, event events.Event) error {
	if event.TicketID == "" {
		return nil
	}
	return n.broadcast(ctx, TicketChannel(event.TicketID), event)
}

func (n *NotificationService) handlePresenceChanged(ctx context.Context, event events.Event) error {
	return n.broadcast(ctx, PresenceChannel, event)
}

func (n *NotificationService) handleAgentMentioned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AgentMentionedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("AgentMentioned",
		zap.String("ticket_id", event.TicketID),
		zap.String("agent_id", payload.AgentID),
		zap.String("comment_id", payload.CommentID))
	return n.broadcast(ctx, AgentChannel(payload.AgentID), event)
}

func (n *NotificationService) broadcast(ctx context.Context, channel string, event events.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.broadcaster.Publish(ctx, channel, raw).Err(); err != nil {
		return err
	}
	n.logger.Debug("event broadcast",
		zap.String("channel", channel),
		zap.String("event_type", string(event.Type)))
	return nil
}
