package handlers

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/service"
)

const feedPingInterval = 30 * time.Second

// Subscriber is the subscribe half of Redis pub/sub.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// FeedHandler relays a ticket's pub/sub channel to WebSocket clients.
type FeedHandler struct {
	tickets    *service.TicketService
	subscriber Subscriber
	logger     *zap.Logger
}

// NewFeedHandler constructs handler.
func NewFeedHandler(tickets *service.TicketService, subscriber Subscriber, logger *zap.Logger) *FeedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedHandler{tickets: tickets, subscriber: subscriber, logger: logger}
}

// Upgrade rejects plain HTTP requests and unknown tickets before the
// WebSocket handshake.
func (h *FeedHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if _, err := h.tickets.GetVersion(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.Next()
}

// Stream is the WebSocket endpoint GET /api/tickets/:id/feed.
func (h *FeedHandler) Stream() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *FeedHandler) serve(conn *websocket.Conn) {
	ticketID := conn.Params("id")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := h.subscriber.Subscribe(ctx, service.TicketChannel(ticketID))
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		h.logger.Warn("feed subscribe failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}

	// Clients only send control frames; a read error means they left.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	messages := pubsub.Channel()
	ping := time.NewTicker(feedPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				h.logger.Debug("feed write failed", zap.String("ticket_id", ticketID), zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
