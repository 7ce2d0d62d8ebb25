package collab

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/clock"
	"github.com/deskline/helpdesk/internal/config"
	"github.com/deskline/helpdesk/internal/domain"
)

// SessionConfig describes the signed-in user and the server.
type SessionConfig struct {
	BaseURL  string
	Token    string
	UserID   string
	UserName string
	Timings  config.CollabConfig
	// UseFeed makes subscribers listen on the WebSocket feed instead of
	// polling.
	UseFeed bool
	Clock   clock.Clock
	Logger  *zap.Logger
}

// Session is the application context of one signed-in user. It owns the
// API client and the presence store; editors get their publishers,
// subscribers and presenters from it.
type Session struct {
	cfg      SessionConfig
	client   *Client
	presence *PresenceStore
	clock    clock.Clock
	logger   *zap.Logger
}

// NewSession loads the user's presence and returns a ready session. A
// failed presence load is logged and the session starts offline.
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.BaseURL == "" || cfg.Token == "" {
		return nil, errors.New("collab: session needs a base URL and a token")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	logger := cfg.Logger.With(zap.String("user_id", cfg.UserID))
	client := NewClient(cfg.BaseURL, cfg.Token)

	initial, err := client.Presence(ctx)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, err
		}
		logger.Warn("presence load failed", zap.Error(err))
		initial = domain.PresenceOffline
	}

	return &Session{
		cfg:      cfg,
		client:   client,
		presence: NewPresenceStore(client, initial, logger),
		clock:    cfg.Clock,
		logger:   logger,
	}, nil
}

// Client returns the session's API client.
func (s *Session) Client() *Client { return s.client }

// Presence returns the session's presence store.
func (s *Session) Presence() *PresenceStore { return s.presence }

// NewPublisher returns a typing publisher for a ticket composer.
func (s *Session) NewPublisher(ticketID string) *TypingPublisher {
	return NewTypingPublisher(s.client, ticketID, PublisherOptions{
		Debounce: s.cfg.Timings.TypingDebounce(),
		Clock:    s.clock,
		Logger:   s.logger,
	})
}

// NewSubscriber returns a typing subscriber for a ticket that hides the
// session user.
func (s *Session) NewSubscriber(ticketID string, onChange func([]TypingEntry)) *TypingSubscriber {
	var source TypingSource
	if s.cfg.UseFeed {
		source = FeedSource{URLs: s.client, Logger: s.logger}
	}
	return NewTypingSubscriber(s.client, source, ticketID, SubscriberOptions{
		SelfID:       s.cfg.UserID,
		PollInterval: s.cfg.Timings.TypingPollInterval(),
		Clock:        s.clock,
		Logger:       s.logger,
		OnChange:     onChange,
	})
}

// NewPresenter returns a collision presenter for a ticket editor.
func (s *Session) NewPresenter(notifier Notifier, refresh func()) *CollisionPresenter {
	return NewCollisionPresenter(s.client, notifier, refresh, s.logger)
}

// Close stops background work, then sets the user offline.
func (s *Session) Close(ctx context.Context) {
	last := s.presence.Status()
	s.presence.Close()
	if last != domain.PresenceOffline {
		pushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := s.client.SetPresence(pushCtx, domain.PresenceOffline); err != nil {
			s.logger.Warn("presence reset on close failed", zap.Error(err))
		}
		cancel()
	}
}
