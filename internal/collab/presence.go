package collab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/domain"
)

// PresenceSyncer stores the local status on the server.
type PresenceSyncer interface {
	SetPresence(ctx context.Context, status domain.PresenceStatus) error
}

// PresenceStore holds the current user's status. Reads are local; writes
// update local state at once and reach the server in the background.
// A push overtaken by a newer status before it starts is skipped.
type PresenceStore struct {
	syncer  PresenceSyncer
	timeout time.Duration
	logger  *zap.Logger

	mu        sync.Mutex
	status    domain.PresenceStatus
	listeners map[int]func(domain.PresenceStatus)
	nextID    int
	closed    bool

	pending chan domain.PresenceStatus
	done    chan struct{}
}

// NewPresenceStore returns a store starting at initial. An invalid
// initial status falls back to offline.
func NewPresenceStore(syncer PresenceSyncer, initial domain.PresenceStatus, logger *zap.Logger) *PresenceStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !initial.Valid() {
		initial = domain.PresenceOffline
	}
	s := &PresenceStore{
		syncer:    syncer,
		timeout:   defaultSendTimeout,
		logger:    logger,
		status:    initial,
		listeners: make(map[int]func(domain.PresenceStatus)),
		pending:   make(chan domain.PresenceStatus, 1),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Status returns the local status.
func (s *PresenceStore) Status() domain.PresenceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Pulsing reports whether the status indicator should pulse. Only online
// pulses.
func (s *PresenceStore) Pulsing() bool {
	return s.Status() == domain.PresenceOnline
}

// SetStatus validates raw, applies it locally, notifies listeners, then
// queues the server push. Setting the current status again is a no-op.
func (s *PresenceStore) SetStatus(raw string) error {
	status, err := domain.ParsePresenceStatus(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.status == status {
		s.mu.Unlock()
		return nil
	}
	s.status = status
	listeners := make([]func(domain.PresenceStatus), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.queueLocked(status)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(status)
	}
	return nil
}

// Subscribe registers fn for status changes and returns its removal.
func (s *PresenceStore) Subscribe(fn func(domain.PresenceStatus)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close stops background pushes after the last queued one finishes.
func (s *PresenceStore) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.pending)
	}
	s.mu.Unlock()
	<-s.done
}

// queueLocked replaces any push not yet started with status.
func (s *PresenceStore) queueLocked(status domain.PresenceStatus) {
	select {
	case <-s.pending:
	default:
	}
	s.pending <- status
}

func (s *PresenceStore) run() {
	defer close(s.done)
	for status := range s.pending {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.syncer.SetPresence(ctx, status); err != nil {
			s.logger.Warn("presence sync failed", zap.String("status", string(status)), zap.Error(err))
		}
		cancel()
	}
}
