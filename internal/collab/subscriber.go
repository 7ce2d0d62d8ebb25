package collab

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/clock"
)

// TypingEntry is one remote typing indicator.
type TypingEntry struct {
	UserID    string
	UserName  string
	ExpiresAt time.Time
}

// TypingFetcher reads the live indicator list of a ticket.
type TypingFetcher interface {
	ListTyping(ctx context.Context, ticketID string) ([]TypingEntry, error)
}

// TypingSource tells a subscriber when to fetch again. The channel closes
// when the source gives up; the subscriber then falls back to polling.
type TypingSource interface {
	Triggers(ctx context.Context, ticketID string) (<-chan struct{}, error)
}

// SubscriberOptions tune a TypingSubscriber. Zero values pick defaults.
type SubscriberOptions struct {
	// SelfID is hidden from the visible list.
	SelfID       string
	PollInterval time.Duration
	Clock        clock.Clock
	Logger       *zap.Logger
	// OnChange runs with the new visible list whenever it changes.
	OnChange func([]TypingEntry)
}

const defaultPollInterval = time.Second

// TypingSubscriber keeps the visible typing list of one ticket: entries
// from the server minus the local user and minus anything already
// expired, in arrival order.
type TypingSubscriber struct {
	fetcher  TypingFetcher
	source   TypingSource
	ticketID string
	selfID   string
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger
	onChange func([]TypingEntry)

	mu      sync.Mutex
	entries []TypingEntry
	visible []TypingEntry
}

// NewTypingSubscriber builds a subscriber. A nil source polls on the
// clock at PollInterval.
func NewTypingSubscriber(fetcher TypingFetcher, source TypingSource, ticketID string, opts SubscriberOptions) *TypingSubscriber {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if source == nil {
		source = PollSource{Clock: opts.Clock, Interval: opts.PollInterval}
	}
	return &TypingSubscriber{
		fetcher:  fetcher,
		source:   source,
		ticketID: ticketID,
		selfID:   opts.SelfID,
		interval: opts.PollInterval,
		clock:    opts.Clock,
		logger:   opts.Logger.With(zap.String("ticket_id", ticketID)),
		onChange: opts.OnChange,
		visible:  []TypingEntry{},
	}
}

// Run fetches once, then again on every trigger, until ctx is done.
// Between fetches expired entries drop out on the clock. A failed fetch
// keeps the previous list.
func (s *TypingSubscriber) Run(ctx context.Context) error {
	triggers, err := s.source.Triggers(ctx, s.ticketID)
	if err != nil {
		s.logger.Warn("typing source unavailable, polling instead", zap.Error(err))
		triggers = nil
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-triggers:
			if !ok {
				s.logger.Info("typing source closed, polling instead")
				triggers = nil
				continue
			}
			s.Refresh(ctx)
		case <-ticker.C:
			if triggers == nil {
				s.Refresh(ctx)
				continue
			}
			s.reevaluate()
		}
	}
}

// Refresh fetches the server list now.
func (s *TypingSubscriber) Refresh(ctx context.Context) {
	entries, err := s.fetcher.ListTyping(ctx, s.ticketID)
	if err != nil {
		s.logger.Debug("typing fetch failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	s.reevaluate()
}

// Current returns the visible list as of now.
func (s *TypingSubscriber) Current() []TypingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(s.clock.Now())
}

// Message renders the current list for display.
func (s *TypingSubscriber) Message() string {
	return FormatTyping(s.Current())
}

func (s *TypingSubscriber) reevaluate() {
	s.mu.Lock()
	next := s.filter(s.clock.Now())
	changed := !reflect.DeepEqual(next, s.visible)
	s.visible = next
	onChange := s.onChange
	s.mu.Unlock()

	if changed && onChange != nil {
		onChange(next)
	}
}

// filter must be called with mu held.
func (s *TypingSubscriber) filter(now time.Time) []TypingEntry {
	out := []TypingEntry{}
	for _, e := range s.entries {
		if e.UserID == s.selfID || !e.ExpiresAt.After(now) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// PollSource triggers a fetch every Interval.
type PollSource struct {
	Clock    clock.Clock
	Interval time.Duration
}

// Triggers implements TypingSource.
func (p PollSource) Triggers(ctx context.Context, _ string) (<-chan struct{}, error) {
	if p.Interval <= 0 {
		return nil, fmt.Errorf("%w: poll interval must be positive", ErrValidation)
	}
	c := p.Clock
	if c == nil {
		c = clock.Real()
	}
	ticker := c.NewTicker(p.Interval)
	out := make(chan struct{}, 1)
	go func() {
		defer ticker.Stop()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// FormatTyping renders who is typing. An empty list renders as "".
func FormatTyping(entries []TypingEntry) string {
	switch len(entries) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is aan het typen...", entries[0].UserName)
	case 2:
		return fmt.Sprintf("%s en %s zijn aan het typen...", entries[0].UserName, entries[1].UserName)
	default:
		return fmt.Sprintf("%s en %d anderen zijn aan het typen...", entries[0].UserName, len(entries)-1)
	}
}
