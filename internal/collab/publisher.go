package collab

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/clock"
)

// TypingSender delivers typing signals to the server.
type TypingSender interface {
	SetTyping(ctx context.Context, ticketID string, isTyping bool) error
}

// PublisherState is the local typing state of one composer.
type PublisherState int

const (
	PublisherIdle PublisherState = iota
	PublisherSignaling
)

// PublisherOptions tune a TypingPublisher. Zero values pick defaults.
type PublisherOptions struct {
	Debounce    time.Duration
	SendTimeout time.Duration
	Clock       clock.Clock
	Logger      *zap.Logger
}

const (
	defaultDebounce    = 2 * time.Second
	defaultSendTimeout = 5 * time.Second
	signalQueueSize    = 8
)

// TypingPublisher turns keystrokes into at most one start signal per
// burst and one stop signal after the debounce window of inactivity.
// Signals go out in order from a single goroutine; failures are logged
// and never surface to the caller.
type TypingPublisher struct {
	sender   TypingSender
	ticketID string
	debounce time.Duration
	timeout  time.Duration
	clock    clock.Clock
	logger   *zap.Logger

	mu     sync.Mutex
	state  PublisherState
	timer  *clock.Timer
	gen    uint64 // bumped whenever the deadline moves; stale expiries compare unequal
	closed bool

	signals chan bool
	done    chan struct{}
}

// NewTypingPublisher starts a publisher for one ticket. Close must be
// called when the composer goes away.
func NewTypingPublisher(sender TypingSender, ticketID string, opts PublisherOptions) *TypingPublisher {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	p := &TypingPublisher{
		sender:   sender,
		ticketID: ticketID,
		debounce: opts.Debounce,
		timeout:  opts.SendTimeout,
		clock:    opts.Clock,
		logger:   opts.Logger.With(zap.String("ticket_id", ticketID)),
		signals:  make(chan bool, signalQueueSize),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// StartTyping records a keystroke. The first one of a burst sends a start
// signal; later ones only push the stop deadline back.
func (p *TypingPublisher) StartTyping() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.state == PublisherIdle {
		p.state = PublisherSignaling
		p.enqueue(true)
	}
	p.armLocked()
}

// armLocked replaces the pending deadline. A timer that already fired and
// is waiting on mu carries the old generation and does nothing.
func (p *TypingPublisher) armLocked() {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.gen++
	gen := p.gen
	p.timer = p.clock.AfterFunc(p.debounce, func() { p.expire(gen) })
}

// StopTyping ends the burst right away, for example when the draft is
// sent or cleared.
func (p *TypingPublisher) StopTyping() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// State reports the current local state.
func (p *TypingPublisher) State() PublisherState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close sends a final stop signal when one is owed, then waits for the
// queue to drain. It is safe to call more than once.
func (p *TypingPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.stopLocked()
	p.closed = true
	close(p.signals)
	p.mu.Unlock()
	<-p.done
}

func (p *TypingPublisher) expire(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return
	}
	p.stopLocked()
}

func (p *TypingPublisher) stopLocked() {
	if p.closed || p.state != PublisherSignaling {
		return
	}
	p.state = PublisherIdle
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.enqueue(false)
}

// enqueue must be called with mu held.
func (p *TypingPublisher) enqueue(isTyping bool) {
	select {
	case p.signals <- isTyping:
	default:
		p.logger.Warn("typing signal dropped, queue full", zap.Bool("is_typing", isTyping))
	}
}

func (p *TypingPublisher) run() {
	defer close(p.done)
	for isTyping := range p.signals {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.sender.SetTyping(ctx, p.ticketID, isTyping); err != nil {
			p.logger.Warn("typing signal failed", zap.Bool("is_typing", isTyping), zap.Error(err))
		}
		cancel()
	}
}
