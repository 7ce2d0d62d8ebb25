package collab

import (
	"context"
	"errors"
	"sync"

	"github.com/deskline/helpdesk/internal/domain"
)

// recordingSender captures typing signals in send order.
type recordingSender struct {
	mu      sync.Mutex
	signals []bool
	err     error
}

func (s *recordingSender) SetTyping(_ context.Context, _ string, isTyping bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, isTyping)
	return s.err
}

func (s *recordingSender) sent() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.signals...)
}

// scriptedGateway answers updates from a queue and records each call.
type scriptedGateway struct {
	mu      sync.Mutex
	answers []gatewayAnswer
	calls   []gatewayCall
	// block, when set, holds every call until it is closed.
	block chan struct{}
}

type gatewayAnswer struct {
	result UpdateResult
	err    error
}

type gatewayCall struct {
	TicketID string
	Expected int64
	Patch    domain.TicketPatch
}

func (g *scriptedGateway) UpdateTicket(_ context.Context, ticketID string, expected int64, patch domain.TicketPatch) (UpdateResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, gatewayCall{TicketID: ticketID, Expected: expected, Patch: patch})
	block := g.block
	var answer gatewayAnswer
	if len(g.answers) > 0 {
		answer, g.answers = g.answers[0], g.answers[1:]
	} else {
		answer.err = errors.New("unexpected call")
	}
	g.mu.Unlock()
	if block != nil {
		<-block
	}
	return answer.result, answer.err
}

func (g *scriptedGateway) recorded() []gatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gatewayCall(nil), g.calls...)
}

// recordingNotifier captures toasts as "kind: message".
type recordingNotifier struct {
	mu     sync.Mutex
	toasts []string
}

func (n *recordingNotifier) add(kind, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, kind+": "+msg)
}

func (n *recordingNotifier) Success(msg string) { n.add("success", msg) }
func (n *recordingNotifier) Error(msg string)   { n.add("error", msg) }
func (n *recordingNotifier) Info(msg string)    { n.add("info", msg) }

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.toasts...)
}

// recordingSyncer captures presence pushes.
type recordingSyncer struct {
	mu     sync.Mutex
	pushed []domain.PresenceStatus
	err    error
}

func (s *recordingSyncer) SetPresence(_ context.Context, status domain.PresenceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushed = append(s.pushed, status)
	return s.err
}

func (s *recordingSyncer) all() []domain.PresenceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PresenceStatus(nil), s.pushed...)
}
