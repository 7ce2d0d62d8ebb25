package collab

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/domain"
)

// PresenterState is the visibility of the collision warning.
type PresenterState int

const (
	PresenterHidden PresenterState = iota
	PresenterVisible
	PresenterRetrying
)

func (s PresenterState) String() string {
	switch s {
	case PresenterHidden:
		return "hidden"
	case PresenterVisible:
		return "visible"
	case PresenterRetrying:
		return "retrying"
	}
	return fmt.Sprintf("PresenterState(%d)", int(s))
}

// Notifier shows transient toasts.
type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

// User-facing copy.
const (
	RetryLabel         = "Opnieuw proberen"
	RefreshLabel       = "Vernieuwen"
	CancelLabel        = "Annuleren"
	msgRetrySucceeded  = "Je wijzigingen zijn opgeslagen."
	msgRetryFailed     = "Opslaan mislukt. Je wijzigingen zijn bewaard, probeer het opnieuw."
	msgConflictAgain   = "Het ticket is intussen opnieuw gewijzigd."
	msgRefreshed       = "Het ticket is opnieuw geladen. Je wijzigingen zijn verworpen."
	msgEditsDiscarded  = "Je wijzigingen zijn verworpen."
	msgConflictUnknown = "iemand anders"
)

// ErrNoConflict is returned by Retry when no warning is showing.
var ErrNoConflict = errors.New("collab: no conflict to retry")

// PresenterView is what the warning renders.
type PresenterView struct {
	State        PresenterState
	Message      string
	RetryLabel   string
	RetryEnabled bool
	Conflict     *ConflictDescriptor
}

// CollisionPresenter drives the collision warning of one ticket editor.
// It keeps the rejected patch until the user retries, refreshes or
// cancels, so a failed retry never loses the edit.
type CollisionPresenter struct {
	gateway  Gateway
	notifier Notifier
	refresh  func()
	logger   *zap.Logger

	mu       sync.Mutex
	state    PresenterState
	conflict *ConflictDescriptor
	patch    domain.TicketPatch
	// generation changes on every Show, Refresh, Cancel and Close so a
	// retry that finishes late can tell it has been superseded.
	generation uint64
	closed     bool
}

// NewCollisionPresenter returns a hidden presenter. refresh is called
// when the user chooses to reload the ticket; it may be nil.
func NewCollisionPresenter(gateway Gateway, notifier Notifier, refresh func(), logger *zap.Logger) *CollisionPresenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if refresh == nil {
		refresh = func() {}
	}
	return &CollisionPresenter{gateway: gateway, notifier: notifier, refresh: refresh, logger: logger}
}

// Submit sends patch and shows the warning when the server reports a
// conflict. Transport and validation errors are returned as is.
func (p *CollisionPresenter) Submit(ctx context.Context, ticketID string, expectedVersion int64, patch domain.TicketPatch) (UpdateResult, error) {
	result, err := p.gateway.UpdateTicket(ctx, ticketID, expectedVersion, patch)
	if err != nil {
		return UpdateResult{}, err
	}
	if result.Outcome == OutcomeConflict {
		p.Show(*result.Conflict, patch)
	}
	return result, nil
}

// Show displays the warning for conflict, holding patch for a retry.
func (p *CollisionPresenter) Show(conflict ConflictDescriptor, patch domain.TicketPatch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.generation++
	p.state = PresenterVisible
	p.conflict = &conflict
	p.patch = patch
}

// Retry resubmits the held patch against the version the server reported.
// On success the warning hides; on a new conflict it shows the newer
// descriptor; on failure it stays visible with the patch kept.
func (p *CollisionPresenter) Retry(ctx context.Context) (UpdateResult, error) {
	p.mu.Lock()
	if p.closed || p.state != PresenterVisible || p.conflict == nil {
		p.mu.Unlock()
		return UpdateResult{}, ErrNoConflict
	}
	p.state = PresenterRetrying
	generation := p.generation
	ticketID := p.conflict.TicketID
	expected := p.conflict.CurrentVersion
	patch := p.patch
	p.mu.Unlock()

	result, err := p.gateway.UpdateTicket(ctx, ticketID, expected, patch)

	p.mu.Lock()
	if p.closed || p.generation != generation {
		p.mu.Unlock()
		p.logger.Debug("stale retry result ignored", zap.String("ticket_id", ticketID))
		return result, err
	}
	var toast func()
	switch {
	case err != nil:
		p.state = PresenterVisible
		toast = func() { p.notifier.Error(msgRetryFailed) }
	case result.Outcome == OutcomeConflict:
		p.state = PresenterVisible
		p.conflict = result.Conflict
		toast = func() { p.notifier.Info(msgConflictAgain) }
	default:
		p.clearLocked()
		toast = func() { p.notifier.Success(msgRetrySucceeded) }
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("conflict retry failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
	toast()
	return result, err
}

// Refresh discards the held patch and asks the owner to reload.
func (p *CollisionPresenter) Refresh() {
	if !p.dismiss() {
		return
	}
	p.refresh()
	p.notifier.Info(msgRefreshed)
}

// Cancel discards the held patch without reloading.
func (p *CollisionPresenter) Cancel() {
	if !p.dismiss() {
		return
	}
	p.notifier.Info(msgEditsDiscarded)
}

// Close detaches the presenter. Results of retries still in flight are
// dropped.
func (p *CollisionPresenter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.clearLocked()
}

// State reports the current state.
func (p *CollisionPresenter) State() PresenterState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Patch returns the held patch and whether one is held.
func (p *CollisionPresenter) Patch() (domain.TicketPatch, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.patch, p.state != PresenterHidden
}

// View renders the warning.
func (p *CollisionPresenter) View() PresenterView {
	p.mu.Lock()
	defer p.mu.Unlock()
	view := PresenterView{State: p.state, RetryLabel: RetryLabel}
	if p.state == PresenterHidden || p.conflict == nil {
		return view
	}
	c := *p.conflict
	view.Conflict = &c
	view.RetryEnabled = p.state == PresenterVisible
	view.Message = ConflictMessage(c)
	return view
}

// ConflictMessage explains a conflict to the user. Without a resolved name
// the editor stays anonymous; agent ids are not shown.
func ConflictMessage(c ConflictDescriptor) string {
	who := msgConflictUnknown
	if c.UpdatedByName != nil && *c.UpdatedByName != "" {
		who = *c.UpdatedByName
	}
	msg := fmt.Sprintf("Dit ticket is gewijzigd door %s nadat je het opende (versie %d, jij had versie %d).",
		who, c.CurrentVersion, c.ExpectedVersion)
	if c.LastUpdated != nil {
		msg += fmt.Sprintf(" Laatste wijziging: %s.", c.LastUpdated.Local().Format("02-01-2006 15:04"))
	}
	return msg
}

// dismiss hides a visible warning. It reports whether anything changed.
func (p *CollisionPresenter) dismiss() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.state != PresenterVisible {
		return false
	}
	p.clearLocked()
	return true
}

func (p *CollisionPresenter) clearLocked() {
	p.generation++
	p.state = PresenterHidden
	p.conflict = nil
	p.patch = domain.TicketPatch{}
}
