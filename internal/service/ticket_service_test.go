package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/helpdesk/internal/auth"
	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/events"
	"github.com/deskline/helpdesk/internal/observability"
	"github.com/deskline/helpdesk/internal/repository/memory"
	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

var (
	anna  = &auth.Principal{AgentID: "agent-anna", Name: "Anna", Role: domain.AgentRoleAgent}
	bram  = &auth.Principal{AgentID: "agent-bram", Name: "Bram", Role: domain.AgentRoleAgent}
	vince = &auth.Principal{AgentID: "agent-vince", Name: "Vince", Role: domain.AgentRoleViewer}
)

type ticketFixture struct {
	svc        *TicketService
	repo       *memory.TicketRepository
	history    *memory.HistoryRepository
	dispatcher *recordingDispatcher
	metrics    *observability.Metrics
}

func newTicketFixture(t *testing.T) ticketFixture {
	t.Helper()
	f := ticketFixture{
		repo:       memory.NewTicketRepository(),
		history:    memory.NewHistoryRepository(),
		dispatcher: &recordingDispatcher{},
		metrics:    observability.NewMetrics(),
	}
	agents := memory.NewAgentRepository(
		domain.Agent{ID: bram.AgentID, Name: "Bram Jansen", Handle: "bram", Email: "bram@example.com", Role: domain.AgentRoleAgent, Active: true},
	)
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:  f.repo,
		HistoryRepo: f.history,
		AgentRepo:   agents,
		Dispatcher:  f.dispatcher,
		Metrics:     f.metrics,
	})
	return f
}

func (f ticketFixture) create(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.CreateTicket(context.Background(), anna, TicketCreateInput{
		RequesterEmail: "klant@example.com",
		Title:          "Printer doet het niet",
	})
	require.NoError(t, err)
	return ticket
}

func counterValue(t *testing.T, m *observability.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func ptr[T any](v T) *T { return &v }

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %v", err)
	assert.Equal(t, code, de.Code)
}

func TestCreateTicketStartsAtInitialVersion(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t)

	assert.Equal(t, domain.InitialTicketVersion, ticket.Version)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Regexp(t, `^TCK-[0-9A-F]{8}$`, ticket.ExternalKey)
	assert.Len(t, f.dispatcher.ofType(events.EventTicketCreated), 1)
	history, err := f.svc.ListHistory(context.Background(), ticket.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ChangeTypeCreated, history[0].ChangeType)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newTicketFixture(t)
	_, err := f.svc.CreateTicket(context.Background(), anna, TicketCreateInput{Title: "  "})
	requireCode(t, err, "VALIDATION_FAILED")

	_, err = f.svc.CreateTicket(context.Background(), vince, TicketCreateInput{Title: "x", RequesterEmail: "a@b.c"})
	requireCode(t, err, "FORBIDDEN")
}

func TestUpdateWithVersionCheckSucceeds(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t)

	result, err := f.svc.UpdateWithVersionCheck(context.Background(), anna, ticket.ID, ptr(int64(1)),
		domain.TicketPatch{Status: ptr(domain.TicketStatusPending)})
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	assert.Equal(t, int64(2), result.Updated.Version)

	stored, err := f.svc.GetTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPending, stored.Status)
	assert.Equal(t, anna.AgentID, *stored.UpdatedBy)

	updates := f.dispatcher.ofType(events.EventTicketUpdated)
	require.Len(t, updates, 1)
	payload := updates[0].Payload.(events.TicketUpdatedPayload)
	assert.Equal(t, int64(1), payload.OldVersion)
	assert.Equal(t, int64(2), payload.NewVersion)
	assert.Equal(t, []string{"status"}, payload.Fields)

	history, err := f.svc.ListHistory(context.Background(), ticket.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ChangeTypeVersionUpdate, history[1].ChangeType)
}

func TestUpdateWithStaleVersionReturnsConflict(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t)

	_, err := f.svc.UpdateWithVersionCheck(context.Background(), bram, ticket.ID, ptr(int64(1)),
		domain.TicketPatch{Priority: ptr(domain.TicketPriorityHigh)})
	require.NoError(t, err)

	result, err := f.svc.UpdateWithVersionCheck(context.Background(), anna, ticket.ID, ptr(int64(1)),
		domain.TicketPatch{Status: ptr(domain.TicketStatusResolved)})
	require.NoError(t, err)
	require.False(t, result.Succeeded())
	require.NotNil(t, result.Conflict)
	assert.Equal(t, int64(1), result.Conflict.ExpectedVersion)
	assert.Equal(t, int64(2), result.Conflict.CurrentVersion)
	assert.Equal(t, bram.AgentID, *result.Conflict.UpdatedBy)
	require.NotNil(t, result.Conflict.UpdatedByName)
	assert.Equal(t, "Bram Jansen", *result.Conflict.UpdatedByName)

	stored, _ := f.svc.GetTicket(context.Background(), ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status, "conflicting patch must not be applied")
	assert.Equal(t, 1.0, counterValue(t, f.metrics, "helpdesk_ticket_version_conflicts_total"))
	assert.Len(t, f.dispatcher.ofType(events.EventTicketVersionConflict), 1)
}

func TestConcurrentUpdatesOnlyOneWins(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t)

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts []*domain.VersionConflict
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.svc.UpdateWithVersionCheck(context.Background(), anna, ticket.ID, ptr(int64(1)),
				domain.TicketPatch{Title: ptr("concurrent")})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if result.Succeeded() {
				wins++
			} else {
				conflicts = append(conflicts, result.Conflict)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	require.Len(t, conflicts, writers-1)
	for _, c := range conflicts {
		assert.Equal(t, int64(2), c.CurrentVersion)
	}
	version, err := f.svc.GetVersion(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version.Version)
}

func TestRetryWithCurrentVersionSucceeds(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t)
	ctx := context.Background()

	_, err := f.svc.UpdateWithVersionCheck(ctx, bram, ticket.ID, ptr(int64(1)), domain.TicketPatch{Title: ptr("B")})
	require.NoError(t, err)

	result, err := f.svc.UpdateWithVersionCheck(ctx, anna, ticket.ID, ptr(int64(1)), domain.TicketPatch{Title: ptr("A")})
	require.NoError(t, err)
	require.NotNil(t, result.Conflict)

	retry, err := f.svc.UpdateWithVersionCheck(ctx, anna, ticket.ID, ptr(result.Conflict.CurrentVersion), domain.TicketPatch{Title: ptr("A")})
	require.NoError(t, err)
	require.True(t, retry.Succeeded())
	assert.Equal(t, int64(3), retry.Updated.Version)
}

func TestUpdateRejectsBadInput(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t)
	ctx := context.Background()

	_, err := f.svc.UpdateWithVersionCheck(ctx, anna, ticket.ID, nil, domain.TicketPatch{})
	requireCode(t, err, "VALIDATION_FAILED")

	_, err = f.svc.UpdateWithVersionCheck(ctx, anna, ticket.ID, ptr(int64(-1)), domain.TicketPatch{})
	requireCode(t, err, "VALIDATION_FAILED")

	_, err = f.svc.UpdateWithVersionCheck(ctx, anna, ticket.ID, ptr(int64(1)), domain.TicketPatch{Status: ptr(domain.TicketStatus("DONE"))})
	requireCode(t, err, "VALIDATION_FAILED")

	_, err = f.svc.UpdateWithVersionCheck(ctx, nil, ticket.ID, ptr(int64(1)), domain.TicketPatch{})
	requireCode(t, err, "UNAUTHORIZED")

	_, err = f.svc.UpdateWithVersionCheck(ctx, vince, ticket.ID, ptr(int64(1)), domain.TicketPatch{})
	requireCode(t, err, "FORBIDDEN")

	_, err = f.svc.UpdateWithVersionCheck(ctx, anna, "missing", ptr(int64(1)), domain.TicketPatch{})
	requireCode(t, err, "NOT_FOUND")

	version, _ := f.svc.GetVersion(ctx, ticket.ID)
	assert.Equal(t, int64(1), version.Version, "rejected requests must not bump the version")
}

func TestEmptyPatchBumpsVersion(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t)

	result, err := f.svc.UpdateWithVersionCheck(context.Background(), anna, ticket.ID, ptr(int64(1)), domain.TicketPatch{})
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	assert.Equal(t, int64(2), result.Updated.Version)
}

func TestHistoryFailureDoesNotFailCommittedUpdate(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t)
	f.history.FailWith(errors.New("disk full"))

	result, err := f.svc.UpdateWithVersionCheck(context.Background(), anna, ticket.ID, ptr(int64(1)), domain.TicketPatch{Title: ptr("x")})
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
}

func TestGetVersionMissingTicket(t *testing.T) {
	f := newTicketFixture(t)
	_, err := f.svc.GetVersion(context.Background(), "nope")
	requireCode(t, err, "NOT_FOUND")
}

func TestAssignToSelf(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t)
	ctx := context.Background()

	result, err := f.svc.AssignToSelf(ctx, bram, ticket.ID, ptr(int64(1)))
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	stored, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AssigneeID)
	assert.Equal(t, bram.AgentID, *stored.AssigneeID)

	stale, err := f.svc.AssignToSelf(ctx, anna, ticket.ID, ptr(int64(1)))
	require.NoError(t, err)
	require.NotNil(t, stale.Conflict, "self-assign is version checked")

	_, err = f.svc.AssignToSelf(ctx, vince, ticket.ID, ptr(int64(2)))
	requireCode(t, err, "FORBIDDEN")
}
