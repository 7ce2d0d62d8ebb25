package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/helpdesk/internal/clock"
	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/events"
	"github.com/deskline/helpdesk/internal/observability"
	"github.com/deskline/helpdesk/internal/repository"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTypingFixture(t *testing.T) (*TypingService, *clock.FakeClock, *recordingDispatcher, *observability.Metrics) {
	t.Helper()
	fake := clock.Fake(time.Now().UTC().Truncate(time.Millisecond))
	dispatcher := &recordingDispatcher{}
	metrics := observability.NewMetrics()
	svc := NewTypingService(TypingDependencies{
		TypingRepo: repository.NewTypingRepository(newRedis(t)),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Clock:      fake,
		TTL:        3 * time.Second,
	})
	return svc, fake, dispatcher, metrics
}

func TestTypingLifecycle(t *testing.T) {
	svc, fake, dispatcher, metrics := newTypingFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SetTyping(ctx, anna, "t-1", true))
	fake.Advance(500 * time.Millisecond)
	require.NoError(t, svc.SetTyping(ctx, bram, "t-1", true))

	list, err := svc.ListTyping(ctx, "t-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Anna", list[0].UserName)
	assert.Equal(t, "Bram", list[1].UserName)
	assert.True(t, list[0].ExpiresAt.Equal(fake.Now().Add(2500*time.Millisecond)))

	require.NoError(t, svc.SetTyping(ctx, anna, "t-1", false))
	require.NoError(t, svc.SetTyping(ctx, anna, "t-1", false), "repeated stop is accepted")

	list, err = svc.ListTyping(ctx, "t-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, bram.AgentID, list[0].UserID)

	assert.Len(t, dispatcher.ofType(events.EventTypingChanged), 4)
	assert.Equal(t, 4.0, counterValue(t, metrics, "helpdesk_typing_signals_total"))
}

func TestTypingExpiresWithoutStop(t *testing.T) {
	svc, fake, _, _ := newTypingFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SetTyping(ctx, anna, "t-1", true))
	fake.Advance(3 * time.Second)

	list, err := svc.ListTyping(ctx, "t-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRepeatedStartKeepsArrivalOrder(t *testing.T) {
	svc, fake, _, _ := newTypingFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SetTyping(ctx, anna, "t-1", true))
	fake.Advance(time.Second)
	require.NoError(t, svc.SetTyping(ctx, bram, "t-1", true))
	fake.Advance(time.Second)
	require.NoError(t, svc.SetTyping(ctx, anna, "t-1", true))

	list, err := svc.ListTyping(ctx, "t-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, anna.AgentID, list[0].UserID)
	assert.True(t, list[0].ExpiresAt.Equal(fake.Now().Add(3*time.Second)))
}

func TestViewerCannotSignalTyping(t *testing.T) {
	svc, _, _, _ := newTypingFixture(t)
	requireCode(t, svc.SetTyping(context.Background(), vince, "t-1", true), "FORBIDDEN")
}

func TestPresenceService(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	svc := NewPresenceService(repository.NewPresenceRepository(newRedis(t)), dispatcher, nil)
	ctx := context.Background()

	status, err := svc.GetStatus(ctx, anna.AgentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceOffline, status)

	status, err = svc.SetStatus(ctx, anna, "busy")
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceBusy, status)

	status, err = svc.GetStatus(ctx, anna.AgentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceBusy, status)

	_, err = svc.SetStatus(ctx, anna, "invisible")
	requireCode(t, err, "VALIDATION_FAILED")

	changes := dispatcher.ofType(events.EventPresenceChanged)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.PresenceBusy, changes[0].Payload.(events.PresenceChangedPayload).Status)
}
