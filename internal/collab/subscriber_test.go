package collab

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/helpdesk/internal/clock"
)

type stubFetcher struct {
	mu      sync.Mutex
	entries []TypingEntry
	err     error
	calls   int
}

func (f *stubFetcher) ListTyping(context.Context, string) ([]TypingEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]TypingEntry(nil), f.entries...), f.err
}

func (f *stubFetcher) set(entries ...TypingEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = entries
}

func (f *stubFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type manualSource struct{ triggers chan struct{} }

func (m manualSource) Triggers(context.Context, string) (<-chan struct{}, error) {
	return m.triggers, nil
}

func names(entries []TypingEntry) []string {
	out := []string{}
	for _, e := range entries {
		out = append(out, e.UserName)
	}
	return out
}

func TestSubscriberFiltersSelfAndExpiredKeepingOrder(t *testing.T) {
	fake := clock.Fake(epoch)
	fetcher := &stubFetcher{}
	fetcher.set(
		TypingEntry{UserID: "a-cas", UserName: "Cas", ExpiresAt: epoch.Add(2 * time.Second)},
		TypingEntry{UserID: "a-anna", UserName: "Anna", ExpiresAt: epoch.Add(3 * time.Second)},
		TypingEntry{UserID: "a-old", UserName: "Oud", ExpiresAt: epoch.Add(-time.Second)},
		TypingEntry{UserID: "a-bram", UserName: "Bram", ExpiresAt: epoch.Add(3 * time.Second)},
	)
	sub := NewTypingSubscriber(fetcher, manualSource{}, "t-1", SubscriberOptions{SelfID: "a-anna", Clock: fake})

	sub.Refresh(context.Background())
	assert.Equal(t, []string{"Cas", "Bram"}, names(sub.Current()), "arrival order, not alphabetical")
	assert.Equal(t, "Cas en Bram zijn aan het typen...", sub.Message())

	fake.Advance(2 * time.Second)
	assert.Equal(t, []string{"Bram"}, names(sub.Current()), "an entry expiring exactly now is gone")

	fake.Advance(time.Second)
	assert.Empty(t, sub.Current())
	assert.Equal(t, "", sub.Message())
}

func TestSubscriberNeverShowsSelf(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set(TypingEntry{UserID: "a-anna", UserName: "Anna", ExpiresAt: epoch.Add(time.Hour)})
	sub := NewTypingSubscriber(fetcher, manualSource{}, "t-1", SubscriberOptions{SelfID: "a-anna", Clock: clock.Fake(epoch)})

	sub.Refresh(context.Background())
	assert.Empty(t, sub.Current())
	assert.NotContains(t, sub.Message(), "Anna")
}

func TestSubscriberKeepsListOnFetchFailure(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set(TypingEntry{UserID: "a-bram", UserName: "Bram", ExpiresAt: epoch.Add(time.Hour)})
	sub := NewTypingSubscriber(fetcher, manualSource{}, "t-1", SubscriberOptions{Clock: clock.Fake(epoch)})
	sub.Refresh(context.Background())

	fetcher.mu.Lock()
	fetcher.err = errors.New("boom")
	fetcher.mu.Unlock()
	sub.Refresh(context.Background())
	assert.Equal(t, []string{"Bram"}, names(sub.Current()))
}

func TestSubscriberRunRefetchesOnTriggersAndFallsBackToPolling(t *testing.T) {
	fake := clock.Fake(epoch)
	fetcher := &stubFetcher{}
	triggers := make(chan struct{}, 1)

	var mu sync.Mutex
	var seen [][]string
	sub := NewTypingSubscriber(fetcher, manualSource{triggers: triggers}, "t-1", SubscriberOptions{
		SelfID:       "a-anna",
		PollInterval: time.Second,
		Clock:        fake,
		OnChange: func(list []TypingEntry) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, names(list))
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()
	require.Eventually(t, func() bool { return fetcher.count() == 1 }, time.Second, 5*time.Millisecond)

	fetcher.set(TypingEntry{UserID: "a-bram", UserName: "Bram", ExpiresAt: epoch.Add(3 * time.Second)})
	triggers <- struct{}{}
	require.Eventually(t, func() bool { return len(sub.Current()) == 1 }, time.Second, 5*time.Millisecond)

	// the feed went away: ticks now fetch
	close(triggers)
	before := fetcher.count()
	require.Eventually(t, func() bool {
		fake.Advance(time.Second)
		return fetcher.count() > before
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, []string{"Bram"}, seen[0])
}

func TestPollSourceTicksOnTheClock(t *testing.T) {
	fake := clock.Fake(epoch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggers, err := PollSource{Clock: fake, Interval: time.Second}.Triggers(ctx, "t-1")
	require.NoError(t, err)

	fake.Advance(time.Second)
	select {
	case <-triggers:
	case <-time.After(time.Second):
		t.Fatal("no trigger after one interval")
	}

	_, err = PollSource{Clock: fake}.Triggers(ctx, "t-1")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestFormatTyping(t *testing.T) {
	entry := func(name string) TypingEntry { return TypingEntry{UserName: name} }
	cases := []struct {
		name    string
		entries []TypingEntry
		want    string
	}{
		{"none", nil, ""},
		{"one", []TypingEntry{entry("Anna")}, "Anna is aan het typen..."},
		{"two", []TypingEntry{entry("Anna"), entry("Bram")}, "Anna en Bram zijn aan het typen..."},
		{"three", []TypingEntry{entry("Cas"), entry("Anna"), entry("Bram")}, "Cas en 2 anderen zijn aan het typen..."},
		{"five", []TypingEntry{entry("A"), entry("B"), entry("C"), entry("D"), entry("E")}, "A en 4 anderen zijn aan het typen..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatTyping(tc.entries))
		})
	}
}
