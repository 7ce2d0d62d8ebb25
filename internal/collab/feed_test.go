package collab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/helpdesk/internal/api/dto"
)

type staticURL string

func (u staticURL) FeedURL(string) string { return string(u) }

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/feed"
}

// feedServer upgrades one connection, writes frames, then closes it.
func feedServer(t *testing.T, frames ...dto.FeedFrame) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			raw, _ := json.Marshal(f)
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDialFeedDeliversFrames(t *testing.T) {
	srv := feedServer(t,
		dto.FeedFrame{Type: "ticket_updated", TicketID: "t-1"},
		dto.FeedFrame{Type: "typing_changed", TicketID: "t-1"},
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frames, err := DialFeed(ctx, wsURL(srv), nil)
	require.NoError(t, err)

	var types []string
	for f := range frames {
		types = append(types, f.Type)
	}
	assert.Equal(t, []string{"ticket_updated", "typing_changed"}, types, "undecodable frames are skipped")
}

func TestFeedSourceTriggersOnTypingChanges(t *testing.T) {
	srv := feedServer(t,
		dto.FeedFrame{Type: "comment_added", TicketID: "t-1"},
		dto.FeedFrame{Type: "typing_changed", TicketID: "t-1"},
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	triggers, err := FeedSource{URLs: staticURL(wsURL(srv))}.Triggers(ctx, "t-1")
	require.NoError(t, err)

	count := 0
	for range triggers {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestDialFeedRejectedHandshake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := DialFeed(context.Background(), wsURL(srv), nil)
	assert.True(t, errors.Is(err, ErrUnauthorized), "got %v", err)
}

func TestSubscriberFallsBackWhenFeedUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fetcher := &stubFetcher{}
	sub := NewTypingSubscriber(fetcher, FeedSource{URLs: staticURL(wsURL(srv))}, "t-1", SubscriberOptions{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()
	require.Eventually(t, func() bool { return fetcher.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
