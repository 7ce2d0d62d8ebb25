package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/api/dto"
	"github.com/deskline/helpdesk/internal/events"
)

const (
	feedHandshakeTimeout = 10 * time.Second
	feedReadLimit        = 64 << 10
)

// DialFeed connects to a ticket feed and returns its frames. The channel
// closes when the connection drops or ctx is done.
func DialFeed(ctx context.Context, url string, logger *zap.Logger) (<-chan dto.FeedFrame, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: feedHandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, statusError(resp.StatusCode, nil)
		}
		return nil, fmt.Errorf("%w: dial feed: %v", ErrTransport, err)
	}
	conn.SetReadLimit(feedReadLimit)

	frames := make(chan dto.FeedFrame, 16)
	closed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-closed:
		}
	}()
	go func() {
		defer close(frames)
		defer close(closed)
		defer conn.Close()
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
					logger.Debug("feed read failed", zap.Error(err))
				}
				return
			}
			if kind != websocket.TextMessage {
				continue
			}
			var frame dto.FeedFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				logger.Debug("feed frame ignored", zap.Error(err))
				continue
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return frames, nil
}

// FeedURLer builds the feed address of a ticket; Client implements it.
type FeedURLer interface {
	FeedURL(ticketID string) string
}

// FeedSource triggers a fetch on every typing change pushed over the
// ticket feed.
type FeedSource struct {
	URLs   FeedURLer
	Logger *zap.Logger
}

// Triggers implements TypingSource.
func (f FeedSource) Triggers(ctx context.Context, ticketID string) (<-chan struct{}, error) {
	frames, err := DialFeed(ctx, f.URLs.FeedURL(ticketID), f.Logger)
	if err != nil {
		return nil, err
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for frame := range frames {
			if frame.Type != string(events.EventTypingChanged) {
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, nil
}
