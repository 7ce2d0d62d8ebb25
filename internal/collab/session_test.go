package collab

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/helpdesk/internal/api/dto"
	"github.com/deskline/helpdesk/internal/clock"
	"github.com/deskline/helpdesk/internal/config"
	"github.com/deskline/helpdesk/internal/domain"
)

func TestSessionLifecycle(t *testing.T) {
	var mu sync.Mutex
	var pushed []string
	var typing []bool
	base := startStub(t, func(app *fiber.App) {
		app.Use(requireBearer)
		app.Get("/api/presence", func(c *fiber.Ctx) error {
			return c.JSON(dto.PresenceResponse{UserID: "a-anna", Status: domain.PresenceOnline})
		})
		app.Put("/api/presence", func(c *fiber.Ctx) error {
			var req dto.PresenceRequest
			if err := c.BodyParser(&req); err != nil {
				return err
			}
			mu.Lock()
			pushed = append(pushed, req.Status)
			mu.Unlock()
			return c.SendStatus(fiber.StatusNoContent)
		})
		app.Put("/api/tickets/:id/typing", func(c *fiber.Ctx) error {
			var req dto.TypingRequest
			if err := c.BodyParser(&req); err != nil {
				return err
			}
			mu.Lock()
			typing = append(typing, *req.IsTyping)
			mu.Unlock()
			return c.SendStatus(fiber.StatusNoContent)
		})
	})

	fake := clock.Fake(epoch)
	ctx := context.Background()
	session, err := NewSession(ctx, SessionConfig{
		BaseURL:  base,
		Token:    testToken,
		UserID:   "a-anna",
		UserName: "Anna",
		Timings:  config.CollabConfig{TypingDebounceMillis: 500},
		Clock:    fake,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceOnline, session.Presence().Status())

	publisher := session.NewPublisher("t-1")
	publisher.StartTyping()
	fake.Advance(500 * time.Millisecond)
	publisher.Close()

	require.NoError(t, session.Presence().SetStatus("away"))
	session.Close(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, typing)
	assert.Equal(t, []string{"away", "offline"}, pushed)
}

func TestSessionRequiresValidToken(t *testing.T) {
	base := startStub(t, func(app *fiber.App) {
		app.Use(requireBearer)
	})

	_, err := NewSession(context.Background(), SessionConfig{BaseURL: base, Token: "wrong"})
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = NewSession(context.Background(), SessionConfig{})
	assert.Error(t, err)
}
