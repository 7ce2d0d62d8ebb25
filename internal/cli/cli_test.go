package cli

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/helpdesk/internal/api/dto"
	"github.com/deskline/helpdesk/internal/domain"
)

func startStub(t *testing.T, register func(app *fiber.App)) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	register(app)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type recorder struct {
	mu     sync.Mutex
	values []string
}

func (r *recorder) add(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

// versionedTicket serves a ticket that Bram moved to version 6.
func versionedTicket(t *testing.T, sent *recorder) string {
	t.Helper()
	return startStub(t, func(app *fiber.App) {
		app.Patch("/api/tickets/:id", func(c *fiber.Ctx) error {
			var req dto.UpdateTicketRequest
			if err := c.BodyParser(&req); err != nil {
				return err
			}
			expected := *req.ExpectedVersion
			sent.add(*req.Title + "@" + strconv.FormatInt(expected, 10))
			if expected == 5 {
				current, name, id := int64(6), "Bram", "a-bram"
				return c.Status(fiber.StatusConflict).JSON(dto.UpdateTicketResponse{
					Conflict:        true,
					CurrentVersion:  &current,
					ExpectedVersion: &expected,
					UpdatedBy:       &id,
					UpdatedByName:   &name,
				})
			}
			next := expected + 1
			return c.JSON(dto.UpdateTicketResponse{Success: true, NewVersion: &next})
		})
	})
}

func TestUpdateRetriesAgainstTheNewerVersion(t *testing.T) {
	sent := &recorder{}
	base := versionedTicket(t, sent)

	out, err := run(t, "", "--server", base, "--token", "tok", "update", "t-1", "--expected", "5", "--title", "Printer", "--retry")
	require.NoError(t, err)
	assert.Contains(t, out, "gewijzigd door Bram")
	assert.Contains(t, out, "opgeslagen, versie 7")
	assert.Equal(t, []string{"Printer@5", "Printer@6"}, sent.all())
}

func TestUpdateConflictWithoutRetryWritesNothing(t *testing.T) {
	sent := &recorder{}
	base := versionedTicket(t, sent)

	out, err := run(t, "", "--server", base, "--token", "tok", "update", "t-1", "--expected", "5", "--title", "Printer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 6")
	assert.Contains(t, out, "gewijzigd door Bram")
	assert.Equal(t, []string{"Printer@5"}, sent.all())
}

func TestUpdateNeedsExpectedVersionAndToken(t *testing.T) {
	t.Setenv("HELPDESK_TOKEN", "")

	_, err := run(t, "", "--token", "tok", "update", "t-1", "--title", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected")

	_, err = run(t, "", "update", "t-1", "--expected", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestComposeSignalsTypingPerBurst(t *testing.T) {
	signals := &recorder{}
	base := startStub(t, func(app *fiber.App) {
		app.Put("/api/tickets/:id/typing", func(c *fiber.Ctx) error {
			var req dto.TypingRequest
			if err := c.BodyParser(&req); err != nil {
				return err
			}
			if *req.IsTyping {
				signals.add("start")
			} else {
				signals.add("stop")
			}
			return c.SendStatus(fiber.StatusNoContent)
		})
	})

	_, err := run(t, "Goedemorgen,\nik kijk ernaar.\n\nGroet\n", "--server", base, "--token", "tok", "compose", "t-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "stop", "start", "stop"}, signals.all())
}

func TestPresenceShowAndSet(t *testing.T) {
	pushed := &recorder{}
	base := startStub(t, func(app *fiber.App) {
		app.Get("/api/presence", func(c *fiber.Ctx) error {
			return c.JSON(dto.PresenceResponse{UserID: "a-anna", Status: domain.PresenceBusy})
		})
		app.Put("/api/presence", func(c *fiber.Ctx) error {
			var req dto.PresenceRequest
			if err := c.BodyParser(&req); err != nil {
				return err
			}
			pushed.add(req.Status)
			return c.SendStatus(fiber.StatusNoContent)
		})
	})

	out, err := run(t, "", "--server", base, "--token", "tok", "presence")
	require.NoError(t, err)
	assert.Equal(t, "busy\n", out)

	_, err = run(t, "", "--server", base, "--token", "tok", "presence", "away")
	require.NoError(t, err)

	_, err = run(t, "", "--server", base, "--token", "tok", "presence", "weg")
	require.Error(t, err)
	assert.Equal(t, []string{"away"}, pushed.all())
}

func TestWatchPrintsOthersAndResetsPresence(t *testing.T) {
	pushed := &recorder{}
	base := startStub(t, func(app *fiber.App) {
		app.Get("/api/presence", func(c *fiber.Ctx) error {
			return c.JSON(dto.PresenceResponse{UserID: "a-anna", Status: domain.PresenceOffline})
		})
		app.Put("/api/presence", func(c *fiber.Ctx) error {
			var req dto.PresenceRequest
			if err := c.BodyParser(&req); err != nil {
				return err
			}
			pushed.add(req.Status)
			return c.SendStatus(fiber.StatusNoContent)
		})
		app.Get("/api/tickets/:id/typing", func(c *fiber.Ctx) error {
			expires := time.Now().Add(time.Hour)
			return c.JSON([]dto.TypingIndicatorResponse{
				{UserID: "a-bram", UserName: "Bram", ExpiresAt: expires},
				{UserID: "a-anna", UserName: "Anna", ExpiresAt: expires},
			})
		})
	})

	out, err := run(t, "", "--server", base, "--token", "tok", "--user-id", "a-anna", "watch", "t-1", "--for", "300ms")
	require.NoError(t, err)
	assert.Equal(t, "Bram is aan het typen...\n", out)
	assert.Equal(t, []string{"online", "offline"}, pushed.all())
}
