package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/deskline/helpdesk/internal/api/dto"
	"github.com/deskline/helpdesk/internal/domain"
)

const defaultRequestTimeout = 10 * time.Second

// Gateway submits version-checked ticket updates.
type Gateway interface {
	UpdateTicket(ctx context.Context, ticketID string, expectedVersion int64, patch domain.TicketPatch) (UpdateResult, error)
}

// Client talks to the helpdesk HTTP API with a bearer token. It
// implements Gateway, TypingSender, TypingFetcher and PresenceSyncer.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *fiber.Client
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithTimeout bounds each request. Requests also honour the context
// deadline when it is shorter.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient returns a client for the API rooted at baseURL, for example
// "http://localhost:8080".
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: defaultRequestTimeout,
		http:    &fiber.Client{UserAgent: "helpdesk-collab"},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpdateTicket sends the version-checked PATCH. A 409 is returned as an
// OutcomeConflict result, never as an error.
func (c *Client) UpdateTicket(ctx context.Context, ticketID string, expectedVersion int64, patch domain.TicketPatch) (UpdateResult, error) {
	if expectedVersion < 0 {
		return UpdateResult{}, fmt.Errorf("%w: expected version must not be negative", ErrValidation)
	}
	expected := expectedVersion
	body := dto.UpdateTicketRequest{
		ExpectedVersion: &expected,
		Title:           patch.Title,
		Description:     patch.Description,
		Status:          patch.Status,
		Priority:        patch.Priority,
		AssigneeID:      patch.AssigneeID,
		Tags:            patch.Tags,
	}

	status, raw, err := c.do(ctx, fiber.MethodPatch, ticketPath(ticketID), body)
	if err != nil {
		return UpdateResult{}, err
	}
	if status != fiber.StatusOK && status != fiber.StatusConflict {
		return UpdateResult{}, statusError(status, raw)
	}

	var wire dto.UpdateTicketResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return UpdateResult{}, fmt.Errorf("%w: decode update response: %v", ErrTransport, err)
	}
	if status == fiber.StatusConflict {
		wire.Conflict = true
	}
	return Detect(ticketID, expectedVersion, wire)
}

// TicketVersion fetches the version witness of a ticket.
func (c *Client) TicketVersion(ctx context.Context, ticketID string) (dto.TicketVersionResponse, error) {
	var out dto.TicketVersionResponse
	err := c.getJSON(ctx, ticketPath(ticketID)+"/version", &out)
	return out, err
}

// SetTyping starts or stops the caller's typing indicator on a ticket.
func (c *Client) SetTyping(ctx context.Context, ticketID string, isTyping bool) error {
	flag := isTyping
	status, raw, err := c.do(ctx, fiber.MethodPut, ticketPath(ticketID)+"/typing", dto.TypingRequest{IsTyping: &flag})
	if err != nil {
		return err
	}
	if status != fiber.StatusNoContent && status != fiber.StatusOK {
		return statusError(status, raw)
	}
	return nil
}

// ListTyping returns the live typing indicators of a ticket in arrival
// order.
func (c *Client) ListTyping(ctx context.Context, ticketID string) ([]TypingEntry, error) {
	var wire []dto.TypingIndicatorResponse
	if err := c.getJSON(ctx, ticketPath(ticketID)+"/typing", &wire); err != nil {
		return nil, err
	}
	out := make([]TypingEntry, 0, len(wire))
	for _, w := range wire {
		out = append(out, TypingEntry{UserID: w.UserID, UserName: w.UserName, ExpiresAt: w.ExpiresAt})
	}
	return out, nil
}

// Presence fetches the caller's own status.
func (c *Client) Presence(ctx context.Context) (domain.PresenceStatus, error) {
	var out dto.PresenceResponse
	if err := c.getJSON(ctx, "/api/presence", &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// SetPresence stores the caller's status on the server.
func (c *Client) SetPresence(ctx context.Context, status domain.PresenceStatus) error {
	code, raw, err := c.do(ctx, fiber.MethodPut, "/api/presence", dto.PresenceRequest{Status: string(status)})
	if err != nil {
		return err
	}
	if code != fiber.StatusNoContent && code != fiber.StatusOK {
		return statusError(code, raw)
	}
	return nil
}

// FeedURL is the WebSocket address of a ticket feed, with the token in
// the query string because browsers cannot set headers on upgrades.
func (c *Client) FeedURL(ticketID string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + ticketPath(ticketID) + "/feed?access_token=" + url.QueryEscape(c.token)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	status, raw, err := c.do(ctx, fiber.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status != fiber.StatusOK {
		return statusError(status, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrTransport, path, err)
	}
	return nil
}

// do runs one request. The fiber agent cannot be cancelled mid-flight, so
// the context only bounds the timeout and short-circuits when already done.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	target := c.baseURL + path
	var agent *fiber.Agent
	switch method {
	case fiber.MethodPatch:
		agent = c.http.Patch(target)
	case fiber.MethodPut:
		agent = c.http.Put(target)
	case fiber.MethodPost:
		agent = c.http.Post(target)
	default:
		agent = c.http.Get(target)
	}
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.token).
		Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON).
		Timeout(timeout)
	if body != nil {
		agent.JSON(body)
	}

	status, raw, errs := agent.Bytes()
	if len(errs) > 0 {
		return 0, nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, errors.Join(errs...))
	}
	return status, raw, nil
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func statusError(status int, raw []byte) error {
	var envelope errorEnvelope
	message := utils.StatusMessage(status)
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	var kind error
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		kind = ErrValidation
	case fiber.StatusUnauthorized:
		kind = ErrUnauthorized
	case fiber.StatusForbidden:
		kind = ErrForbidden
	case fiber.StatusNotFound:
		kind = ErrNotFound
	default:
		kind = ErrTransport
	}
	return fmt.Errorf("%w (%d): %s", kind, status, message)
}

func ticketPath(ticketID string) string {
	return "/api/tickets/" + url.PathEscape(ticketID)
}
