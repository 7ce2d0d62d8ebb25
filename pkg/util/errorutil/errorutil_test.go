package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"domain error passes through", NewForbidden("nope"), "FORBIDDEN", http.StatusForbidden},
		{"wrapped domain error", fmt.Errorf("ctx: %w", NewValidationError("bad", nil)), "VALIDATION_FAILED", http.StatusBadRequest},
		{"no rows maps to not found", fmt.Errorf("get ticket: %w", pgx.ErrNoRows), "NOT_FOUND", http.StatusNotFound},
		{"fiber error keeps status", fiber.NewError(http.StatusForbidden, "insufficient role"), "FORBIDDEN", http.StatusForbidden},
		{"rate limited", NewTooManyRequests("slow down"), "RATE_LIMITED", http.StatusTooManyRequests},
		{"fiber 429", fiber.NewError(http.StatusTooManyRequests, "slow down"), "RATE_LIMITED", http.StatusTooManyRequests},
		{"unknown error is internal", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(tt.err)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, tt.status, de.HTTPStatus)
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	assert.NoError(t, MapError(nil))
	assert.Nil(t, ToDomainError(nil))
}
