package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordConflict()
	m.RecordConflict()
	m.RecordTypingSignal(true)
	m.RecordTypingSignal(false)
	m.RecordTypingSignal(false)
	m.RecordRequest("/api/tickets/:id", "PATCH", 409, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.conflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.typingSignals.WithLabelValues("start")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.typingSignals.WithLabelValues("stop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/tickets/:id", "PATCH", "409")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordConflict()
		m.RecordError("/x", "GET", "NOT_FOUND")
		m.RecordRequest("/x", "GET", 200, time.Millisecond)
		m.RecordTypingSignal(true)
	})
}

func TestRequestLoggerKeepsMethodLabels(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.All("/a", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for _, method := range []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodPatch, fiber.MethodGet} {
		resp, err := app.Test(httptest.NewRequest(method, "/a", nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/a", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/a", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/a", "PATCH", "200")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.requests))
}
