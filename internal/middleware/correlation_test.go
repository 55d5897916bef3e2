package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDPropagatesIncomingHeader(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(CorrelationIDFromContext(c.UserContext()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "req-123", resp.Header.Get(HeaderCorrelationID))
}

func TestCorrelationIDReadsSocketQueryParameter(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/rooms/:id/ws", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/rooms/r1/ws?cid=sock-7", nil), -1)
	require.NoError(t, err)
	require.Equal(t, "sock-7", resp.Header.Get(HeaderCorrelationID))
}

func TestCorrelationIDGeneratesWhenMissing(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	require.Len(t, resp.Header.Get(HeaderCorrelationID), 36)
}

func TestLoggerWithCorrelationTagsPlayer(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		c.Locals(LocalUserID, "kid-1")
		logger := LoggerWithCorrelation(base, c)
		logger.Info().Msg("joined")
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "corr-1")
	_, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"correlation_id":"corr-1"`)
	require.Contains(t, buf.String(), `"user_id":"kid-1"`)
}
