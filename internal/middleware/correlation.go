package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// HeaderCorrelationID carries the request correlation identifier in both directions.
	HeaderCorrelationID = "X-Correlation-ID"
	// QueryCorrelationID lets websocket clients, which cannot set headers, pass an identifier.
	QueryCorrelationID = "cid"

	localCorrelationID = "correlation_id"
)

type correlationKey struct{}

// CorrelationID tags every request, including room socket upgrades, with an identifier that
// follows it into service logs and room transition spans.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := firstNonEmpty(c.Get(HeaderCorrelationID), c.Get("X-Request-ID"), c.Query(QueryCorrelationID))
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(localCorrelationID, id)
		c.Set(HeaderCorrelationID, id)
		c.SetUserContext(ContextWithCorrelation(c.UserContext(), id))
		return c.Next()
	}
}

// CorrelationIDFromContext returns the identifier stored by ContextWithCorrelation.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// GetCorrelationID returns the identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(localCorrelationID).(string); ok {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}

// LoggerWithCorrelation tags the logger with the correlation id and the authenticated player.
func LoggerWithCorrelation(base zerolog.Logger, c *fiber.Ctx) zerolog.Logger {
	logCtx := base.With()
	if id := GetCorrelationID(c); id != "" {
		logCtx = logCtx.Str("correlation_id", id)
	}
	if userID, ok := c.Locals(LocalUserID).(string); ok && userID != "" {
		logCtx = logCtx.Str("user_id", userID)
	}
	return logCtx.Logger()
}

// ContextWithCorrelation attaches the identifier to ctx. Blank identifiers leave ctx untouched.
func ContextWithCorrelation(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, correlationID)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
