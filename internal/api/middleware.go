package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/observability"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/ratelimit"
)

const requestIDLocal = "requestid"

// RequestID tags every request with a correlation id, honoring one supplied
// by the caller on X-Request-Id.
func RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		Generator:  uuid.NewString,
		ContextKey: requestIDLocal,
	})
}

// PropagateRequestID copies the correlation id into the request's user
// context so services and outbound vendor calls can tag their work with it.
func PropagateRequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id, ok := c.Locals(requestIDLocal).(string); ok && id != "" {
			c.SetUserContext(observability.WithRequestID(c.UserContext(), id))
		}
		return c.Next()
	}
}

// RateLimit enforces per-client sliding windows ahead of the routed
// handlers. Exempt path prefixes bypass the limiter entirely.
func RateLimit(limiter *ratelimit.Limiter, recorder observability.Recorder, exemptPrefixes []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, prefix := range exemptPrefixes {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		decision := limiter.Check(clientIdentity(c))

		c.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))

		if decision.Allowed {
			return c.Next()
		}

		recorder.IncRateLimited(string(decision.LimitType))
		retryAfter := int(decision.RetryAfter / time.Second)
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":       "rate_limit_exceeded",
			"limit_type":  decision.LimitType,
			"retry_after": retryAfter,
		})
	}
}

// clientIdentity prefers the first forwarded hop so limits follow the caller
// through proxies, falling back to the peer address.
func clientIdentity(c *fiber.Ctx) string {
	if forwarded := c.Get(fiber.HeaderXForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if identity := strings.TrimSpace(first); identity != "" {
			return identity
		}
	}
	return c.IP()
}
