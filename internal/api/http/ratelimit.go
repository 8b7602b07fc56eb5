package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"github.com/touripk/support-desk/internal/auth"
	apperrors "github.com/touripk/support-desk/pkg/util"
)

// NewTicketCreateLimiter bounds ticket creation per authenticated user with a sliding window.
// A nil client keeps counters in process memory, which is only correct for a single replica.
func NewTicketCreateLimiter(rdb redis.UniversalClient, max int, window time.Duration) fiber.Handler {
	cfg := limiter.Config{
		Max:               max,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			if principal, ok := auth.PrincipalFromContext(c); ok {
				return "ticket-create:" + principal.User.ID
			}
			return "ticket-create:ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return apperrors.NewRateLimited("too many tickets created, try again later")
		},
	}
	if rdb != nil {
		cfg.Storage = fiberredis.NewFromConnection(rdb)
	}
	return limiter.New(cfg)
}
