package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/fileupload/http/server"
)

// NewTimeoutMW creates a middleware that bounds the request context by duration.
// Storage writes started by upload handlers observe the same deadline.
// A zero duration leaves the context unbounded.
func NewTimeoutMW(duration time.Duration) server.Middleware {
	return server.Middleware{
		Priority: 800,
		Handler: func(c *fiber.Ctx) error {
			if duration <= 0 {
				return c.Next()
			}

			ctx, cancel := context.WithTimeout(c.UserContext(), duration)
			defer cancel()

			c.SetUserContext(ctx)

			return c.Next()
		},
	}
}
