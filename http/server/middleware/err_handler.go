package middleware

import (
	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/fileupload/http/server"
)

// HeaderErrorCode carries the errx code of a failed request, so clients can
// branch on it without parsing the body.
const HeaderErrorCode = "X-Error-Code"

// NewErrorHandlerMW renders handler errors as JSON error bodies.
// Responses that already carry an error status are left alone.
func NewErrorHandlerMW(hideDetails bool) server.Middleware {
	return server.Middleware{
		Priority: 400,
		Handler: func(c *fiber.Ctx) error {
			err := c.Next()
			if err == nil {
				return nil
			}
			if c.Response().StatusCode() >= fiber.StatusBadRequest {
				return err
			}

			c.Set(HeaderErrorCode, errx.AsErrorX(err).Code())
			return server.WriteErrorResponse(c, err, hideDetails)
		},
	}
}
