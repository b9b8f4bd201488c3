package middleware

import (
	"runtime"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/fileupload/http/server"
	"github.com/rise-and-shine/fileupload/observability/logger"
)

const (
	codePanicRecovered = "PANIC_RECOVERED"
	stackTraceSize     = 4096
)

// NewRecoveryMW creates a middleware that recovers from panics in the request
// handling chain and converts them to internal errors for the error handler.
func NewRecoveryMW(base logger.Logger) server.Middleware {
	base = base.Named("middleware.recovery")

	return server.Middleware{
		Priority: 1000,
		Handler: func(c *fiber.Ctx) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				stackTrace := make([]byte, stackTraceSize)
				stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]

				err = errx.New(
					"panic recovered",
					errx.WithCode(codePanicRecovered),
					errx.WithType(errx.T_Internal),
					errx.WithDetails(errx.D{
						"stack_trace":   string(stackTrace),
						"panic_message": r,
					}),
				)
				base.WithContext(c.UserContext()).Errorx(err)
			}()

			return c.Next()
		},
	}
}
