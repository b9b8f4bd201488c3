package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/fileupload/http/server"
	"github.com/rise-and-shine/fileupload/meta"
	"github.com/rise-and-shine/fileupload/observability/tracing"
)

// HeaderTraceID carries a caller supplied trace id, echoed on the response.
const HeaderTraceID = "X-Trace-ID"

// NewMetaInjectMW creates a middleware that injects metadata into the request context.
//
// The trace id is taken from the X-Trace-ID header, else from the request
// span, else generated. It is echoed back on the response. Service name and
// version come from meta.SetServiceInfo.
func NewMetaInjectMW() server.Middleware {
	return server.Middleware{
		Priority: 700,
		Handler: func(c *fiber.Ctx) error {
			traceID := c.Get(HeaderTraceID)
			if traceID == "" {
				traceID = tracing.TraceID(c.UserContext())
			}
			c.Set(HeaderTraceID, traceID)

			ctx := meta.ServiceContext(c.UserContext())
			ctx = meta.InjectMetaToContext(ctx, map[meta.ContextKey]string{
				meta.TraceID:   traceID,
				meta.IPAddress: c.IP(),
				meta.UserAgent: c.Get(fiber.HeaderUserAgent),
			})
			c.SetUserContext(ctx)

			return c.Next()
		},
	}
}
