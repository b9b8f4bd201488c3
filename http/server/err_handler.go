package server

import (
	"errors"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/rise-and-shine/fileupload/meta"
)

const (
	// codeRouterError is used when the router encounters an error.
	codeRouterError = "ROUTER_ERROR"
)

// WriteErrorResponse renders err as {"trace_id", "error"} with the status of
// its errx type and returns it as an errx value.
func WriteErrorResponse(c *fiber.Ctx, err error, hideDetails bool) error {
	e := toErrorX(err)
	traceID := c.UserContext().Value(meta.TraceID)

	c.Status(StatusOf(e.Type()))
	_ = c.JSON(map[string]any{
		"trace_id": traceID,
		"error":    buildErrorSchema(e, hideDetails),
	})

	return e
}

// customErrorHandler is the app-level fallback for errors no middleware
// rendered, e.g. unmatched routes.
func customErrorHandler(hideDetails bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if c.Response().StatusCode() >= fiber.StatusBadRequest {
			return nil
		}
		_ = WriteErrorResponse(c, err, hideDetails)
		return nil
	}
}

func buildErrorSchema(e errx.ErrorX, hideDetails bool) errorSchema {
	errResp := errorSchema{
		Code:    e.Code(),
		Message: userMessage(e),
		Cause:   e.Error(),
		Fields:  e.Fields(),
	}
	if !hideDetails {
		errResp.Trace = e.Trace()
		errResp.Details = e.Details()
	}
	return errResp
}

// userMessage picks the message shown to end users: internal failures stay
// generic, a single field error is shown as is.
func userMessage(e errx.ErrorX) string {
	if e.Type() == errx.T_Internal {
		return "Something went wrong, please try again later"
	}
	if fields := e.Fields(); len(fields) == 1 {
		return lo.Values(fields)[0]
	}
	return e.Error()
}

type errorSchema struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Cause   string            `json:"cause"`
	Trace   string            `json:"trace,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Details map[string]any    `json:"details,omitempty"`
}

var statusByType = map[errx.Type]int{
	errx.T_Authentication: fiber.StatusUnauthorized,
	errx.T_Forbidden:      fiber.StatusForbidden,
	errx.T_NotFound:       fiber.StatusNotFound,
	errx.T_Validation:     fiber.StatusBadRequest,
	errx.T_Conflict:       fiber.StatusConflict,
	errx.T_Throttling:     fiber.StatusTooManyRequests,
}

// StatusOf returns the HTTP status an errx type is rendered with.
// Unknown and internal types map to 500.
func StatusOf(t errx.Type) int {
	if status, ok := statusByType[t]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// toErrorX converts fiber routing errors (404 on unknown paths, 413 on large
// bodies, ...) into errx values; other errors pass through errx.AsErrorX.
func toErrorX(err error) errx.ErrorX {
	var fiberErr *fiber.Error
	if !errors.As(err, &fiberErr) {
		return errx.AsErrorX(err)
	}

	t := errx.T_Internal
	for typ, status := range statusByType {
		if status == fiberErr.Code {
			t = typ
			break
		}
	}
	if t == errx.T_Internal && fiberErr.Code >= 400 && fiberErr.Code < 500 {
		t = errx.T_Validation
	}

	return errx.AsErrorX(errx.New(
		fiberErr.Message,
		errx.WithCode(codeRouterError),
		errx.WithType(t),
		errx.WithDetails(errx.D{"status": fiberErr.Code}),
	))
}
