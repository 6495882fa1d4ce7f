package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/reconciler/internal/platform/fhir"
)

// Recovery turns a panic in a handler into a 500 OperationOutcome that
// carries the request id, so a failed comparison can be matched with its log
// line. A response that was already started is left to the error handler.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				rid, _ := c.Get(RequestIDKey).(string)
				logger.Error().
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")

				if c.Response().Committed {
					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
					return
				}
				msg := "internal server error"
				if rid != "" {
					msg += " (request " + rid + ")"
				}
				o := fhir.NewOperationOutcome(fhir.IssueSeverityFatal, fhir.IssueTypeException, msg)
				err = c.JSON(http.StatusInternalServerError, o)
			}()
			return next(c)
		}
	}
}
