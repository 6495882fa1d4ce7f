package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/reconciler/internal/platform/fhir"
)

// RequestTimeout puts a deadline on the request context. Comparison checks
// the context between categories, so a request that runs out of time stops
// early and the handler error is turned into 504.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				o := fhir.NewOperationOutcome(fhir.IssueSeverityError, "timeout",
					"Request processing exceeded the allowed time limit")
				return c.JSON(http.StatusGatewayTimeout, o)
			}
			return err
		}
	}
}
