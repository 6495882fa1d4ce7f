package middleware

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/reconciler/internal/platform/fhir"
)

// BodyLimit rejects request bodies larger than maxBytes. Comparison requests
// carry two whole bundles, so the limit is configured rather than fixed.
// Oversized declared lengths get 413 with an OperationOutcome; bodies that
// exceed the limit while streaming fail the read with 413.
func BodyLimit(maxBytes int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			if req.ContentLength > maxBytes {
				o := fhir.NewOperationOutcome(fhir.IssueSeverityError, "too-costly",
					fmt.Sprintf("Request body exceeds maximum allowed size of %d bytes", maxBytes))
				return c.JSON(http.StatusRequestEntityTooLarge, o)
			}

			req.Body = &limitedReadCloser{ReadCloser: req.Body, remaining: maxBytes}
			return next(c)
		}
	}
}

// limitedReadCloser fails once more than the allowed bytes have been read,
// which catches bodies without or with a wrong Content-Length.
type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	exceeded  bool
}

func (r *limitedReadCloser) Read(p []byte) (n int, err error) {
	if r.exceeded {
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	// read one byte past the limit to detect overflow
	if int64(len(p)) > r.remaining+1 {
		p = p[:r.remaining+1]
	}

	n, err = r.ReadCloser.Read(p)
	r.remaining -= int64(n)

	if r.remaining < 0 {
		r.exceeded = true
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}
	return n, err
}
