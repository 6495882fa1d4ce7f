package comparison

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/reconciler/internal/platform/auth"
	"github.com/ehr/reconciler/internal/platform/fhir"
	"github.com/ehr/reconciler/internal/reconcile"
	"github.com/ehr/reconciler/pkg/pagination"
)

// Handler provides HTTP handlers for comparisons.
type Handler struct {
	svc       *Service
	authorize bool
}

// NewHandler creates a comparison handler. With authorize set, routes
// require the reader or writer role from the bearer token.
func NewHandler(svc *Service, authorize bool) *Handler {
	return &Handler{svc: svc, authorize: authorize}
}

// RegisterRoutes registers the comparison API under api.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	var readMW, writeMW []echo.MiddlewareFunc
	if h.authorize {
		readMW = append(readMW, auth.RequireRole(auth.RoleReader, auth.RoleWriter))
		writeMW = append(writeMW, auth.RequireRole(auth.RoleWriter))
	}

	read := api.Group("", readMW...)
	read.GET("/comparisons", h.ListComparisons)
	read.GET("/comparisons/:id", h.GetComparison)
	read.GET("/policies", h.ListPolicies)

	write := api.Group("", writeMW...)
	write.POST("/comparisons", h.CreateComparison)
}

// CompareRequest is the body of POST /comparisons. Both bundles are FHIR
// R4 Bundle resources.
type CompareRequest struct {
	PatientID  string          `json:"patient_id"`
	Now        string          `json:"now,omitempty"`
	Categories []string        `json:"categories,omitempty"`
	BundleA    json.RawMessage `json:"bundle_a"`
	BundleB    json.RawMessage `json:"bundle_b"`
}

func (h *Handler) CreateComparison(c echo.Context) error {
	var req CompareRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == "" {
		return fhir.Respond(c, fhir.ValidationOutcome("patient_id", "patient_id is required"))
	}
	now, err := ParseAnchor(req.Now)
	if err != nil {
		return fhir.Respond(c, fhir.ValidationOutcome("now", err.Error()))
	}
	categories, err := ParseCategories(req.Categories)
	if err != nil {
		return fhir.Respond(c, fhir.ValidationOutcome("categories", err.Error()))
	}

	in := PatientInput{PatientID: req.PatientID, Now: now, Categories: categories}
	for _, side := range []struct {
		field string
		raw   json.RawMessage
		dst   *[]fhir.Resource
	}{
		{"bundle_a", req.BundleA, &in.A},
		{"bundle_b", req.BundleB, &in.B},
	} {
		if len(side.raw) == 0 {
			return fhir.Respond(c, fhir.ValidationOutcome(side.field, side.field+" is required"))
		}
		bundle, err := fhir.DecodeBundle(bytes.NewReader(side.raw))
		if err != nil {
			return fhir.Respond(c, fhir.ValidationOutcome(side.field, err.Error()))
		}
		*side.dst = bundle.Resources()
	}

	out, err := h.svc.ComparePatient(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}

	if c.QueryParam("format") == "markdown" {
		return c.Blob(http.StatusCreated, "text/markdown; charset=utf-8", []byte(out.Markdown))
	}
	return c.JSON(http.StatusCreated, compareResponse{PatientComparison: out, Outcome: out.Warnings()})
}

type compareResponse struct {
	*PatientComparison
	Outcome *fhir.OperationOutcome `json:"outcome,omitempty"`
}

func (h *Handler) GetComparison(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	res, err := h.svc.GetResult(c.Request().Context(), id)
	if err != nil {
		return h.readError(c, err, id.String())
	}
	if c.QueryParam("format") == "markdown" {
		return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(res.Markdown))
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListComparisons(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	if runID := c.QueryParam("run_id"); runID != "" {
		id, err := uuid.Parse(runID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid run_id")
		}
		items, err := h.svc.RunResults(ctx, id)
		if err != nil {
			return h.readError(c, err, runID)
		}
		start, end := pg.Window(len(items))
		resp := pagination.NewResponse(items[start:end], len(items), pg)
		return c.JSON(http.StatusOK, resp.WithLinks(c.Path(), c.QueryParams()))
	}

	items, total, err := h.svc.ListResults(ctx, c.QueryParam("patient_id"), pg.Limit, pg.Offset)
	if err != nil {
		return h.readError(c, err, "")
	}
	resp := pagination.NewResponse(items, total, pg)
	return c.JSON(http.StatusOK, resp.WithLinks(c.Path(), c.QueryParams()))
}

func (h *Handler) ListPolicies(c echo.Context) error {
	return c.JSON(http.StatusOK, reconcile.Policies())
}

func (h *Handler) readError(c echo.Context, err error, id string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fhir.Respond(c, fhir.NotFoundOutcome("ComparisonResult", id))
	case errors.Is(err, ErrNoRepository):
		return echo.NewHTTPError(http.StatusNotImplemented, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
