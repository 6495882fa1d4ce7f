package fhir

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// OperationOutcome severity levels per FHIR R4.
const (
	IssueSeverityFatal       = "fatal"
	IssueSeverityError       = "error"
	IssueSeverityWarning     = "warning"
	IssueSeverityInformation = "information"
)

// OperationOutcome issue type codes used by the API.
const (
	IssueTypeInvalid      = "invalid"
	IssueTypeStructure    = "structure"
	IssueTypeRequired     = "required"
	IssueTypeValue        = "value"
	IssueTypeNotFound     = "not-found"
	IssueTypeProcessing   = "processing"
	IssueTypeNotSupported = "not-supported"
	IssueTypeException    = "exception"
)

type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string           `json:"severity"`
	Code        string           `json:"code"`
	Details     *CodeableConcept `json:"details,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
	Expression  []string         `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{Severity: severity, Code: code, Diagnostics: diagnostics},
		},
	}
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeProcessing, diagnostics)
}

func NotFoundOutcome(kind, id string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, fmt.Sprintf("%s/%s not found", kind, id))
}

// ValidationOutcome reports an invalid field of a request document.
func ValidationOutcome(field, message string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    IssueSeverityError,
				Code:        IssueTypeInvalid,
				Diagnostics: fmt.Sprintf("%s: %s", field, message),
				Expression:  []string{field},
			},
		},
	}
}

// WarningOutcome collects non-fatal notes, such as bundle entries that were
// skipped during a comparison.
func WarningOutcome(notes []string) *OperationOutcome {
	o := &OperationOutcome{ResourceType: "OperationOutcome", Issue: []OperationOutcomeIssue{}}
	for _, n := range notes {
		o.Issue = append(o.Issue, OperationOutcomeIssue{
			Severity:    IssueSeverityWarning,
			Code:        IssueTypeProcessing,
			Diagnostics: n,
		})
	}
	return o
}

// HasErrors returns true if the outcome contains any error or fatal issues.
func (o *OperationOutcome) HasErrors() bool {
	for _, issue := range o.Issue {
		if issue.Severity == IssueSeverityError || issue.Severity == IssueSeverityFatal {
			return true
		}
	}
	return false
}

// HTTPStatus maps the first issue of the outcome to a response status.
func (o *OperationOutcome) HTTPStatus() int {
	if len(o.Issue) == 0 {
		return http.StatusOK
	}
	switch o.Issue[0].Code {
	case IssueTypeNotFound:
		return http.StatusNotFound
	case IssueTypeInvalid, IssueTypeStructure, IssueTypeRequired, IssueTypeValue:
		return http.StatusBadRequest
	case IssueTypeNotSupported:
		return http.StatusUnprocessableEntity
	case IssueTypeException:
		return http.StatusInternalServerError
	}
	if o.HasErrors() {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}

// Respond writes the outcome as the response body with its mapped status.
func Respond(c echo.Context, o *OperationOutcome) error {
	return c.JSON(o.HTTPStatus(), o)
}
