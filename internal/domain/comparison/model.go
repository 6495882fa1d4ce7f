package comparison

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/reconciler/internal/platform/fhir"
	"github.com/ehr/reconciler/internal/reconcile"
	"github.com/ehr/reconciler/internal/report"
)

// PatientInput is one patient's pair of source bundles, already decoded.
type PatientInput struct {
	PatientID string
	// RunID groups the results of one batch. Zero means a fresh id.
	RunID uuid.UUID
	// Now anchors the last-year window. Zero means the service clock.
	Now        time.Time
	A          []fhir.Resource
	B          []fhir.Resource
	Categories []reconcile.Category
}

// Unrouted lists, per source, resource types that fit no category.
type Unrouted struct {
	A []string `json:"a,omitempty"`
	B []string `json:"b,omitempty"`
}

// PatientComparison is the outcome of comparing every requested category for
// one patient.
type PatientComparison struct {
	RunID      uuid.UUID                         `json:"run_id"`
	PatientID  string                            `json:"patient_id"`
	Now        time.Time                         `json:"now"`
	Summaries  []reconcile.ReconciliationSummary `json:"summaries"`
	Markdown   string                            `json:"markdown"`
	Unrouted   Unrouted                          `json:"unrouted"`
	Asymmetric []reconcile.Category              `json:"asymmetric,omitempty"`
	ResultIDs  []uuid.UUID                       `json:"result_ids,omitempty"`
}

// Warnings reports the resource types that no category took, or nil when
// every resource was routed.
func (p *PatientComparison) Warnings() *fhir.OperationOutcome {
	var notes []string
	for _, side := range []struct {
		label string
		types []string
	}{{"bundle_a", p.Unrouted.A}, {"bundle_b", p.Unrouted.B}} {
		for _, t := range side.types {
			notes = append(notes, fmt.Sprintf("%s: %s resources are not compared", side.label, t))
		}
	}
	if len(notes) == 0 {
		return nil
	}
	return fhir.WarningOutcome(notes)
}

// Rows flattens the comparison for tabular export.
func (p *PatientComparison) Rows() []report.Row {
	rows := make([]report.Row, 0, len(p.Summaries))
	for _, s := range p.Summaries {
		rows = append(rows, report.NewRow(p.PatientID, s))
	}
	return rows
}

// Result is the stored form of one category of a PatientComparison.
type Result struct {
	ID    uuid.UUID `json:"id"`
	RunID uuid.UUID `json:"run_id"`
	report.Row
	Anchor     time.Time                       `json:"anchor"`
	Asymmetric bool                            `json:"asymmetric"`
	Summary    reconcile.ReconciliationSummary `json:"summary"`
	Markdown   string                          `json:"markdown"`
	CreatedAt  time.Time                       `json:"created_at"`
}

// NewResult builds the stored form of s.
func NewResult(runID uuid.UUID, patientID string, s reconcile.ReconciliationSummary) *Result {
	return &Result{
		ID:         uuid.New(),
		RunID:      runID,
		Row:        report.NewRow(patientID, s),
		Anchor:     s.Now,
		Asymmetric: s.Asymmetric(),
		Summary:    s,
		Markdown:   report.Markdown(s, s.Category.Label()),
	}
}

// Run records one batch execution.
type Run struct {
	ID         uuid.UUID  `json:"id"`
	Anchor     time.Time  `json:"anchor"`
	Patients   int        `json:"patients"`
	Failures   int        `json:"failures"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
