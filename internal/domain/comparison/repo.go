package comparison

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a stored result does not exist.
var ErrNotFound = errors.New("comparison result not found")

// Repository stores comparison results and batch runs.
type Repository interface {
	// Save stores every result atomically. Saving the same (run, patient,
	// category) twice replaces the earlier row.
	Save(ctx context.Context, results []*Result) error
	GetByID(ctx context.Context, id uuid.UUID) (*Result, error)
	List(ctx context.Context, limit, offset int) ([]*Result, int, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Result, int, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]*Result, error)
	SaveRun(ctx context.Context, run *Run) error
}
