package comparison

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/reconciler/internal/extract"
	"github.com/ehr/reconciler/internal/platform/metrics"
	"github.com/ehr/reconciler/internal/reconcile"
	"github.com/ehr/reconciler/internal/report"
)

// ErrInvalidInput wraps request problems the caller can fix.
var ErrInvalidInput = errors.New("invalid comparison input")

// ErrNoRepository is returned by read operations when persistence is off.
var ErrNoRepository = errors.New("result storage is not configured")

// Service compares patients and stores the outcome.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a comparison service. repo may be nil, in which case
// results are returned but not stored.
func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithClock replaces the clock used when an input carries no anchor.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Persistent reports whether results are stored.
func (s *Service) Persistent() bool { return s.repo != nil }

// ComparePatient extracts both bundles, classifies each requested category
// and renders the patient report. Cancellation is checked between
// categories.
func (s *Service) ComparePatient(ctx context.Context, in PatientInput) (*PatientComparison, error) {
	start := time.Now()
	out, err := s.compare(ctx, in)
	switch {
	case err == nil:
		metrics.RecordComparison(metrics.OutcomeOK, time.Since(start))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.RecordComparison(metrics.OutcomeCancelled, time.Since(start))
	default:
		metrics.RecordComparison(metrics.OutcomeFailed, time.Since(start))
	}
	return out, err
}

func (s *Service) compare(ctx context.Context, in PatientInput) (*PatientComparison, error) {
	if in.PatientID == "" {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	categories := in.Categories
	if len(categories) == 0 {
		categories = reconcile.Categories()
	}
	now := in.Now
	if now.IsZero() {
		now = s.now()
	}
	runID := in.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}

	log := s.logger.With().
		Str("patient_id", in.PatientID).
		Str("run_id", runID.String()).
		Logger()

	recordsA := extract.ExtractAll(reconcile.SourceA, in.A)
	recordsB := extract.ExtractAll(reconcile.SourceB, in.B)

	out := &PatientComparison{
		RunID:     runID,
		PatientID: in.PatientID,
		Now:       now,
		Unrouted: Unrouted{
			A: extract.Unrouted(in.A),
			B: extract.Unrouted(in.B),
		},
	}
	if len(out.Unrouted.A) > 0 || len(out.Unrouted.B) > 0 {
		log.Debug().Strs("source_a", out.Unrouted.A).Strs("source_b", out.Unrouted.B).
			Msg("resource types outside every category")
	}

	for _, c := range categories {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("compare %s: %w", in.PatientID, err)
		}
		summary, err := reconcile.ClassifyCategory(c, recordsA[c], recordsB[c], now)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		out.Summaries = append(out.Summaries, summary)

		metrics.RecordClassified(string(c), string(reconcile.SourceA),
			summary.A.Count-summary.A.UniqueCount, summary.A.UniqueCount)
		metrics.RecordClassified(string(c), string(reconcile.SourceB),
			summary.B.Count-summary.B.UniqueCount, summary.B.UniqueCount)

		if summary.Asymmetric() {
			out.Asymmetric = append(out.Asymmetric, c)
			metrics.RecordAsymmetry(string(c))
			log.Warn().
				Str("category", string(c)).
				Int("common", summary.Common.Count).
				Int("common_b", summary.B.Count-summary.B.UniqueCount).
				Msg("common count differs between sources")
		}
	}

	out.Markdown = report.PatientMarkdown(in.PatientID, report.Sections(out.Summaries))

	if s.repo != nil {
		results := make([]*Result, 0, len(out.Summaries))
		for _, summary := range out.Summaries {
			results = append(results, NewResult(runID, in.PatientID, summary))
		}
		err := s.repo.Save(ctx, results)
		metrics.RecordStored(err == nil)
		if err != nil {
			return nil, fmt.Errorf("store comparison of %s: %w", in.PatientID, err)
		}
		for _, r := range results {
			out.ResultIDs = append(out.ResultIDs, r.ID)
		}
	}

	log.Info().
		Int("categories", len(out.Summaries)).
		Int("asymmetric", len(out.Asymmetric)).
		Msg("patient compared")
	return out, nil
}

// GetResult returns one stored category result.
func (s *Service) GetResult(ctx context.Context, id uuid.UUID) (*Result, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	return s.repo.GetByID(ctx, id)
}

// ListResults pages through stored results, optionally for one patient.
func (s *Service) ListResults(ctx context.Context, patientID string, limit, offset int) ([]*Result, int, error) {
	if s.repo == nil {
		return nil, 0, ErrNoRepository
	}
	if patientID != "" {
		return s.repo.ListByPatient(ctx, patientID, limit, offset)
	}
	return s.repo.List(ctx, limit, offset)
}

// RunResults returns every result stored under runID.
func (s *Service) RunResults(ctx context.Context, runID uuid.UUID) ([]*Result, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	return s.repo.ListByRun(ctx, runID)
}

// RecordRun stores batch bookkeeping. It is a no-op without storage.
func (s *Service) RecordRun(ctx context.Context, run *Run) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.SaveRun(ctx, run)
}

// ParseAnchor reads a "now" anchor in any layout a record date accepts.
// Empty text yields the zero time.
func ParseAnchor(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, ok := reconcile.ParseDate(raw).Time()
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unparseable anchor %q", ErrInvalidInput, raw)
	}
	return t, nil
}

// ParseCategories resolves category names. No names means every category.
func ParseCategories(names []string) ([]reconcile.Category, error) {
	var out []reconcile.Category
	for _, name := range names {
		c, err := reconcile.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		out = append(out, c)
	}
	return out, nil
}
