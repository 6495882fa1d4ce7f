// Package batch compares many patients concurrently from a manifest.
package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/reconciler/internal/domain/comparison"
	"github.com/ehr/reconciler/internal/platform/fhir"
)

// Comparer is the part of the comparison service the runner drives.
type Comparer interface {
	ComparePatient(ctx context.Context, in comparison.PatientInput) (*comparison.PatientComparison, error)
	RecordRun(ctx context.Context, run *comparison.Run) error
}

// Failure is a patient that could not be compared.
type Failure struct {
	PatientID string `json:"patient_id"`
	Err       string `json:"error"`
}

// Result collects a finished batch. Comparisons keep manifest order.
type Result struct {
	RunID       uuid.UUID                       `json:"run_id"`
	Now         time.Time                       `json:"now"`
	Comparisons []*comparison.PatientComparison `json:"comparisons"`
	Failures    []Failure                       `json:"failures,omitempty"`
}

// Runner compares the patients of a manifest with bounded concurrency.
type Runner struct {
	cmp    Comparer
	width  int
	logger zerolog.Logger
	now    func() time.Time
	read   func(path string) ([]fhir.Resource, error)
}

// NewRunner creates a runner that compares at most width patients at once.
func NewRunner(cmp Comparer, width int, logger zerolog.Logger) *Runner {
	if width < 1 {
		width = 1
	}
	return &Runner{
		cmp:    cmp,
		width:  width,
		logger: logger,
		now:    time.Now,
		read:   ReadBundleFile,
	}
}

// WithClock replaces the clock used when the manifest carries no anchor.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run compares every patient of m. A patient whose bundles cannot be read
// or compared is recorded in Result.Failures and the batch continues. Run
// only fails when ctx ends.
func (r *Runner) Run(ctx context.Context, m *Manifest) (*Result, error) {
	started := r.now()
	anchor := m.anchor
	if anchor.IsZero() {
		anchor = started
	}
	res := &Result{RunID: uuid.New(), Now: anchor}

	log := r.logger.With().Str("run_id", res.RunID.String()).Logger()
	log.Info().
		Int("patients", len(m.Patients)).
		Int("width", r.width).
		Time("now", anchor).
		Msg("batch started")

	run := &comparison.Run{ID: res.RunID, Anchor: anchor, Patients: len(m.Patients), StartedAt: started}
	if err := r.cmp.RecordRun(ctx, run); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}

	slots := make([]*comparison.PatientComparison, len(m.Patients))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.width)
	for i, p := range m.Patients {
		if gctx.Err() != nil {
			break
		}
		i, p := i, p
		g.Go(func() error {
			out, err := r.comparePatient(gctx, res.RunID, anchor, m, p)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error().Err(err).Str("patient_id", p.PatientID).Msg("patient comparison failed")
				mu.Lock()
				res.Failures = append(res.Failures, Failure{PatientID: p.PatientID, Err: err.Error()})
				mu.Unlock()
				return nil
			}
			slots[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch %s: %w", res.RunID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch %s: %w", res.RunID, err)
	}

	for _, out := range slots {
		if out != nil {
			res.Comparisons = append(res.Comparisons, out)
		}
	}
	sortFailures(res.Failures, m)

	finished := r.now()
	run.Failures = len(res.Failures)
	run.FinishedAt = &finished
	if err := r.cmp.RecordRun(ctx, run); err != nil {
		log.Error().Err(err).Msg("record run completion")
	}

	log.Info().
		Int("compared", len(res.Comparisons)).
		Int("failed", len(res.Failures)).
		Dur("elapsed", time.Since(started)).
		Msg("batch finished")
	return res, nil
}

func (r *Runner) comparePatient(ctx context.Context, runID uuid.UUID, anchor time.Time, m *Manifest, p PatientEntry) (*comparison.PatientComparison, error) {
	a, err := r.read(p.SourceA)
	if err != nil {
		return nil, fmt.Errorf("source A: %w", err)
	}
	b, err := r.read(p.SourceB)
	if err != nil {
		return nil, fmt.Errorf("source B: %w", err)
	}
	return r.cmp.ComparePatient(ctx, comparison.PatientInput{
		PatientID:  p.PatientID,
		RunID:      runID,
		Now:        anchor,
		A:          a,
		B:          b,
		Categories: m.categories,
	})
}

// sortFailures orders failures as the patients appear in the manifest.
func sortFailures(failures []Failure, m *Manifest) {
	pos := make(map[string]int, len(m.Patients))
	for i, p := range m.Patients {
		pos[p.PatientID] = i
	}
	sort.Slice(failures, func(i, j int) bool {
		return pos[failures[i].PatientID] < pos[failures[j].PatientID]
	})
}
