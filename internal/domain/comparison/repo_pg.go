package comparison

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/reconciler/internal/report"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG stores results in the comparison_result table of the pool's
// search path.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const resultCols = `id, run_id, patient_id, category, anchor,
	count_a, count_b, last_year_a, last_year_b, unique_a, unique_b, common,
	asymmetric, summary, markdown, created_at`

func scanResult(row pgx.Row) (*Result, error) {
	var r Result
	var summary []byte
	err := row.Scan(&r.ID, &r.RunID, &r.PatientID, &r.Category, &r.Anchor,
		&r.CountA, &r.CountB, &r.LastYearA, &r.LastYearB, &r.UniqueA, &r.UniqueB, &r.Common,
		&r.Asymmetric, &summary, &r.Markdown, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(summary, &r.Summary); err != nil {
		return nil, fmt.Errorf("decode summary of %s: %w", r.ID, err)
	}
	r.Winner = report.Winner(r.CountA, r.CountB)
	r.LastYearWinner = report.Winner(r.LastYearA, r.LastYearB)
	r.UniqueWinner = report.Winner(r.UniqueA, r.UniqueB)
	return &r, nil
}

func (r *repoPG) Save(ctx context.Context, results []*Result) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, res := range results {
		if err := insertResult(ctx, tx, res); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertResult(ctx context.Context, q queryable, res *Result) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	err = q.QueryRow(ctx, `
		INSERT INTO comparison_result (id, run_id, patient_id, category, anchor,
			count_a, count_b, last_year_a, last_year_b, unique_a, unique_b, common,
			asymmetric, summary, markdown)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (run_id, patient_id, category) DO UPDATE SET
			anchor = EXCLUDED.anchor,
			count_a = EXCLUDED.count_a, count_b = EXCLUDED.count_b,
			last_year_a = EXCLUDED.last_year_a, last_year_b = EXCLUDED.last_year_b,
			unique_a = EXCLUDED.unique_a, unique_b = EXCLUDED.unique_b,
			common = EXCLUDED.common, asymmetric = EXCLUDED.asymmetric,
			summary = EXCLUDED.summary, markdown = EXCLUDED.markdown
		RETURNING id, created_at`,
		res.ID, res.RunID, res.PatientID, string(res.Category), res.Anchor,
		res.CountA, res.CountB, res.LastYearA, res.LastYearB, res.UniqueA, res.UniqueB, res.Common,
		res.Asymmetric, summary, res.Markdown).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert result %s/%s: %w", res.PatientID, res.Category, err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Result, error) {
	return scanResult(r.pool.QueryRow(ctx, `SELECT `+resultCols+` FROM comparison_result WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Result, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comparison_result`).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, `SELECT `+resultCols+` FROM comparison_result
		ORDER BY created_at DESC, patient_id, category LIMIT $1 OFFSET $2`, limit, offset)
	return items, total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Result, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comparison_result WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, `SELECT `+resultCols+` FROM comparison_result WHERE patient_id = $1
		ORDER BY created_at DESC, category LIMIT $2 OFFSET $3`, patientID, limit, offset)
	return items, total, err
}

func (r *repoPG) ListByRun(ctx context.Context, runID uuid.UUID) ([]*Result, error) {
	return r.query(ctx, `SELECT `+resultCols+` FROM comparison_result WHERE run_id = $1
		ORDER BY patient_id, category`, runID)
}

func (r *repoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Result, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, res)
	}
	return items, rows.Err()
}

func (r *repoPG) SaveRun(ctx context.Context, run *Run) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO comparison_run (id, anchor, patients, failures, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			patients = EXCLUDED.patients,
			failures = EXCLUDED.failures,
			finished_at = EXCLUDED.finished_at`,
		run.ID, run.Anchor, run.Patients, run.Failures, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}
