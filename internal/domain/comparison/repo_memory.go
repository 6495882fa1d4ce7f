package comparison

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/reconciler/pkg/pagination"
)

type memoryKey struct {
	run      uuid.UUID
	patient  string
	category string
}

// MemoryRepo keeps results in process memory. The server uses it when no
// database is configured, so results stay retrievable until restart.
type MemoryRepo struct {
	mu      sync.RWMutex
	results map[uuid.UUID]*Result
	byKey   map[memoryKey]uuid.UUID
	runs    map[uuid.UUID]*Run
	now     func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		results: make(map[uuid.UUID]*Result),
		byKey:   make(map[memoryKey]uuid.UUID),
		runs:    make(map[uuid.UUID]*Run),
		now:     time.Now,
	}
}

func (m *MemoryRepo) Save(_ context.Context, results []*Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, res := range results {
		key := memoryKey{res.RunID, res.PatientID, string(res.Category)}
		if prev, ok := m.byKey[key]; ok {
			res.ID = prev
			res.CreatedAt = m.results[prev].CreatedAt
		} else {
			if res.ID == uuid.Nil {
				res.ID = uuid.New()
			}
			res.CreatedAt = m.now()
		}
		stored := *res
		m.results[res.ID] = &stored
		m.byKey[key] = res.ID
	}
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *res
	return &out, nil
}

func (m *MemoryRepo) List(_ context.Context, limit, offset int) ([]*Result, int, error) {
	items := m.filter(func(*Result) bool { return true })
	return page(items, limit, offset), len(items), nil
}

func (m *MemoryRepo) ListByPatient(_ context.Context, patientID string, limit, offset int) ([]*Result, int, error) {
	items := m.filter(func(r *Result) bool { return r.PatientID == patientID })
	return page(items, limit, offset), len(items), nil
}

func (m *MemoryRepo) ListByRun(_ context.Context, runID uuid.UUID) ([]*Result, error) {
	items := m.filter(func(r *Result) bool { return r.RunID == runID })
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].PatientID != items[j].PatientID {
			return items[i].PatientID < items[j].PatientID
		}
		return items[i].Category < items[j].Category
	})
	return items, nil
}

func (m *MemoryRepo) SaveRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *run
	m.runs[run.ID] = &stored
	return nil
}

// Run returns a stored batch run.
func (m *MemoryRepo) Run(id uuid.UUID) (*Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, false
	}
	out := *run
	return &out, true
}

// filter returns copies of matching results, newest first.
func (m *MemoryRepo) filter(keep func(*Result) bool) []*Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var items []*Result
	for _, res := range m.results {
		if keep(res) {
			out := *res
			items = append(items, &out)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		if items[i].PatientID != items[j].PatientID {
			return items[i].PatientID < items[j].PatientID
		}
		return items[i].Category < items[j].Category
	})
	return items
}

func page(items []*Result, limit, offset int) []*Result {
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(items))
	return items[start:end]
}
