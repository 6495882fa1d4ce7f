package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/reconciler/internal/domain/comparison"
	"github.com/ehr/reconciler/internal/platform/fhir"
	"github.com/ehr/reconciler/internal/reconcile"
)

const manifestYAML = `
now: 2024-06-01
categories: [allergies]
patients:
  - patient_id: p1
    source_a: a/p1.json
    source_b: b/p1.json
  - patient_id: p2
    source_a: /abs/a/p2.json
    source_b: b/p2.json
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest(strings.NewReader(manifestYAML), "/data")
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if len(m.Patients) != 2 {
		t.Fatalf("expected 2 patients, got %d", len(m.Patients))
	}
	if m.Patients[0].SourceA != filepath.Join("/data", "a/p1.json") {
		t.Errorf("relative path not resolved: %s", m.Patients[0].SourceA)
	}
	if m.Patients[1].SourceA != "/abs/a/p2.json" {
		t.Errorf("absolute path changed: %s", m.Patients[1].SourceA)
	}
	if !m.anchor.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected anchor %v", m.anchor)
	}
	if len(m.categories) != 1 || m.categories[0] != reconcile.CategoryAllergies {
		t.Errorf("unexpected categories %v", m.categories)
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", "patients: []"},
		{"bad anchor", "now: someday\npatients: [{patient_id: p1, source_a: a, source_b: b}]"},
		{"bad category", "categories: [xrays]\npatients: [{patient_id: p1, source_a: a, source_b: b}]"},
		{"missing id", "patients: [{source_a: a, source_b: b}]"},
		{"duplicate", "patients: [{patient_id: p1, source_a: a, source_b: b}, {patient_id: p1, source_a: a, source_b: b}]"},
		{"missing source", "patients: [{patient_id: p1, source_a: a}]"},
		{"unknown field", "patients: [{patient_id: p1, source_a: a, source_b: b, source_c: c}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseManifest(strings.NewReader(tt.doc), ""); !errors.Is(err, ErrInvalidManifest) {
				t.Errorf("expected ErrInvalidManifest, got %v", err)
			}
		})
	}
}

func TestLoadManifestAndReadBundle(t *testing.T) {
	dir := t.TempDir()
	bundle := `{"resourceType":"Bundle","entry":[{"resource":{"resourceType":"Condition","id":"c1"}}]}`
	if err := os.WriteFile(filepath.Join(dir, "a.json"), []byte(bundle), 0o600); err != nil {
		t.Fatal(err)
	}
	doc := "patients: [{patient_id: p1, source_a: a.json, source_b: a.json}]"
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(filepath.Join(dir, "manifest.yaml"))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	resources, err := ReadBundleFile(m.Patients[0].SourceA)
	if err != nil {
		t.Fatalf("ReadBundleFile: %v", err)
	}
	if len(resources) != 1 {
		t.Errorf("expected 1 resource, got %d", len(resources))
	}
	if _, err := ReadBundleFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

type fakeComparer struct {
	mu       sync.Mutex
	inputs   []comparison.PatientInput
	runs     []comparison.Run
	inFlight int32
	peak     int32
	fail     map[string]bool
}

func (f *fakeComparer) ComparePatient(ctx context.Context, in comparison.PatientInput) (*comparison.PatientComparison, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	if f.fail[in.PatientID] {
		return nil, errors.New("boom")
	}
	return &comparison.PatientComparison{PatientID: in.PatientID, RunID: in.RunID, Now: in.Now}, nil
}

func (f *fakeComparer) RecordRun(_ context.Context, run *comparison.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

func testManifest(ids ...string) *Manifest {
	m := &Manifest{}
	for _, id := range ids {
		m.Patients = append(m.Patients, PatientEntry{PatientID: id, SourceA: id + "-a", SourceB: id + "-b"})
	}
	return m
}

func newTestRunner(cmp Comparer, width int, missing string) *Runner {
	r := NewRunner(cmp, width, zerolog.Nop())
	r.read = func(path string) ([]fhir.Resource, error) {
		if path == missing {
			return nil, os.ErrNotExist
		}
		return nil, nil
	}
	return r
}

func TestRunner_Run(t *testing.T) {
	cmp := &fakeComparer{fail: map[string]bool{"p3": true}}
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRunner(cmp, 2, "p5-b").WithClock(func() time.Time { return fixed })

	res, err := r.Run(context.Background(), testManifest("p1", "p2", "p3", "p4", "p5", "p6"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var got []string
	for _, c := range res.Comparisons {
		got = append(got, c.PatientID)
	}
	if strings.Join(got, ",") != "p1,p2,p4,p6" {
		t.Errorf("comparisons out of manifest order: %v", got)
	}
	if len(res.Failures) != 2 || res.Failures[0].PatientID != "p3" || res.Failures[1].PatientID != "p5" {
		t.Errorf("unexpected failures %+v", res.Failures)
	}

	for _, in := range cmp.inputs {
		if !in.Now.Equal(fixed) || in.RunID != res.RunID {
			t.Errorf("patient %s got anchor %v run %s", in.PatientID, in.Now, in.RunID)
		}
	}
	if peak := atomic.LoadInt32(&cmp.peak); peak > 2 {
		t.Errorf("width 2 exceeded: peak %d", peak)
	}
	if len(cmp.runs) != 2 || cmp.runs[1].Failures != 2 || cmp.runs[1].FinishedAt == nil {
		t.Errorf("unexpected run bookkeeping %+v", cmp.runs)
	}
}

func TestRunner_ManifestAnchorWins(t *testing.T) {
	cmp := &fakeComparer{}
	m, err := ParseManifest(strings.NewReader(manifestYAML), "")
	if err != nil {
		t.Fatal(err)
	}
	res, err := newTestRunner(cmp, 4, "").Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !res.Now.Equal(want) {
		t.Errorf("expected manifest anchor, got %v", res.Now)
	}
	for _, in := range cmp.inputs {
		if len(in.Categories) != 1 {
			t.Errorf("manifest categories not passed: %v", in.Categories)
		}
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestRunner(&fakeComparer{}, 1, "").Run(ctx, testManifest("p1", "p2"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
