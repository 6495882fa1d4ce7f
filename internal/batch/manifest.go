package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ehr/reconciler/internal/domain/comparison"
	"github.com/ehr/reconciler/internal/reconcile"
)

// ErrInvalidManifest is returned for manifests that cannot be run.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest lists the patients of one batch.
//
//	now: 2024-06-01
//	categories: [allergies, conditions]
//	patients:
//	  - patient_id: p1
//	    source_a: a/p1.json
//	    source_b: b/p1.json
type Manifest struct {
	// Now anchors the last-year window for every patient. Empty means the
	// moment the batch starts.
	Now        string         `yaml:"now"`
	Categories []string       `yaml:"categories"`
	Patients   []PatientEntry `yaml:"patients"`

	anchor     time.Time
	categories []reconcile.Category
}

// PatientEntry names the two bundle files of one patient. Relative paths
// resolve against the manifest's directory.
type PatientEntry struct {
	PatientID string `yaml:"patient_id"`
	SourceA   string `yaml:"source_a"`
	SourceB   string `yaml:"source_b"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return ParseManifest(f, filepath.Dir(path))
}

// ParseManifest decodes a manifest and resolves its paths against baseDir.
func ParseManifest(r io.Reader, baseDir string) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	for i := range m.Patients {
		m.Patients[i].SourceA = resolve(baseDir, m.Patients[i].SourceA)
		m.Patients[i].SourceB = resolve(baseDir, m.Patients[i].SourceB)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Patients) == 0 {
		return fmt.Errorf("%w: no patients", ErrInvalidManifest)
	}
	anchor, err := comparison.ParseAnchor(m.Now)
	if err != nil {
		return fmt.Errorf("%w: now: %v", ErrInvalidManifest, err)
	}
	m.anchor = anchor
	if m.categories, err = comparison.ParseCategories(m.Categories); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	seen := map[string]bool{}
	for i, p := range m.Patients {
		switch {
		case p.PatientID == "":
			return fmt.Errorf("%w: patient %d has no patient_id", ErrInvalidManifest, i+1)
		case seen[p.PatientID]:
			return fmt.Errorf("%w: patient %s listed twice", ErrInvalidManifest, p.PatientID)
		case p.SourceA == "" || p.SourceB == "":
			return fmt.Errorf("%w: patient %s needs source_a and source_b", ErrInvalidManifest, p.PatientID)
		}
		seen[p.PatientID] = true
	}
	return nil
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
