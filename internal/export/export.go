// Package export writes comparison outcomes to disk: one CSV of summary
// rows across patients and one Markdown report per patient.
package export

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ehr/reconciler/internal/domain/comparison"
	"github.com/ehr/reconciler/internal/report"
)

const (
	SummaryFile = "summary.csv"
	PatientsDir = "patients"
)

// Files lists what WriteAll produced.
type Files struct {
	Summary  string   `json:"summary"`
	Patients []string `json:"patients"`
}

// WriteCSV writes rows with the report.Columns header.
func WriteCSV(w io.Writer, rows []report.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(report.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return fmt.Errorf("write row %s/%s: %w", r.PatientID, r.Category, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAll writes the summary CSV and every patient's Markdown under dir,
// creating it when needed.
func WriteAll(dir string, comparisons []*comparison.PatientComparison) (*Files, error) {
	patientsDir := filepath.Join(dir, PatientsDir)
	if err := os.MkdirAll(patientsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var rows []report.Row
	for _, c := range comparisons {
		rows = append(rows, c.Rows()...)
	}
	files := &Files{Summary: filepath.Join(dir, SummaryFile)}
	if err := writeFile(files.Summary, func(w io.Writer) error { return WriteCSV(w, rows) }); err != nil {
		return nil, err
	}

	used := make(map[string]bool, len(comparisons))
	for _, c := range comparisons {
		path := filepath.Join(patientsDir, uniqueName(c.PatientID, used)+".md")
		if err := writeFile(path, func(w io.Writer) error {
			_, err := io.WriteString(w, c.Markdown)
			return err
		}); err != nil {
			return nil, err
		}
		files.Patients = append(files.Patients, path)
	}
	return files, nil
}

// FileName maps a patient id onto a safe file name. Characters outside
// letters, digits, dot, dash and underscore become underscores.
func FileName(patientID string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, patientID)
	name = strings.Trim(name, ".")
	if name == "" {
		return "patient"
	}
	return name
}

// uniqueName returns FileName(patientID), suffixed with a short hash of the
// raw id when another patient already took that name. Names compare case
// insensitively so reports survive case-folding file systems.
func uniqueName(patientID string, used map[string]bool) string {
	name := FileName(patientID)
	if used[strings.ToLower(name)] {
		sum := sha256.Sum256([]byte(patientID))
		name += "-" + hex.EncodeToString(sum[:4])
	}
	base := name
	for i := 2; used[strings.ToLower(name)]; i++ {
		name = fmt.Sprintf("%s-%d", base, i)
	}
	used[strings.ToLower(name)] = true
	return name
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
