package report

import (
	"strconv"

	"github.com/ehr/reconciler/internal/reconcile"
)

// Row is the flat per patient and category record used for tabular export.
type Row struct {
	PatientID      string             `json:"patient_id"`
	Category       reconcile.Category `json:"category"`
	CountA         int                `json:"count_a"`
	CountB         int                `json:"count_b"`
	LastYearA      int                `json:"last_year_a"`
	LastYearB      int                `json:"last_year_b"`
	UniqueA        int                `json:"unique_a"`
	UniqueB        int                `json:"unique_b"`
	Common         int                `json:"common"`
	Winner         string             `json:"winner"`
	LastYearWinner string             `json:"last_year_winner"`
	UniqueWinner   string             `json:"unique_winner"`
}

// NewRow flattens a summary.
func NewRow(patientID string, s reconcile.ReconciliationSummary) Row {
	return Row{
		PatientID:      patientID,
		Category:       s.Category,
		CountA:         s.A.Count,
		CountB:         s.B.Count,
		LastYearA:      s.A.LastYearCount(),
		LastYearB:      s.B.LastYearCount(),
		UniqueA:        s.A.UniqueCount,
		UniqueB:        s.B.UniqueCount,
		Common:         s.Common.Count,
		Winner:         Winner(s.A.Count, s.B.Count),
		LastYearWinner: Winner(s.A.LastYearCount(), s.B.LastYearCount()),
		UniqueWinner:   Winner(s.A.UniqueCount, s.B.UniqueCount),
	}
}

// Columns is the header matching Values.
func Columns() []string {
	return []string{
		"patient_id", "category",
		"count_a", "count_b",
		"last_year_a", "last_year_b",
		"unique_a", "unique_b",
		"common", "winner", "last_year_winner", "unique_winner",
	}
}

// Values returns the row as strings in Columns order.
func (r Row) Values() []string {
	return []string{
		r.PatientID, string(r.Category),
		strconv.Itoa(r.CountA), strconv.Itoa(r.CountB),
		strconv.Itoa(r.LastYearA), strconv.Itoa(r.LastYearB),
		strconv.Itoa(r.UniqueA), strconv.Itoa(r.UniqueB),
		strconv.Itoa(r.Common), r.Winner, r.LastYearWinner, r.UniqueWinner,
	}
}
