// Package report renders reconciliation summaries for people and for
// spreadsheets. It performs no I/O.
package report

import (
	"sort"

	"github.com/ehr/reconciler/internal/reconcile"
)

// YearGroup is the set of records sharing a year prefix.
type YearGroup struct {
	Year    string
	Records []reconcile.ClinicalRecord
}

// GroupByYear buckets records by the year prefix of their date. Years are
// sorted descending with the Unknown bucket last. Inside a year, records are
// sorted by date descending; records whose date did not parse come after the
// dated ones and keep their input order.
func GroupByYear(records []reconcile.ClinicalRecord) []YearGroup {
	buckets := map[string][]reconcile.ClinicalRecord{}
	for _, r := range records {
		y := r.Date.Year()
		buckets[y] = append(buckets[y], r)
	}

	years := make([]string, 0, len(buckets))
	for y := range buckets {
		years = append(years, y)
	}
	sort.Slice(years, func(i, j int) bool {
		if years[i] == reconcile.UnknownYear {
			return false
		}
		if years[j] == reconcile.UnknownYear {
			return true
		}
		return years[i] > years[j]
	})

	groups := make([]YearGroup, 0, len(years))
	for _, y := range years {
		rs := buckets[y]
		sort.SliceStable(rs, func(i, j int) bool { return dateBefore(rs[j], rs[i]) })
		groups = append(groups, YearGroup{Year: y, Records: rs})
	}
	return groups
}

// dateBefore orders a strictly before b for descending listings. Records
// without a usable date are treated as the earliest.
func dateBefore(a, b reconcile.ClinicalRecord) bool {
	ta, okA := a.Date.Time()
	tb, okB := b.Date.Time()
	switch {
	case okA && okB:
		return ta.Before(tb)
	case okB:
		return true
	}
	return false
}

// Winner names the side with strictly more records, or "Tie".
func Winner(a, b int) string {
	switch {
	case a > b:
		return string(reconcile.SourceA)
	case b > a:
		return string(reconcile.SourceB)
	}
	return "Tie"
}
