package reconcile

import (
	"strings"
	"time"
)

// SideSummary is the outcome for one source.
type SideSummary struct {
	Count             int              `json:"count"`
	Records           []ClinicalRecord `json:"records"`
	RecordsInLastYear []ClinicalRecord `json:"records_in_last_year"`
	UniqueCount       int              `json:"unique_count"`
	UniqueRecords     []ClinicalRecord `json:"unique_records"`
}

// LastYearCount is the number of records dated within the last year.
func (s SideSummary) LastYearCount() int { return len(s.RecordsInLastYear) }

// CommonSummary counts records of side A that have a similar record in B.
type CommonSummary struct {
	Count int `json:"count"`
}

// ReconciliationSummary is the result of comparing one category for one patient.
type ReconciliationSummary struct {
	Category Category      `json:"category"`
	Now      time.Time     `json:"now"`
	A        SideSummary   `json:"a"`
	B        SideSummary   `json:"b"`
	Common   CommonSummary `json:"common"`
}

// Side returns the summary of source s.
func (r ReconciliationSummary) Side(s Source) SideSummary {
	if s == SourceB {
		return r.B
	}
	return r.A
}

// Asymmetric reports whether the records of B judged common disagree with the
// common count taken from A. The classifier keeps the count from A; callers
// may log this.
func (r ReconciliationSummary) Asymmetric() bool {
	return r.B.Count-r.B.UniqueCount != r.Common.Count
}

// Classify runs bipartite existential matching of a against b under policy.
// It never fails: records without display text get the category sentinel.
func Classify(a, b []ClinicalRecord, policy SimilarityPolicy, now time.Time) ReconciliationSummary {
	a = withSentinels(a, policy.Category)
	b = withSentinels(b, policy.Category)

	summary := ReconciliationSummary{Category: policy.Category, Now: now}

	summary.A = classifySide(a, b, policy, now, func() { summary.Common.Count++ })
	summary.B = classifySide(b, a, policy, now, nil)

	return summary
}

// ClassifyCategory looks up the policy of c and classifies a against b.
func ClassifyCategory(c Category, a, b []ClinicalRecord, now time.Time) (ReconciliationSummary, error) {
	p, err := PolicyFor(c)
	if err != nil {
		return ReconciliationSummary{}, err
	}
	return Classify(a, b, p, now), nil
}

func classifySide(own, other []ClinicalRecord, policy SimilarityPolicy, now time.Time, onCommon func()) SideSummary {
	side := SideSummary{
		Count:             len(own),
		Records:           own,
		RecordsInLastYear: []ClinicalRecord{},
		UniqueRecords:     []ClinicalRecord{},
	}
	for _, r := range own {
		if r.InLastYear(now) {
			side.RecordsInLastYear = append(side.RecordsInLastYear, r)
		}
		if isUnique(r, other, policy) {
			side.UniqueRecords = append(side.UniqueRecords, r)
			continue
		}
		if onCommon != nil {
			onCommon()
		}
	}
	side.UniqueCount = len(side.UniqueRecords)
	return side
}

func isUnique(r ClinicalRecord, other []ClinicalRecord, policy SimilarityPolicy) bool {
	for _, o := range other {
		if policy.IsSimilar(r, o) {
			return false
		}
	}
	return true
}

func withSentinels(records []ClinicalRecord, c Category) []ClinicalRecord {
	out := make([]ClinicalRecord, len(records))
	for i, r := range records {
		if strings.TrimSpace(r.DisplayText) == "" {
			r = r.withDisplay(c.Sentinel())
		}
		if r.Category == "" {
			r.Category = c
		}
		out[i] = r
	}
	return out
}
