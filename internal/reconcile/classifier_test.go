package reconcile

import (
	"reflect"
	"testing"
	"time"
)

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func tagged(src Source, records ...ClinicalRecord) []ClinicalRecord {
	out := make([]ClinicalRecord, len(records))
	for i, r := range records {
		r.Source = src
		out[i] = r
	}
	return out
}

func TestClassify_EmptyInputs(t *testing.T) {
	s := Classify(nil, nil, mustPolicy(t, CategoryAllergies), testNow)
	if s.A.Count != 0 || s.B.Count != 0 || s.Common.Count != 0 {
		t.Errorf("expected all zero counts, got A=%d B=%d common=%d", s.A.Count, s.B.Count, s.Common.Count)
	}
	if s.A.UniqueRecords == nil || s.B.RecordsInLastYear == nil {
		t.Error("expected empty, non-nil slices")
	}
}

func TestClassify_OneSided(t *testing.T) {
	a := tagged(SourceA,
		rec("Asthma", "2023-01-01"),
		rec("Hypertension", "2020-01-01"),
		rec("Migraine", ""),
	)
	s := Classify(a, nil, mustPolicy(t, CategoryConditions), testNow)
	if s.A.UniqueCount != 3 {
		t.Errorf("A.UniqueCount = %d, want 3", s.A.UniqueCount)
	}
	if s.Common.Count != 0 {
		t.Errorf("Common.Count = %d, want 0", s.Common.Count)
	}
	if s.B.Count != 0 || s.B.UniqueCount != 0 {
		t.Errorf("B counts = %d/%d, want 0/0", s.B.Count, s.B.UniqueCount)
	}
}

func TestClassify_PenicillinAllergyIsCommon(t *testing.T) {
	a := tagged(SourceA, rec("Penicillin allergy", "2023-01-01"))
	b := tagged(SourceB, rec("PENICILLIN ALLERGY", "2023-01-02"))

	s := Classify(a, b, mustPolicy(t, CategoryAllergies), testNow)
	if s.Common.Count != 1 {
		t.Errorf("Common.Count = %d, want 1", s.Common.Count)
	}
	if s.A.UniqueCount != 0 || s.B.UniqueCount != 0 {
		t.Errorf("unique counts = %d/%d, want 0/0", s.A.UniqueCount, s.B.UniqueCount)
	}
}

func TestClassify_ConditionCodeOutsideTightWindow(t *testing.T) {
	e119 := Code{System: "http://hl7.org/fhir/sid/icd-10-cm", Value: "E11.9"}
	a := tagged(SourceA, rec("Type 2 diabetes mellitus without complications", "2022-05-01", e119))
	b := tagged(SourceB, rec("Type 2 diabetes mellitus without complications", "2023-05-01", e119))

	s := Classify(a, b, mustPolicy(t, CategoryConditions), testNow)
	if s.A.UniqueCount != 1 || s.B.UniqueCount != 1 {
		t.Errorf("unique counts = %d/%d, want 1/1", s.A.UniqueCount, s.B.UniqueCount)
	}
	if s.Common.Count != 0 {
		t.Errorf("Common.Count = %d, want 0", s.Common.Count)
	}
}

func TestClassify_LabResultSameCodeNextDay(t *testing.T) {
	glucose := Code{System: "http://loinc.org", Value: "2339-0"}
	withValue := rec("Glucose", "2024-01-10", glucose)
	withValue.Measurement = &Measurement{Value: "95", Unit: "mg/dL"}
	a := tagged(SourceA, withValue)
	b := tagged(SourceB, rec("Glucose [Mass/volume] in Blood", "2024-01-11", glucose))

	s := Classify(a, b, mustPolicy(t, CategoryLabResults), testNow)
	if s.Common.Count != 1 || s.A.UniqueCount != 0 || s.B.UniqueCount != 0 {
		t.Errorf("got common=%d uniqueA=%d uniqueB=%d, want 1/0/0", s.Common.Count, s.A.UniqueCount, s.B.UniqueCount)
	}
}

func TestClassify_ImmunizationTextsStayUnique(t *testing.T) {
	a := tagged(SourceA, rec("Influenza vaccine", "2023-10-01"))
	b := tagged(SourceB, rec("Flu shot (influenza)", "2023-11-20"))

	s := Classify(a, b, mustPolicy(t, CategoryImmunizations), testNow)
	if s.A.UniqueCount != 1 || s.B.UniqueCount != 1 || s.Common.Count != 0 {
		t.Errorf("got common=%d uniqueA=%d uniqueB=%d, want 0/1/1", s.Common.Count, s.A.UniqueCount, s.B.UniqueCount)
	}
}

func TestClassify_CommonCountedFromAOnly(t *testing.T) {
	// two A records match the same B record: both are common, B has one
	// non-unique record.
	a := tagged(SourceA, rec("Peanut", ""), rec("Peanut (food)", ""))
	b := tagged(SourceB, rec("peanut", ""))

	s := Classify(a, b, mustPolicy(t, CategoryAllergies), testNow)
	if s.Common.Count != 2 {
		t.Errorf("Common.Count = %d, want 2", s.Common.Count)
	}
	if s.B.UniqueCount != 0 {
		t.Errorf("B.UniqueCount = %d, want 0", s.B.UniqueCount)
	}
	if !s.Asymmetric() {
		t.Error("expected the summary to report asymmetric accounting")
	}
}

func TestClassify_CountInvariant(t *testing.T) {
	a := tagged(SourceA,
		rec("Latex", "2023-01-01"),
		rec("Penicillin", "2023-02-01"),
		rec("Bee venom", ""),
		rec("", ""),
	)
	b := tagged(SourceB,
		rec("penicillin", "2023-02-01"),
		rec("Shellfish", "2022-01-01"),
	)
	for _, p := range Policies() {
		s := Classify(a, b, p, testNow)
		if s.A.UniqueCount+s.Common.Count > s.A.Count {
			t.Errorf("%s: unique(A)+common = %d > count(A) = %d", p.Category, s.A.UniqueCount+s.Common.Count, s.A.Count)
		}
		if s.A.UniqueCount > s.A.Count || s.B.UniqueCount > s.B.Count {
			t.Errorf("%s: unique count exceeds count", p.Category)
		}
		if len(s.A.RecordsInLastYear) > len(s.A.Records) {
			t.Errorf("%s: last-year subset larger than records", p.Category)
		}
	}
}

func TestClassify_Idempotent(t *testing.T) {
	a := tagged(SourceA, rec("Metformin 500 MG Oral Tablet", "2024-01-01"), rec("Lisinopril", "2023-01-01"))
	b := tagged(SourceB, rec("metformin 500mg tablet", "2024-01-15"))
	p := mustPolicy(t, CategoryMedications)

	first := Classify(a, b, p, testNow)
	second := Classify(a, b, p, testNow)
	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical summaries for identical inputs")
	}
}

func TestClassify_LastYear(t *testing.T) {
	a := tagged(SourceA,
		rec("Recent", "2024-01-15"),
		rec("Boundary", "2023-06-01"),
		rec("Old", "2022-01-01"),
		rec("Undated", ""),
		rec("Broken", "sometime"),
	)
	s := Classify(a, nil, mustPolicy(t, CategoryProcedures), testNow)
	if len(s.A.RecordsInLastYear) != 1 || s.A.RecordsInLastYear[0].DisplayText != "Recent" {
		t.Errorf("RecordsInLastYear = %+v, want only Recent", s.A.RecordsInLastYear)
	}
}

func TestClassify_LastYearMonotonic(t *testing.T) {
	a := tagged(SourceA,
		rec("One", "2023-07-01"),
		rec("Two", "2023-12-01"),
		rec("Three", "2024-05-01"),
	)
	p := mustPolicy(t, CategoryEncounters)
	prev := len(a) + 1
	for _, now := range []time.Time{testNow, testNow.AddDate(0, 3, 0), testNow.AddDate(0, 8, 0), testNow.AddDate(2, 0, 0)} {
		n := len(Classify(a, nil, p, now).A.RecordsInLastYear)
		if n > prev {
			t.Errorf("last-year count grew from %d to %d when now advanced to %s", prev, n, now.Format("2006-01-02"))
		}
		prev = n
	}
}

func TestClassify_SentinelForMissingText(t *testing.T) {
	a := tagged(SourceA, rec("   ", "2024-01-01"))
	s := Classify(a, nil, mustPolicy(t, CategoryAllergies), testNow)
	if got := s.A.Records[0].DisplayText; got != "Unknown allergies" {
		t.Errorf("DisplayText = %q, want sentinel", got)
	}
	if a[0].DisplayText != "   " {
		t.Error("Classify must not mutate its input")
	}
}

func TestClassifyCategory_Unknown(t *testing.T) {
	if _, err := ClassifyCategory(Category("dental"), nil, nil, testNow); err == nil {
		t.Error("expected error for unknown category")
	}
}
