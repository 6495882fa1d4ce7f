package extract

import (
	"strings"

	"github.com/ehr/reconciler/internal/platform/fhir"
	"github.com/ehr/reconciler/internal/reconcile"
	"github.com/ehr/reconciler/pkg/fhirmodels"
)

// familyHistory renders "<relationship>: <condition>, <condition>". Conditions
// come from the structured condition list and from free-text notes, and are
// deduplicated on normalized text. The record carries no codes; relationship
// and condition codings describe different things and cannot be compared as
// one concept.
func familyHistory(res Resource, _ *Index) (reconcile.ClinicalRecord, bool) {
	if fhir.ResourceType(res) != fhirmodels.TypeFamilyMemberHistory {
		return reconcile.ClinicalRecord{}, false
	}

	relationship := fhir.Concept(res, "relationship").Label()
	if relationship == "" {
		relationship = fhir.String(res, "name")
	}

	var conditions []string
	seen := map[string]bool{}
	add := func(text string) {
		text = strings.TrimSpace(text)
		key := reconcile.Normalize(text)
		if key == "" || seen[key] || isNullFlavor(text) {
			return
		}
		seen[key] = true
		conditions = append(conditions, text)
	}

	for _, cond := range fhir.Objects(res, "condition") {
		add(fhir.Concept(cond, "code").Label())
		for _, n := range fhir.Objects(cond, "note") {
			splitNote(fhir.String(n, "text"), add)
		}
	}
	for _, n := range fhir.Objects(res, "note") {
		splitNote(fhir.String(n, "text"), add)
	}

	display := relationship
	if len(conditions) > 0 {
		if display == "" {
			display = "Family member"
		}
		display += ": " + strings.Join(conditions, ", ")
	}

	return reconcile.ClinicalRecord{
		DisplayText: display,
		Date:        dateOf(res, path("date")),
	}, true
}

func splitNote(text string, add func(string)) {
	for _, part := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ';' || r == ',' || r == '\n'
	}) {
		add(part)
	}
}
