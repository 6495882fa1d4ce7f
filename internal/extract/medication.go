package extract

import (
	"github.com/ehr/reconciler/internal/platform/fhir"
	"github.com/ehr/reconciler/internal/reconcile"
	"github.com/ehr/reconciler/pkg/fhirmodels"
)

func medicationA(res Resource, ix *Index) (reconcile.ClinicalRecord, bool) {
	return medication(res, ix, false)
}

// medicationB falls back to the dosage text for the name. Source B writes
// free-text prescriptions there when no coded product is available.
func medicationB(res Resource, ix *Index) (reconcile.ClinicalRecord, bool) {
	return medication(res, ix, true)
}

func medication(res Resource, ix *Index, useDosage bool) (reconcile.ClinicalRecord, bool) {
	switch fhir.ResourceType(res) {
	case fhirmodels.TypeMedicationRequest, fhirmodels.TypeMedicationStatement, fhirmodels.TypeMedicationAdministration:
	default:
		// Medication resources are reference targets, not records
		return reconcile.ClinicalRecord{}, false
	}

	concept := fhir.Concept(res, "medicationCodeableConcept")
	if concept.IsEmpty() {
		ref := fhir.ReferenceOf(res, "medicationReference")
		if target, ok := ix.Resolve(res, ref.Reference); ok {
			concept = fhir.Concept(target, "code")
		}
		if concept.IsEmpty() && ref.Display != "" {
			concept.Text = ref.Display
		}
	}

	display := concept.Label()
	if display == "" && useDosage {
		display = fhir.String(res, "dosage", "text")
		if display == "" {
			display = fhir.String(res, "dosageInstruction", "text")
		}
	}

	return reconcile.ClinicalRecord{
		DisplayText: display,
		Date: dateOf(res,
			path("authoredOn"),
			path("effectivePeriod", "start"),
			path("effectiveDateTime"),
			path("dateAsserted"),
		),
		Codes: codesOf(reconcile.CategoryMedications, concept),
	}, true
}
