package extract

import (
	"github.com/ehr/reconciler/internal/platform/fhir"
	"github.com/ehr/reconciler/internal/reconcile"
	"github.com/ehr/reconciler/pkg/fhirmodels"
)

func allergyA(res Resource, _ *Index) (reconcile.ClinicalRecord, bool) {
	return allergy(res, false)
}

// allergyB also reads reaction[0].substance, where source B records the
// allergen when the top level code is absent.
func allergyB(res Resource, _ *Index) (reconcile.ClinicalRecord, bool) {
	return allergy(res, true)
}

func allergy(res Resource, useReaction bool) (reconcile.ClinicalRecord, bool) {
	if fhir.ResourceType(res) != fhirmodels.TypeAllergyIntolerance {
		return reconcile.ClinicalRecord{}, false
	}
	code := withoutNullFlavors(fhir.Concept(res, "code"))
	if useReaction && code.IsEmpty() {
		code = withoutNullFlavors(fhir.Concept(res, "reaction", "substance"))
	}
	return reconcile.ClinicalRecord{
		DisplayText: code.Label(),
		Date:        dateOf(res, path("onsetDateTime"), path("recordedDate")),
		Codes:       codesOf(reconcile.CategoryAllergies, code),
	}, true
}

// condition prefers the onset period over the onset instant over the date
// the condition was recorded.
func condition(res Resource, _ *Index) (reconcile.ClinicalRecord, bool) {
	if fhir.ResourceType(res) != fhirmodels.TypeCondition {
		return reconcile.ClinicalRecord{}, false
	}
	code := fhir.Concept(res, "code")
	return reconcile.ClinicalRecord{
		DisplayText: code.Label(),
		Date:        dateOf(res, path("onsetPeriod", "start"), path("onsetDateTime"), path("recordedDate")),
		Codes:       codesOf(reconcile.CategoryConditions, code),
	}, true
}

func procedure(res Resource, _ *Index) (reconcile.ClinicalRecord, bool) {
	if fhir.ResourceType(res) != fhirmodels.TypeProcedure {
		return reconcile.ClinicalRecord{}, false
	}
	code := fhir.Concept(res, "code")
	return reconcile.ClinicalRecord{
		DisplayText: code.Label(),
		Date:        dateOf(res, path("performedDateTime"), path("performedPeriod", "start")),
		Codes:       codesOf(reconcile.CategoryProcedures, code),
	}, true
}

func immunization(res Resource, _ *Index) (reconcile.ClinicalRecord, bool) {
	if fhir.ResourceType(res) != fhirmodels.TypeImmunization {
		return reconcile.ClinicalRecord{}, false
	}
	code := fhir.Concept(res, "vaccineCode")
	return reconcile.ClinicalRecord{
		DisplayText: code.Label(),
		Date:        dateOf(res, path("occurrenceDateTime"), path("recorded")),
		Codes:       codesOf(reconcile.CategoryImmunizations, code),
	}, true
}

// encounter names the visit by its type, then its service type, then its
// class.
func encounter(res Resource, _ *Index) (reconcile.ClinicalRecord, bool) {
	if fhir.ResourceType(res) != fhirmodels.TypeEncounter {
		return reconcile.ClinicalRecord{}, false
	}
	typ := fhir.Concept(res, "type")
	display := typ.Label()
	if display == "" {
		display = fhir.Concept(res, "serviceType").Label()
	}
	if display == "" {
		display = encounterClassLabel(res)
	}
	return reconcile.ClinicalRecord{
		DisplayText: display,
		Date:        dateOf(res, path("period", "start")),
		Codes:       codesOf(reconcile.CategoryEncounters, typ),
	}, true
}

func encounterClassLabel(res Resource) string {
	if d := fhir.String(res, "class", "display"); d != "" {
		return d
	}
	code := fhir.String(res, "class", "code")
	if l, ok := fhirmodels.EncounterClassLabels[code]; ok {
		return l
	}
	return code
}
