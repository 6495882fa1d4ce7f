// Package extract turns raw FHIR resources into normalized clinical records.
//
// Every category registers one extractor per source. Both sources arrive as
// FHIR R4 but populate different optional elements, so the pair lets source B
// fall back to the places its export actually uses.
package extract

import (
	"fmt"
	"sort"

	"github.com/ehr/reconciler/internal/platform/fhir"
	"github.com/ehr/reconciler/internal/reconcile"
	"github.com/ehr/reconciler/pkg/fhirmodels"
)

// Resource is one decoded FHIR resource.
type Resource = fhir.Resource

// ExtractFunc converts a resource into a record. It returns false when the
// resource yields no record, such as a Medication that only exists to be
// referenced.
type ExtractFunc func(res Resource, ix *Index) (reconcile.ClinicalRecord, bool)

// Pair holds the extractors of one category for both sources.
type Pair struct {
	A ExtractFunc
	B ExtractFunc
}

// For returns the extractor of source s.
func (p Pair) For(s reconcile.Source) ExtractFunc {
	if s == reconcile.SourceB {
		return p.B
	}
	return p.A
}

var registry = map[reconcile.Category]Pair{
	reconcile.CategoryAllergies:     {A: allergyA, B: allergyB},
	reconcile.CategoryConditions:    {A: condition, B: condition},
	reconcile.CategoryMedications:   {A: medicationA, B: medicationB},
	reconcile.CategoryProcedures:    {A: procedure, B: procedure},
	reconcile.CategoryImmunizations: {A: immunization, B: immunization},
	reconcile.CategoryEncounters:    {A: encounter, B: encounter},
	reconcile.CategoryFamilyHistory: {A: familyHistory, B: familyHistory},
	reconcile.CategorySocialHistory: {A: socialHistory, B: socialHistory},
	reconcile.CategoryVitalSigns:    {A: vitalSign, B: vitalSign},
	reconcile.CategoryLabResults:    {A: labResult, B: labResult},
}

// Registry returns a copy of the extractor table.
func Registry() map[reconcile.Category]Pair {
	out := make(map[reconcile.Category]Pair, len(registry))
	for c, p := range registry {
		out[c] = p
	}
	return out
}

// For returns the extractor pair of c.
func For(c reconcile.Category) (Pair, error) {
	p, ok := registry[c]
	if !ok {
		return Pair{}, fmt.Errorf("%w: no extractor for %q", reconcile.ErrUnknownCategory, c)
	}
	return p, nil
}

// ValidateRegistry checks that every category has both extractors.
func ValidateRegistry() error {
	for _, c := range reconcile.Categories() {
		p, err := For(c)
		if err != nil {
			return err
		}
		if p.A == nil || p.B == nil {
			return fmt.Errorf("extractor pair for %s is incomplete", c)
		}
	}
	return nil
}

// Extract runs the extractor of (category, source) over resources. The index
// is built from the same resources, so Medication references resolve when the
// referenced resource is part of the collection.
func Extract(c reconcile.Category, s reconcile.Source, resources []Resource) ([]reconcile.ClinicalRecord, error) {
	return ExtractWithIndex(c, s, resources, NewIndex(resources))
}

// ExtractWithIndex is Extract with a caller supplied index, typically built
// over the whole bundle.
func ExtractWithIndex(c reconcile.Category, s reconcile.Source, resources []Resource, ix *Index) ([]reconcile.ClinicalRecord, error) {
	pair, err := For(c)
	if err != nil {
		return nil, err
	}
	fn := pair.For(s)
	records := make([]reconcile.ClinicalRecord, 0, len(resources))
	for _, res := range resources {
		if isRetracted(res) {
			continue
		}
		r, ok := fn(res, ix)
		if !ok {
			continue
		}
		if r.ID == "" {
			r.ID = fhir.ID(res)
		}
		r.Category = c
		r.Source = s
		records = append(records, r)
	}
	return records, nil
}

// ExtractAll partitions a whole bundle and extracts every category for s.
// Categories without resources map to an empty slice.
func ExtractAll(s reconcile.Source, resources []Resource) map[reconcile.Category][]reconcile.ClinicalRecord {
	ix := NewIndex(resources)
	parts := Partition(resources)
	out := make(map[reconcile.Category][]reconcile.ClinicalRecord, len(registry))
	for _, c := range reconcile.Categories() {
		// registry covers every category, so the error is unreachable here
		records, _ := ExtractWithIndex(c, s, parts[c], ix)
		out[c] = records
	}
	return out
}

// Route decides the category of a raw resource.
func Route(res Resource) (reconcile.Category, bool) {
	switch fhir.ResourceType(res) {
	case fhirmodels.TypeAllergyIntolerance:
		return reconcile.CategoryAllergies, true
	case fhirmodels.TypeCondition:
		return reconcile.CategoryConditions, true
	case fhirmodels.TypeMedication, fhirmodels.TypeMedicationRequest,
		fhirmodels.TypeMedicationStatement, fhirmodels.TypeMedicationAdministration:
		return reconcile.CategoryMedications, true
	case fhirmodels.TypeProcedure:
		return reconcile.CategoryProcedures, true
	case fhirmodels.TypeImmunization:
		return reconcile.CategoryImmunizations, true
	case fhirmodels.TypeEncounter:
		return reconcile.CategoryEncounters, true
	case fhirmodels.TypeFamilyMemberHistory:
		return reconcile.CategoryFamilyHistory, true
	case fhirmodels.TypeObservation:
		return routeObservation(res)
	}
	return "", false
}

func routeObservation(res Resource) (reconcile.Category, bool) {
	for _, cat := range fhir.Objects(res, "category") {
		for _, cd := range fhir.ConceptOf(cat).Coding {
			switch cd.Code {
			case fhirmodels.ObsCategoryVitalSigns:
				return reconcile.CategoryVitalSigns, true
			case fhirmodels.ObsCategoryLaboratory:
				return reconcile.CategoryLabResults, true
			case fhirmodels.ObsCategorySocialHistory:
				return reconcile.CategorySocialHistory, true
			}
		}
	}
	return "", false
}

// Partition groups resources by category, preserving their order. Resources
// that route nowhere are dropped.
func Partition(resources []Resource) map[reconcile.Category][]Resource {
	out := make(map[reconcile.Category][]Resource)
	for _, res := range resources {
		if c, ok := Route(res); ok {
			out[c] = append(out[c], res)
		}
	}
	return out
}

// Unrouted returns the sorted resource types that Partition drops.
func Unrouted(resources []Resource) []string {
	seen := map[string]bool{}
	for _, res := range resources {
		if _, ok := Route(res); !ok {
			seen[fhir.ResourceType(res)] = true
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// isRetracted reports resources recorded in error or ruled out, which
// describe nothing about the patient.
func isRetracted(res Resource) bool {
	if fhir.String(res, "status") == fhirmodels.StatusEnteredInError {
		return true
	}
	for _, cd := range fhir.Concept(res, "verificationStatus").Coding {
		if cd.Code == fhirmodels.StatusEnteredInError || cd.Code == fhirmodels.VerificationRefuted {
			return true
		}
	}
	return false
}
