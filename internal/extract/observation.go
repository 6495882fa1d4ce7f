package extract

import (
	"strings"

	"github.com/ehr/reconciler/internal/platform/fhir"
	"github.com/ehr/reconciler/internal/reconcile"
	"github.com/ehr/reconciler/pkg/fhirmodels"
)

func observationDate(res Resource) reconcile.Date {
	return dateOf(res, path("effectiveDateTime"), path("effectivePeriod", "start"), path("issued"))
}

// socialHistory renders "<code>: <value>" so that "Tobacco use: Never smoker"
// and "Tobacco use: Current every day smoker" stay distinct by text.
func socialHistory(res Resource, _ *Index) (reconcile.ClinicalRecord, bool) {
	if fhir.ResourceType(res) != fhirmodels.TypeObservation {
		return reconcile.ClinicalRecord{}, false
	}
	code := fhir.Concept(res, "code")
	display := code.Label()
	if v := valueOf(res); v.Value != "" {
		if display != "" {
			display += ": "
		}
		display += v.String()
	}
	return reconcile.ClinicalRecord{
		DisplayText: display,
		Date:        observationDate(res),
		Codes:       codesOf(reconcile.CategorySocialHistory, code),
	}, true
}

func vitalSign(res Resource, _ *Index) (reconcile.ClinicalRecord, bool) {
	return measured(res, reconcile.CategoryVitalSigns)
}

func labResult(res Resource, _ *Index) (reconcile.ClinicalRecord, bool) {
	return measured(res, reconcile.CategoryLabResults)
}

func measured(res Resource, c reconcile.Category) (reconcile.ClinicalRecord, bool) {
	if fhir.ResourceType(res) != fhirmodels.TypeObservation {
		return reconcile.ClinicalRecord{}, false
	}
	code := fhir.Concept(res, "code")
	m := valueOf(res)
	if m.Value == "" {
		m = componentsOf(res)
	}
	m.ReferenceRange = referenceRangeOf(res)

	r := reconcile.ClinicalRecord{
		DisplayText: code.Label(),
		Date:        observationDate(res),
		Codes:       codesOf(c, code),
	}
	if m.Value != "" || m.ReferenceRange != "" {
		r.Measurement = &m
	}
	return r, true
}

// valueOf reads value[x] of an observation or component.
func valueOf(res Resource) reconcile.Measurement {
	if q := fhir.Object(res, "valueQuantity"); q != nil {
		qty := fhir.QuantityOf(q)
		return reconcile.Measurement{Value: qty.Value, Unit: qty.UnitLabel()}
	}
	if s := fhir.String(res, "valueString"); s != "" {
		return reconcile.Measurement{Value: s}
	}
	if c := fhir.Concept(res, "valueCodeableConcept"); !c.IsEmpty() {
		return reconcile.Measurement{Value: c.Label()}
	}
	for _, key := range []string{"valueInteger", "valueBoolean", "valueDateTime"} {
		if s := fhir.String(res, key); s != "" {
			return reconcile.Measurement{Value: s}
		}
	}
	return reconcile.Measurement{}
}

// componentsOf joins component values, which is how blood pressure arrives:
// "120/80 mmHg".
func componentsOf(res Resource) reconcile.Measurement {
	var values []string
	unit := ""
	for _, comp := range fhir.Objects(res, "component") {
		v := valueOf(comp)
		if v.Value == "" {
			continue
		}
		values = append(values, v.Value)
		if unit == "" {
			unit = v.Unit
		}
	}
	if len(values) == 0 {
		return reconcile.Measurement{}
	}
	return reconcile.Measurement{Value: strings.Join(values, "/"), Unit: unit}
}

func referenceRangeOf(res Resource) string {
	rr := fhir.Objects(res, "referenceRange")
	if len(rr) == 0 {
		return ""
	}
	first := rr[0]
	low := fhir.QuantityOf(fhir.Object(first, "low"))
	high := fhir.QuantityOf(fhir.Object(first, "high"))
	unit := low.UnitLabel()
	if unit == "" {
		unit = high.UnitLabel()
	}

	var s string
	switch {
	case low.Value != "" && high.Value != "":
		s = low.Value + "-" + high.Value
	case low.Value != "":
		s = ">=" + low.Value
	case high.Value != "":
		s = "<=" + high.Value
	default:
		return fhir.String(first, "text")
	}
	if unit != "" {
		s += " " + unit
	}
	return s
}
