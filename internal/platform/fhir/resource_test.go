package fhir

import "testing"

func TestLookupAndString(t *testing.T) {
	r := Resource{
		"onsetPeriod": map[string]interface{}{"start": " 2023-01-01 "},
		"reaction": []interface{}{
			map[string]interface{}{"substance": map[string]interface{}{"text": "Peanut"}},
		},
		"valueQuantity": map[string]interface{}{"value": 95.5, "unit": "mg/dL"},
	}

	if got := String(r, "onsetPeriod", "start"); got != "2023-01-01" {
		t.Errorf("expected trimmed start, got %q", got)
	}
	if got := String(r, "reaction", "substance", "text"); got != "Peanut" {
		t.Errorf("expected array index 0 to be entered, got %q", got)
	}
	if got := String(r, "valueQuantity", "value"); got != "95.5" {
		t.Errorf("expected formatted number, got %q", got)
	}
	if got := String(r, "missing", "path"); got != "" {
		t.Errorf("expected empty string for missing path, got %q", got)
	}
	if got := FirstString(r, []string{"onsetDateTime"}, []string{"onsetPeriod", "start"}); got != "2023-01-01" {
		t.Errorf("FirstString = %q", got)
	}
}

func TestArray_WrapsSingleObject(t *testing.T) {
	r := Resource{"serviceType": map[string]interface{}{"text": "Cardiology"}}
	if n := len(Array(r, "serviceType")); n != 1 {
		t.Errorf("expected single object wrapped, got %d items", n)
	}
	if Array(r, "nothing") != nil {
		t.Error("expected nil for missing key")
	}
}

func TestConcept(t *testing.T) {
	r := Resource{
		"code": map[string]interface{}{
			"coding": []interface{}{
				map[string]interface{}{"system": "http://loinc.org", "code": "2339-0"},
				map[string]interface{}{"system": "http://snomed.info/sct", "code": "1", "display": "Glucose"},
			},
		},
	}
	c := Concept(r, "code")
	if len(c.Coding) != 2 {
		t.Fatalf("expected 2 codings, got %d", len(c.Coding))
	}
	if c.Label() != "Glucose" {
		t.Errorf("Label = %q, want first coding display", c.Label())
	}
	if (CodeableConcept{Coding: []Coding{{Code: "X"}}}).Label() != "X" {
		t.Error("expected code as last resort label")
	}
	if !Concept(r, "absent").IsEmpty() {
		t.Error("expected empty concept for absent key")
	}
}

func TestQuantityOf(t *testing.T) {
	q := QuantityOf(Resource{"value": 120.0, "code": "mm[Hg]"})
	if q.Value != "120" || q.UnitLabel() != "mm[Hg]" {
		t.Errorf("unexpected quantity %+v", q)
	}
}

func TestOperationOutcome_HTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		o    *OperationOutcome
		want int
	}{
		{"not found", NotFoundOutcome("Comparison", "x"), 404},
		{"invalid", ValidationOutcome("bundle_a", "missing"), 400},
		{"processing", ErrorOutcome("boom"), 422},
		{"warnings only", WarningOutcome([]string{"skipped"}), 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.o.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus = %d, want %d", got, tt.want)
			}
		})
	}
}
