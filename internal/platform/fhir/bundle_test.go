package fhir

import (
	"errors"
	"strings"
	"testing"
)

const sampleBundle = `{
  "resourceType": "Bundle",
  "type": "collection",
  "entry": [
    {"fullUrl": "urn:uuid:med-1", "resource": {"resourceType": "Medication", "id": "med-1", "code": {"text": "Metformin"}}},
    {"resource": {"resourceType": "AllergyIntolerance", "id": "al-1", "code": {"coding": [{"system": "http://snomed.info/sct", "code": "91936005", "display": "Penicillin"}]}}},
    {"fullUrl": "urn:uuid:empty"},
    {"resource": "not-an-object"}
  ]
}`

func TestDecodeBundle(t *testing.T) {
	b, err := DecodeBundle(strings.NewReader(sampleBundle))
	if err != nil {
		t.Fatalf("DecodeBundle: %v", err)
	}
	if b.Type != "collection" {
		t.Errorf("expected type collection, got %s", b.Type)
	}
	if len(b.Entry) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(b.Entry))
	}
}

func TestDecodeBundle_LooseTimestamp(t *testing.T) {
	doc := `{"resourceType":"Bundle","type":"collection","timestamp":"2024-03-01 10:00",
		"entry":[{"resource":{"resourceType":"Condition","id":"c1"}}]}`
	b, err := DecodeBundle(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("non RFC3339 timestamp should not reject the bundle: %v", err)
	}
	if b.Timestamp != "2024-03-01 10:00" || len(b.Resources()) != 1 {
		t.Errorf("unexpected bundle %+v", b)
	}
}

func TestDecodeBundle_NotABundle(t *testing.T) {
	_, err := DecodeBundle(strings.NewReader(`{"resourceType": "Patient", "id": "p1"}`))
	if !errors.Is(err, ErrNotBundle) {
		t.Errorf("expected ErrNotBundle, got %v", err)
	}
}

func TestDecodeBundle_InvalidJSON(t *testing.T) {
	if _, err := DecodeBundle(strings.NewReader(`{"resourceType":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestBundle_Resources(t *testing.T) {
	b, err := DecodeBundle(strings.NewReader(sampleBundle))
	if err != nil {
		t.Fatalf("DecodeBundle: %v", err)
	}
	res := b.Resources()
	if len(res) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(res))
	}
	if res[0][FullURLKey] != "urn:uuid:med-1" {
		t.Errorf("expected fullUrl stamped on first resource, got %v", res[0][FullURLKey])
	}
	if _, ok := res[1][FullURLKey]; ok {
		t.Error("expected no fullUrl on entry without one")
	}
	if ResourceType(res[1]) != "AllergyIntolerance" || ID(res[1]) != "al-1" {
		t.Errorf("unexpected second resource %v", res[1])
	}
}

func TestNewCollectionBundle_RoundTrip(t *testing.T) {
	in := []Resource{
		{"resourceType": "Condition", "id": "c1", FullURLKey: "urn:uuid:c1"},
	}
	b, err := NewCollectionBundle(in)
	if err != nil {
		t.Fatalf("NewCollectionBundle: %v", err)
	}
	if b.Entry[0].FullURL != "urn:uuid:c1" {
		t.Errorf("expected fullUrl on entry, got %q", b.Entry[0].FullURL)
	}
	if strings.Contains(string(b.Entry[0].Resource), FullURLKey) {
		t.Error("expected internal fullUrl key stripped from resource body")
	}
	out := b.Resources()
	if len(out) != 1 || ID(out[0]) != "c1" || out[0][FullURLKey] != "urn:uuid:c1" {
		t.Errorf("unexpected round trip result %v", out)
	}
}
