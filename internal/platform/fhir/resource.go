package fhir

import (
	"strconv"
	"strings"
)

// Resource is a decoded FHIR resource. Bundles from different sources disagree
// on optional structure, so resources stay generic maps and are read through
// the accessors below.
type Resource = map[string]interface{}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Label returns the text of the concept, falling back to the first coding
// display and then the first code.
func (c CodeableConcept) Label() string {
	if t := strings.TrimSpace(c.Text); t != "" {
		return t
	}
	for _, cd := range c.Coding {
		if d := strings.TrimSpace(cd.Display); d != "" {
			return d
		}
	}
	for _, cd := range c.Coding {
		if cd.Code != "" {
			return cd.Code
		}
	}
	return ""
}

// IsEmpty reports whether the concept has neither text nor codings.
func (c CodeableConcept) IsEmpty() bool {
	return strings.TrimSpace(c.Text) == "" && len(c.Coding) == 0
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Quantity struct {
	Value string `json:"value,omitempty"`
	Unit  string `json:"unit,omitempty"`
	Code  string `json:"code,omitempty"`
}

// UnitLabel prefers the human unit over the UCUM code.
func (q Quantity) UnitLabel() string {
	if q.Unit != "" {
		return q.Unit
	}
	return q.Code
}

// ResourceType returns the resourceType of r.
func ResourceType(r Resource) string {
	s, _ := r["resourceType"].(string)
	return s
}

// ID returns the logical id of r.
func ID(r Resource) string {
	s, _ := r["id"].(string)
	return s
}

// Lookup walks nested objects of r by key. Arrays are entered at index 0,
// matching how FHIR exports usually carry a single primary element.
func Lookup(r Resource, path ...string) interface{} {
	var cur interface{} = r
	for _, key := range path {
		if arr, ok := cur.([]interface{}); ok {
			if len(arr) == 0 {
				return nil
			}
			cur = arr[0]
		}
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// String returns the value at path as a string. Numbers and booleans are
// formatted; anything else yields "".
func String(r Resource, path ...string) string {
	switch v := Lookup(r, path...).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// FirstString returns the first non-empty string among several paths.
func FirstString(r Resource, paths ...[]string) string {
	for _, p := range paths {
		if s := String(r, p...); s != "" {
			return s
		}
	}
	return ""
}

// Object returns the object at path or nil. An array yields its first object,
// so repeating elements such as Encounter.type read as a single concept.
func Object(r Resource, path ...string) Resource {
	switch v := Lookup(r, path...).(type) {
	case map[string]interface{}:
		return v
	case []interface{}:
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				return m
			}
		}
	}
	return nil
}

// Array returns the array at path or nil. A single object is wrapped so that
// callers can iterate over both shapes.
func Array(r Resource, path ...string) []interface{} {
	switch v := Lookup(r, path...).(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		return []interface{}{v}
	}
	return nil
}

// Objects is Array filtered to objects.
func Objects(r Resource, path ...string) []Resource {
	var out []Resource
	for _, item := range Array(r, path...) {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// ConceptOf converts a raw CodeableConcept object.
func ConceptOf(raw Resource) CodeableConcept {
	if raw == nil {
		return CodeableConcept{}
	}
	c := CodeableConcept{Text: String(raw, "text")}
	for _, cd := range Objects(raw, "coding") {
		c.Coding = append(c.Coding, Coding{
			System:  String(cd, "system"),
			Code:    String(cd, "code"),
			Display: String(cd, "display"),
		})
	}
	return c
}

// Concept reads the CodeableConcept at path.
func Concept(r Resource, path ...string) CodeableConcept {
	return ConceptOf(Object(r, path...))
}

// QuantityOf converts a raw Quantity object.
func QuantityOf(raw Resource) Quantity {
	if raw == nil {
		return Quantity{}
	}
	return Quantity{
		Value: String(raw, "value"),
		Unit:  String(raw, "unit"),
		Code:  String(raw, "code"),
	}
}

// ReferenceOf reads the Reference at path.
func ReferenceOf(r Resource, path ...string) Reference {
	raw := Object(r, path...)
	return Reference{
		Reference: String(raw, "reference"),
		Type:      String(raw, "type"),
		Display:   String(raw, "display"),
	}
}

// FormatReference formats a relative literal reference.
func FormatReference(resourceType, id string) string {
	return resourceType + "/" + id
}
