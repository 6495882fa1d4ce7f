package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Source identifies which of the two data sources produced a record.
type Source string

const (
	SourceA Source = "A"
	SourceB Source = "B"
)

// Category is a clinical resource category compared between sources.
type Category string

const (
	CategoryAllergies     Category = "allergies"
	CategoryConditions    Category = "conditions"
	CategoryMedications   Category = "medications"
	CategoryProcedures    Category = "procedures"
	CategoryImmunizations Category = "immunizations"
	CategoryEncounters    Category = "encounters"
	CategoryFamilyHistory Category = "family_history"
	CategorySocialHistory Category = "social_history"
	CategoryVitalSigns    Category = "vital_signs"
	CategoryLabResults    Category = "lab_results"
)

// ErrUnknownCategory is returned when a category name has no policy or extractor.
var ErrUnknownCategory = errors.New("unknown resource category")

// Categories lists every supported category in report order.
func Categories() []Category {
	return []Category{
		CategoryAllergies,
		CategoryConditions,
		CategoryMedications,
		CategoryProcedures,
		CategoryImmunizations,
		CategoryEncounters,
		CategoryFamilyHistory,
		CategorySocialHistory,
		CategoryVitalSigns,
		CategoryLabResults,
	}
}

var categoryLabels = map[Category]string{
	CategoryAllergies:     "Allergies",
	CategoryConditions:    "Conditions",
	CategoryMedications:   "Medications",
	CategoryProcedures:    "Procedures",
	CategoryImmunizations: "Immunizations",
	CategoryEncounters:    "Encounters",
	CategoryFamilyHistory: "Family History",
	CategorySocialHistory: "Social History",
	CategoryVitalSigns:    "Vital Signs",
	CategoryLabResults:    "Lab Results",
}

// ParseCategory resolves a category name. Hyphens and case are tolerated so
// "Lab-Results" and "lab_results" are the same category.
func ParseCategory(name string) (Category, error) {
	c := Category(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_"))
	if _, ok := categoryLabels[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	return c, nil
}

// Label returns the human readable name used in reports.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Sentinel is the display text substituted for records without one.
func (c Category) Sentinel() string {
	return "Unknown " + strings.ToLower(c.Label())
}

// Code is one coding of a clinical concept.
type Code struct {
	System  string `json:"system" yaml:"system"`
	Value   string `json:"value" yaml:"value"`
	Display string `json:"display,omitempty" yaml:"display,omitempty"`
}

func (c Code) String() string {
	if c.System == "" {
		return c.Value
	}
	return CanonicalSystem(c.System) + ":" + c.Value
}

// Measurement is the value part of an observation. It is carried for display
// and never takes part in similarity decisions.
type Measurement struct {
	Value          string `json:"value,omitempty"`
	Unit           string `json:"unit,omitempty"`
	ReferenceRange string `json:"reference_range,omitempty"`
}

func (m *Measurement) String() string {
	if m == nil || m.Value == "" {
		return ""
	}
	s := m.Value
	if m.Unit != "" {
		s += " " + m.Unit
	}
	if m.ReferenceRange != "" {
		s += " (ref " + m.ReferenceRange + ")"
	}
	return s
}

// ClinicalRecord is one normalized record extracted from a source bundle.
// Records are values and are never mutated after extraction.
type ClinicalRecord struct {
	ID          string       `json:"id,omitempty"`
	Category    Category     `json:"category"`
	DisplayText string       `json:"display_text"`
	Date        Date         `json:"date"`
	Codes       []Code       `json:"codes,omitempty"`
	Measurement *Measurement `json:"measurement,omitempty"`
	Source      Source       `json:"source"`
}

// Code returns the primary code, the highest priority coding kept by the
// extractor, or nil when the record is uncoded.
func (r ClinicalRecord) Code() *Code {
	if len(r.Codes) == 0 {
		return nil
	}
	c := r.Codes[0]
	return &c
}

// InLastYear reports whether the record is dated strictly after now minus one year.
func (r ClinicalRecord) InLastYear(now time.Time) bool {
	t, ok := r.Date.Time()
	if !ok {
		return false
	}
	return t.After(now.AddDate(-1, 0, 0))
}

func (r ClinicalRecord) withDisplay(text string) ClinicalRecord {
	r.DisplayText = text
	return r
}
