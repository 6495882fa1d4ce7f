package fhirmodels

// FHIR value set constants shared by the extractors.

// Resource types read from source bundles.
const (
	TypeAllergyIntolerance        = "AllergyIntolerance"
	TypeCondition                 = "Condition"
	TypeMedication                = "Medication"
	TypeMedicationRequest         = "MedicationRequest"
	TypeMedicationStatement       = "MedicationStatement"
	TypeMedicationAdministration  = "MedicationAdministration"
	TypeProcedure                 = "Procedure"
	TypeImmunization              = "Immunization"
	TypeEncounter                 = "Encounter"
	TypeFamilyMemberHistory       = "FamilyMemberHistory"
	TypeObservation               = "Observation"
)

// ObservationCategory codes.
const (
	ObsCategoryVitalSigns    = "vital-signs"
	ObsCategoryLaboratory    = "laboratory"
	ObsCategorySocialHistory = "social-history"
)

// StatusEnteredInError marks a resource recorded by mistake. It is shared by
// the status value sets of every resource type the extractors read.
const StatusEnteredInError = "entered-in-error"

// VerificationRefuted marks an allergy or condition that was ruled out.
const VerificationRefuted = "refuted"

// EncounterClass codes per FHIR R4 v3-ActCode.
const (
	EncounterClassAmbulatory   = "AMB"
	EncounterClassEmergency    = "EMER"
	EncounterClassInpatient    = "IMP"
	EncounterClassShortStay    = "SS"
	EncounterClassVirtual      = "VR"
	EncounterClassHomeHealth   = "HH"
	EncounterClassObstetric    = "OBSENC"
	EncounterClassAcute        = "ACUTE"
	EncounterClassNonAcute     = "NONAC"
	EncounterClassPreAdmission = "PRENC"
	EncounterClassField        = "FLD"
)

// EncounterClassLabels are display names for class codes that arrive without one.
var EncounterClassLabels = map[string]string{
	EncounterClassAmbulatory:   "Ambulatory",
	EncounterClassEmergency:    "Emergency",
	EncounterClassInpatient:    "Inpatient encounter",
	EncounterClassShortStay:    "Short stay",
	EncounterClassVirtual:      "Virtual",
	EncounterClassHomeHealth:   "Home health",
	EncounterClassObstetric:    "Obstetric encounter",
	EncounterClassAcute:        "Inpatient acute",
	EncounterClassNonAcute:     "Inpatient non-acute",
	EncounterClassPreAdmission: "Pre-admission",
	EncounterClassField:        "Field",
}
