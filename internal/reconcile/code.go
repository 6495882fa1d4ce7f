package reconcile

import (
	"sort"
	"strings"
)

// Canonical coding system keys.
const (
	SystemICD10  = "icd10"
	SystemSNOMED = "snomed"
	SystemLOINC  = "loinc"
	SystemRxNorm = "rxnorm"
	SystemCVX    = "cvx"
	SystemCPT    = "cpt"
	SystemNDC    = "ndc"
	SystemHL7V3  = "hl7-v3"
)

// systemAliases maps the URI, OID and short spellings seen in exports to one
// canonical key. ICD-10 and ICD-10-CM share a key because their values are
// interchangeable at the granularity compared here.
var systemAliases = map[string]string{
	"http://hl7.org/fhir/sid/icd-10":             SystemICD10,
	"http://hl7.org/fhir/sid/icd-10-cm":          SystemICD10,
	"urn:oid:2.16.840.1.113883.6.3":              SystemICD10,
	"urn:oid:2.16.840.1.113883.6.90":             SystemICD10,
	"icd-10":                                     SystemICD10,
	"icd10":                                      SystemICD10,
	"icd-10-cm":                                  SystemICD10,
	"icd10cm":                                    SystemICD10,
	"http://snomed.info/sct":                     SystemSNOMED,
	"urn:oid:2.16.840.1.113883.6.96":             SystemSNOMED,
	"snomed":                                     SystemSNOMED,
	"snomed-ct":                                  SystemSNOMED,
	"snomedct":                                   SystemSNOMED,
	"sct":                                        SystemSNOMED,
	"http://loinc.org":                           SystemLOINC,
	"urn:oid:2.16.840.1.113883.6.1":              SystemLOINC,
	"loinc":                                      SystemLOINC,
	"http://www.nlm.nih.gov/research/umls/rxnorm": SystemRxNorm,
	"urn:oid:2.16.840.1.113883.6.88":             SystemRxNorm,
	"rxnorm":                                     SystemRxNorm,
	"http://hl7.org/fhir/sid/cvx":                SystemCVX,
	"urn:oid:2.16.840.1.113883.12.292":           SystemCVX,
	"cvx":                                        SystemCVX,
	"http://www.ama-assn.org/go/cpt":             SystemCPT,
	"urn:oid:2.16.840.1.113883.6.12":             SystemCPT,
	"cpt":                                        SystemCPT,
	"http://hl7.org/fhir/sid/ndc":                SystemNDC,
	"urn:oid:2.16.840.1.113883.6.69":             SystemNDC,
	"ndc":                                        SystemNDC,
	"http://terminology.hl7.org/codesystem/v3-actcode": SystemHL7V3,
	"urn:oid:2.16.840.1.113883.5.4":                    SystemHL7V3,
}

// CanonicalSystem maps a coding system identifier to its canonical key.
// Unknown systems are returned lowercased and trimmed so that two local
// systems still compare equal to themselves.
func CanonicalSystem(system string) string {
	s := strings.ToLower(strings.TrimSpace(system))
	s = strings.TrimSuffix(s, "/")
	if c, ok := systemAliases[s]; ok {
		return c
	}
	return s
}

// CodeMatchPriority orders canonical systems from most to least trusted.
type CodeMatchPriority []string

// Rank returns the position of system in p, or len(p) when absent.
func (p CodeMatchPriority) Rank(system string) int {
	canon := CanonicalSystem(system)
	for i, s := range p {
		if s == canon {
			return i
		}
	}
	return len(p)
}

// CodeOutcome is the result of comparing the codes of two records.
type CodeOutcome int

const (
	CodeNotAvailable CodeOutcome = iota
	CodeMatch
	CodeMismatch
)

func (o CodeOutcome) String() string {
	switch o {
	case CodeMatch:
		return "match"
	case CodeMismatch:
		return "mismatch"
	default:
		return "no-code-available"
	}
}

func normalizeCodeValue(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

func valuesBySystem(codes []Code) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, c := range codes {
		v := normalizeCodeValue(c.Value)
		if v == "" {
			continue
		}
		sys := CanonicalSystem(c.System)
		if sys == "" {
			continue
		}
		if _, ok := out[sys]; !ok {
			out[sys] = make(map[string]bool)
		}
		out[sys][v] = true
	}
	return out
}

// ResolveCodes compares two code lists. The first system in priority carried
// by both sides decides; when none is shared, the remaining shared systems are
// tried in lexical order so the outcome does not depend on argument order.
// Without a shared system the outcome is CodeNotAvailable.
func ResolveCodes(a, b []Code, priority CodeMatchPriority) CodeOutcome {
	if len(a) == 0 || len(b) == 0 {
		return CodeNotAvailable
	}
	va, vb := valuesBySystem(a), valuesBySystem(b)

	decide := func(sys string) (CodeOutcome, bool) {
		sa, okA := va[sys]
		sb, okB := vb[sys]
		if !okA || !okB {
			return CodeNotAvailable, false
		}
		for v := range sa {
			if sb[v] {
				return CodeMatch, true
			}
		}
		return CodeMismatch, true
	}

	for _, sys := range priority {
		if out, ok := decide(sys); ok {
			return out
		}
	}
	shared := make([]string, 0, len(va))
	for sys := range va {
		if _, ok := vb[sys]; ok {
			shared = append(shared, sys)
		}
	}
	sort.Strings(shared)
	for _, sys := range shared {
		if out, ok := decide(sys); ok {
			return out
		}
	}
	return CodeNotAvailable
}

// SortCodes orders codes by priority rank, keeping source order within a rank.
func SortCodes(codes []Code, priority CodeMatchPriority) []Code {
	out := make([]Code, len(codes))
	copy(out, codes)
	sort.SliceStable(out, func(i, j int) bool {
		return priority.Rank(out[i].System) < priority.Rank(out[j].System)
	})
	return out
}
