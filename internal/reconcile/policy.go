package reconcile

import (
	"fmt"
	"strings"
)

// MatchStep is one stage of the similarity decision.
type MatchStep string

const (
	StepCode      MatchStep = "code"
	StepExactText MatchStep = "exact_text"
	StepSubstring MatchStep = "substring"
	StepFuzzy     MatchStep = "fuzzy"
)

// DefaultSteps is the usual decision order.
var DefaultSteps = []MatchStep{StepCode, StepExactText, StepSubstring, StepFuzzy}

// SimilarityThresholds are the minimum word-set scores accepted by the fuzzy
// step, depending on whether the dates already align.
type SimilarityThresholds struct {
	DateMatched   float64 `json:"date_matched" yaml:"date_matched"`
	DateUnmatched float64 `json:"date_unmatched" yaml:"date_unmatched"`
}

// SimilarityPolicy is the per-category configuration of the matcher.
type SimilarityPolicy struct {
	Category Category          `json:"category" yaml:"category"`
	Priority CodeMatchPriority `json:"priority,omitempty" yaml:"priority,omitempty"`
	Steps    []MatchStep       `json:"steps" yaml:"steps"`

	// CodeMismatchIsFinal stops the decision when both records carry the same
	// vocabulary with different values.
	CodeMismatchIsFinal bool `json:"code_mismatch_is_final" yaml:"code_mismatch_is_final"`

	// CodeWindow gates a code match on date proximity. A code match outside
	// the window is final: same concept, different occurrence.
	CodeWindow *DateProximityPolicy `json:"code_window,omitempty" yaml:"code_window,omitempty"`

	TextWindow DateProximityPolicy `json:"text_window" yaml:"text_window"`

	// GateTextMatches requires TextWindow for every text step. Without it the
	// exact and substring steps ignore dates and the fuzzy step falls back to
	// the stricter DateUnmatched threshold.
	GateTextMatches bool `json:"gate_text_matches" yaml:"gate_text_matches"`

	Thresholds SimilarityThresholds `json:"thresholds" yaml:"thresholds"`
}

// Similarity thresholds and windows are empirical; change them here, not in
// the engine.
var (
	thresholdsDefault    = SimilarityThresholds{DateMatched: 0.5, DateUnmatched: 0.8}
	thresholdsConditions = SimilarityThresholds{DateMatched: 0.4, DateUnmatched: 0.8}

	window24Hours = DefaultDatePolicy(UnitHours, 24)
	window1Day    = DefaultDatePolicy(UnitDays, 1)
	window90Days  = DefaultDatePolicy(UnitDays, 90)
	window180Days = DefaultDatePolicy(UnitDays, 180)

	conditionCodeWindow = DateProximityPolicy{Unit: UnitDays, Size: 90, BothMissingIsMatch: true, OneMissingIsMatch: true}
)

func windowPtr(p DateProximityPolicy) *DateProximityPolicy { return &p }

var policyTable = map[Category]SimilarityPolicy{
	CategoryAllergies: {
		Category:   CategoryAllergies,
		Priority:   CodeMatchPriority{SystemSNOMED, SystemRxNorm, SystemNDC},
		Steps:      DefaultSteps,
		TextWindow: window24Hours,
		Thresholds: thresholdsDefault,
	},
	CategoryConditions: {
		Category:            CategoryConditions,
		Priority:            CodeMatchPriority{SystemICD10, SystemSNOMED},
		Steps:               DefaultSteps,
		CodeMismatchIsFinal: true,
		CodeWindow:          windowPtr(conditionCodeWindow),
		TextWindow:          window180Days,
		Thresholds:          thresholdsConditions,
	},
	CategoryMedications: {
		Category:   CategoryMedications,
		Priority:   CodeMatchPriority{SystemRxNorm, SystemNDC, SystemSNOMED},
		Steps:      DefaultSteps,
		TextWindow: window90Days,
		Thresholds: thresholdsDefault,
	},
	CategoryProcedures: {
		Category:        CategoryProcedures,
		Priority:        CodeMatchPriority{SystemCPT, SystemSNOMED, SystemICD10},
		Steps:           DefaultSteps,
		CodeWindow:      windowPtr(window1Day),
		TextWindow:      window1Day,
		GateTextMatches: true,
		Thresholds:      thresholdsDefault,
	},
	CategoryImmunizations: {
		Category:   CategoryImmunizations,
		Priority:   CodeMatchPriority{SystemCVX, SystemNDC, SystemCPT},
		Steps:      DefaultSteps,
		CodeWindow: windowPtr(window1Day),
		TextWindow: window1Day,
		Thresholds: thresholdsDefault,
	},
	CategoryEncounters: {
		Category:        CategoryEncounters,
		Priority:        CodeMatchPriority{SystemCPT, SystemSNOMED, SystemHL7V3},
		Steps:           DefaultSteps,
		CodeWindow:      windowPtr(window24Hours),
		TextWindow:      window24Hours,
		GateTextMatches: true,
		Thresholds:      thresholdsDefault,
	},
	CategoryFamilyHistory: {
		Category:   CategoryFamilyHistory,
		Steps:      []MatchStep{StepExactText, StepSubstring, StepFuzzy},
		TextWindow: window180Days,
		Thresholds: thresholdsDefault,
	},
	CategorySocialHistory: {
		Category:   CategorySocialHistory,
		Priority:   CodeMatchPriority{SystemLOINC, SystemSNOMED},
		Steps:      DefaultSteps,
		CodeWindow: windowPtr(window90Days),
		TextWindow: window90Days,
		Thresholds: thresholdsDefault,
	},
	CategoryVitalSigns: {
		Category:            CategoryVitalSigns,
		Priority:            CodeMatchPriority{SystemLOINC},
		Steps:               DefaultSteps,
		CodeMismatchIsFinal: true,
		CodeWindow:          windowPtr(window24Hours),
		TextWindow:          window24Hours,
		GateTextMatches:     true,
		Thresholds:          thresholdsDefault,
	},
	CategoryLabResults: {
		Category:            CategoryLabResults,
		Priority:            CodeMatchPriority{SystemLOINC},
		Steps:               DefaultSteps,
		CodeMismatchIsFinal: true,
		CodeWindow:          windowPtr(window1Day),
		TextWindow:          window1Day,
		GateTextMatches:     true,
		Thresholds:          thresholdsDefault,
	},
}

// PolicyFor returns the similarity policy of c.
func PolicyFor(c Category) (SimilarityPolicy, error) {
	p, ok := policyTable[c]
	if !ok {
		return SimilarityPolicy{}, fmt.Errorf("%w: no similarity policy for %q", ErrUnknownCategory, c)
	}
	return p, nil
}

// Policies returns the whole table in category order.
func Policies() []SimilarityPolicy {
	out := make([]SimilarityPolicy, 0, len(policyTable))
	for _, c := range Categories() {
		out = append(out, policyTable[c])
	}
	return out
}

// ValidatePolicyTable checks that every category has a usable policy. It is
// meant to run once at startup.
func ValidatePolicyTable() error {
	for _, c := range Categories() {
		p, err := PolicyFor(c)
		if err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("policy %s: %w", c, err)
		}
	}
	return nil
}

// Validate checks the thresholds and windows of p.
func (p SimilarityPolicy) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("no match steps")
	}
	for _, t := range []float64{p.Thresholds.DateMatched, p.Thresholds.DateUnmatched} {
		if t < 0 || t > 1 {
			return fmt.Errorf("threshold %v outside [0,1]", t)
		}
	}
	if p.TextWindow.Size < 0 || (p.CodeWindow != nil && p.CodeWindow.Size < 0) {
		return fmt.Errorf("negative date window")
	}
	return nil
}

// IsSimilar decides whether a and b describe the same clinical fact.
func (p SimilarityPolicy) IsSimilar(a, b ClinicalRecord) bool {
	return p.decide(a, b).similar
}

type decision struct {
	similar bool
	step    MatchStep
}

func (p SimilarityPolicy) decide(a, b ClinicalRecord) decision {
	na, nb := Normalize(a.DisplayText), Normalize(b.DisplayText)
	datesClose := DatesClose(a.Date, b.Date, p.TextWindow)

	for _, step := range p.Steps {
		switch step {
		case StepCode:
			switch ResolveCodes(a.Codes, b.Codes, p.Priority) {
			case CodeMatch:
				if p.CodeWindow == nil || DatesClose(a.Date, b.Date, *p.CodeWindow) {
					return decision{similar: true, step: step}
				}
				return decision{step: step}
			case CodeMismatch:
				if p.CodeMismatchIsFinal {
					return decision{step: step}
				}
			}
		case StepExactText:
			if na != "" && na == nb && (!p.GateTextMatches || datesClose) {
				return decision{similar: true, step: step}
			}
		case StepSubstring:
			if na != "" && nb != "" && (strings.Contains(na, nb) || strings.Contains(nb, na)) &&
				(!p.GateTextMatches || datesClose) {
				return decision{similar: true, step: step}
			}
		case StepFuzzy:
			if p.GateTextMatches && !datesClose {
				return decision{step: step}
			}
			threshold := p.Thresholds.DateUnmatched
			if datesClose {
				threshold = p.Thresholds.DateMatched
			}
			return decision{similar: WordSetSimilarity(na, nb) >= threshold, step: step}
		}
	}
	return decision{}
}
