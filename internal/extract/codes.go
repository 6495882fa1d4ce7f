package extract

import (
	"strings"

	"github.com/ehr/reconciler/internal/platform/fhir"
	"github.com/ehr/reconciler/internal/reconcile"
)

// nullFlavors are placeholder values some exports put in place of a real
// concept. They are treated as absent.
var nullFlavors = map[string]bool{
	"unknown":        true,
	"unk":            true,
	"na":             true,
	"n/a":            true,
	"nullflavor":     true,
	"null":           true,
	"not applicable": true,
	"asku":           true,
	"nask":           true,
	"nav":            true,
	"ni":             true,
}

func isNullFlavor(s string) bool {
	return nullFlavors[strings.ToLower(strings.TrimSpace(s))]
}

// codesOf converts the codings of concepts into record codes ordered by the
// category's priority. Codings without a value are dropped.
func codesOf(c reconcile.Category, concepts ...fhir.CodeableConcept) []reconcile.Code {
	var codes []reconcile.Code
	seen := map[string]bool{}
	for _, concept := range concepts {
		for _, cd := range concept.Coding {
			if cd.Code == "" {
				continue
			}
			code := reconcile.Code{System: cd.System, Value: cd.Code, Display: cd.Display}
			if key := code.String(); !seen[key] {
				seen[key] = true
				codes = append(codes, code)
			}
		}
	}
	if len(codes) == 0 {
		return nil
	}
	return reconcile.SortCodes(codes, priorityOf(c))
}

func priorityOf(c reconcile.Category) reconcile.CodeMatchPriority {
	p, err := reconcile.PolicyFor(c)
	if err != nil {
		return nil
	}
	return p.Priority
}

// withoutNullFlavors drops placeholder codings and placeholder text.
func withoutNullFlavors(c fhir.CodeableConcept) fhir.CodeableConcept {
	out := fhir.CodeableConcept{}
	if !isNullFlavor(c.Text) {
		out.Text = c.Text
	}
	for _, cd := range c.Coding {
		if isNullFlavor(cd.Code) || isNullFlavor(cd.Display) {
			continue
		}
		out.Coding = append(out.Coding, cd)
	}
	return out
}

// dateOf parses the first non-empty date among paths.
func dateOf(res Resource, paths ...[]string) reconcile.Date {
	return reconcile.ParseDate(fhir.FirstString(res, paths...))
}

func path(keys ...string) []string { return keys }
