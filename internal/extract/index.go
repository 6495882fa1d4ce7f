package extract

import (
	"strings"

	"github.com/ehr/reconciler/internal/platform/fhir"
	"github.com/ehr/reconciler/pkg/fhirmodels"
)

// Index resolves literal references between resources of one collection.
type Index struct {
	byKey map[string]Resource
}

// NewIndex indexes resources by "Type/id", by the entry fullUrl and, for
// Medication, by bare id since some exports reference it that way.
func NewIndex(resources []Resource) *Index {
	ix := &Index{byKey: make(map[string]Resource, len(resources))}
	for _, res := range resources {
		rt, id := fhir.ResourceType(res), fhir.ID(res)
		if rt != "" && id != "" {
			ix.byKey[fhir.FormatReference(rt, id)] = res
			if rt == fhirmodels.TypeMedication {
				ix.byKey[id] = res
			}
		}
		if u, ok := res[fhir.FullURLKey].(string); ok && u != "" {
			ix.byKey[u] = res
		}
	}
	return ix
}

// Len is the number of index keys.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.byKey)
}

// Resolve finds the target of ref as seen from owner. "#id" references are
// looked up in the owner's contained resources; absolute URLs fall back to
// their trailing "Type/id".
func (ix *Index) Resolve(owner Resource, ref string) (Resource, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, false
	}
	if strings.HasPrefix(ref, "#") {
		id := strings.TrimPrefix(ref, "#")
		for _, c := range fhir.Objects(owner, "contained") {
			if fhir.ID(c) == id {
				return c, true
			}
		}
		return nil, false
	}
	if ix == nil {
		return nil, false
	}
	if res, ok := ix.byKey[ref]; ok {
		return res, true
	}
	if parts := strings.Split(strings.TrimSuffix(ref, "/"), "/"); len(parts) >= 2 {
		tail := parts[len(parts)-2] + "/" + parts[len(parts)-1]
		if res, ok := ix.byKey[tail]; ok {
			return res, true
		}
	}
	return nil, false
}
