package batch

import (
	"fmt"
	"os"

	"github.com/ehr/reconciler/internal/platform/fhir"
)

// ReadBundleFile decodes one FHIR Bundle file into its resources.
func ReadBundleFile(path string) ([]fhir.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	b, err := fhir.DecodeBundle(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b.Resources(), nil
}
