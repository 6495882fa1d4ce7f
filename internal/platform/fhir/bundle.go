package fhir

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// FullURLKey is the key under which Resources stamps the entry fullUrl onto
// each decoded resource so references can be resolved against it.
const FullURLKey = "_fullUrl"

// ErrNotBundle is returned when a document is valid JSON but not a Bundle.
var ErrNotBundle = errors.New("document is not a FHIR Bundle")

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	// Timestamp is kept verbatim; sources disagree on its format and nothing
	// reads it.
	Timestamp    string        `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// DecodeBundle reads one Bundle document from r.
func DecodeBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.ResourceType != "Bundle" {
		return nil, fmt.Errorf("%w: resourceType %q", ErrNotBundle, b.ResourceType)
	}
	return &b, nil
}

// Resources decodes every entry into a generic resource. Entries without a
// resource or with a resource that is not a JSON object are skipped; they
// carry nothing to compare.
func (b *Bundle) Resources() []Resource {
	out := make([]Resource, 0, len(b.Entry))
	for _, e := range b.Entry {
		if len(e.Resource) == 0 {
			continue
		}
		var res Resource
		if err := json.Unmarshal(e.Resource, &res); err != nil || res == nil {
			continue
		}
		if e.FullURL != "" {
			res[FullURLKey] = e.FullURL
		}
		out = append(out, res)
	}
	return out
}

// NewCollectionBundle wraps resources into a collection Bundle. It is the
// inverse of Resources and is used to build fixtures and API payloads.
func NewCollectionBundle(resources []Resource) (*Bundle, error) {
	entries := make([]BundleEntry, 0, len(resources))
	for _, r := range resources {
		fullURL, _ := r[FullURLKey].(string)
		clean := make(Resource, len(r))
		for k, v := range r {
			if k != FullURLKey {
				clean[k] = v
			}
		}
		raw, err := json.Marshal(clean)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", ResourceType(r), err)
		}
		entries = append(entries, BundleEntry{FullURL: fullURL, Resource: raw})
	}
	total := len(entries)
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "collection",
		Total:        &total,
		Entry:        entries,
	}, nil
}
