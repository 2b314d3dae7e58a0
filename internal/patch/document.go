package patch

import (
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/yaml"
)

// serverManagedMetadata lists metadata fields the server owns. They are never
// sent in a patch body and never shown in rendered YAML.
//
// annotations is stripped wholesale. In a merge patch an absent key leaves
// the live value alone, so edits to annotations are ignored rather than
// deleting existing ones.
var serverManagedMetadata = []string{
	"resourceVersion",
	"creationTimestamp",
	"uid",
	"generation",
	"managedFields",
	"selfLink",
	"annotations",
}

// diffNoiseMetadata is removed from both sides before diffing; these fields
// change on every write.
var diffNoiseMetadata = []string{
	"resourceVersion",
	"managedFields",
}

var errEmptyDocument = errors.New("the document is empty")

// ParseDocument parses a single YAML (or JSON) document into a generic
// mapping. An empty document yields an empty mapping; anything other than a
// mapping at the top level is an error.
func ParseDocument(data string) (map[string]any, error) {
	var raw any
	if err := yaml.Unmarshal([]byte(data), &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a mapping at the top level, got %s", describeValue(raw))
	}
	return doc, nil
}

// StripServerFields removes server-managed metadata and the status subtree
// from doc in place.
func StripServerFields(doc map[string]any) {
	removeMetadata(doc, serverManagedMetadata)
	delete(doc, "status")
}

// RenderYAML strips server-managed fields from a copy of obj and marshals it.
// obj must hold JSON-compatible values, as produced by ParseDocument or the
// dynamic client.
func RenderYAML(obj map[string]any) (string, error) {
	doc := runtime.DeepCopyJSON(obj)
	StripServerFields(doc)

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to render YAML: %w", err)
	}
	return string(out), nil
}

func removeMetadata(doc map[string]any, fields []string) {
	metadata, ok := doc["metadata"].(map[string]any)
	if !ok {
		return
	}
	for _, field := range fields {
		delete(metadata, field)
	}
}

// documentString reads a top-level or metadata string field.
func documentString(doc map[string]any, path ...string) string {
	var current any = doc
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current = m[key]
	}
	s, _ := current.(string)
	return s
}

func describeValue(v any) string {
	switch v.(type) {
	case []any:
		return "a list"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case float64, int64:
		return "a number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
