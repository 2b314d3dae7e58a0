package patch

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ChangeType classifies one diff entry.
type ChangeType string

const (
	ChangeChanged ChangeType = "changed"
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
	ChangeInfo    ChangeType = "info"
)

// Change is one leaf-level difference between two documents. Its JSON form
// is {kind, field, path, oldValue, newValue}.
type Change struct {
	Type ChangeType `json:"kind"`
	// Field is the last key of Path, with any trailing list indexes.
	Field    string `json:"field"`
	Path     string `json:"path"`
	OldValue any    `json:"oldValue,omitempty"`
	NewValue any    `json:"newValue,omitempty"`
}

// entry pairs a change with its parsed path for ordering.
type entry struct {
	change   Change
	segments []segment
}

// segment is one step of a path: a mapping key or a list index.
type segment struct {
	key     string
	index   int
	isIndex bool
}

// Diff compares two YAML documents after removing metadata.resourceVersion
// and metadata.managedFields from both.
//
// Entries are ordered by path, comparing keys as strings and list indexes
// numerically. Identical documents yield a single ChangeInfo entry.
func Diff(oldYAML, newYAML string) ([]Change, error) {
	oldDoc, err := ParseDocument(oldYAML)
	if err != nil {
		return nil, invalidYAMLError(err)
	}
	newDoc, err := ParseDocument(newYAML)
	if err != nil {
		return nil, invalidYAMLError(err)
	}
	return DiffDocuments(oldDoc, newDoc), nil
}

// DiffDocuments compares two parsed documents. The inputs are not modified.
func DiffDocuments(oldDoc, newDoc map[string]any) []Change {
	var entries []entry
	walk(nil, withoutDiffNoise(oldDoc), withoutDiffNoise(newDoc), &entries)

	if len(entries) == 0 {
		return []Change{{Type: ChangeInfo, NewValue: msgNoDifferences}}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return lessSegments(entries[i].segments, entries[j].segments)
	})

	changes := make([]Change, len(entries))
	for i, e := range entries {
		changes[i] = e.change
	}
	return changes
}

// HasChanges reports whether changes holds any real difference.
func HasChanges(changes []Change) bool {
	for _, c := range changes {
		if c.Type != ChangeInfo {
			return true
		}
	}
	return false
}

// CountChanges returns the number of real differences, ignoring info entries.
func CountChanges(changes []Change) int {
	n := 0
	for _, c := range changes {
		if c.Type != ChangeInfo {
			n++
		}
	}
	return n
}

// withoutDiffNoise returns doc with the noise fields removed, copying only the
// top-level and metadata mappings.
func withoutDiffNoise(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	if metadata, ok := doc["metadata"].(map[string]any); ok {
		copied := make(map[string]any, len(metadata))
		for k, v := range metadata {
			copied[k] = v
		}
		out["metadata"] = copied
		removeMetadata(out, diffNoiseMetadata)
	}
	return out
}

func walk(path []segment, oldVal, newVal any, changes *[]entry) {
	oldMap, oldIsMap := oldVal.(map[string]any)
	newMap, newIsMap := newVal.(map[string]any)
	if oldIsMap && newIsMap {
		walkMaps(path, oldMap, newMap, changes)
		return
	}

	oldList, oldIsList := oldVal.([]any)
	newList, newIsList := newVal.([]any)
	if oldIsList && newIsList {
		walkLists(path, oldList, newList, changes)
		return
	}

	// A subtree on either side of a shape change is reported leaf by leaf.
	if isSubtree(oldVal) || isSubtree(newVal) {
		if oldVal != nil {
			leaves(path, oldVal, ChangeRemoved, changes)
		}
		if newVal != nil {
			leaves(path, newVal, ChangeAdded, changes)
		}
		return
	}

	if !reflect.DeepEqual(oldVal, newVal) {
		*changes = append(*changes, newChange(ChangeChanged, path, oldVal, newVal))
	}
}

// isSubtree reports whether v is a non-empty mapping or list.
func isSubtree(v any) bool {
	switch typed := v.(type) {
	case map[string]any:
		return len(typed) > 0
	case []any:
		return len(typed) > 0
	}
	return false
}

func walkMaps(path []segment, oldMap, newMap map[string]any, changes *[]entry) {
	for key, oldVal := range oldMap {
		child := appendSegment(path, segment{key: key})
		newVal, ok := newMap[key]
		if !ok {
			leaves(child, oldVal, ChangeRemoved, changes)
			continue
		}
		walk(child, oldVal, newVal, changes)
	}
	for key, newVal := range newMap {
		if _, ok := oldMap[key]; ok {
			continue
		}
		leaves(appendSegment(path, segment{key: key}), newVal, ChangeAdded, changes)
	}
}

func walkLists(path []segment, oldList, newList []any, changes *[]entry) {
	for i := 0; i < len(oldList) || i < len(newList); i++ {
		child := appendSegment(path, segment{index: i, isIndex: true})
		switch {
		case i >= len(newList):
			leaves(child, oldList[i], ChangeRemoved, changes)
		case i >= len(oldList):
			leaves(child, newList[i], ChangeAdded, changes)
		default:
			walk(child, oldList[i], newList[i], changes)
		}
	}
}

// leaves reports every leaf under v as added or removed. Empty mappings and
// lists count as leaves.
func leaves(path []segment, v any, changeType ChangeType, changes *[]entry) {
	switch typed := v.(type) {
	case map[string]any:
		if len(typed) > 0 {
			for key, child := range typed {
				leaves(appendSegment(path, segment{key: key}), child, changeType, changes)
			}
			return
		}
	case []any:
		if len(typed) > 0 {
			for i, child := range typed {
				leaves(appendSegment(path, segment{index: i, isIndex: true}), child, changeType, changes)
			}
			return
		}
	}

	if changeType == ChangeAdded {
		*changes = append(*changes, newChange(ChangeAdded, path, nil, v))
	} else {
		*changes = append(*changes, newChange(ChangeRemoved, path, v, nil))
	}
}

func newChange(changeType ChangeType, path []segment, oldVal, newVal any) entry {
	return entry{
		change: Change{
			Type:     changeType,
			Field:    fieldName(path),
			Path:     formatPath(path),
			OldValue: oldVal,
			NewValue: newVal,
		},
		segments: path,
	}
}

// appendSegment returns a new slice so sibling paths never share storage.
func appendSegment(path []segment, s segment) []segment {
	out := make([]segment, len(path), len(path)+1)
	copy(out, path)
	return append(out, s)
}

func formatPath(path []segment) string {
	var b strings.Builder
	for i, s := range path {
		if s.isIndex {
			b.WriteString("[" + strconv.Itoa(s.index) + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.key)
	}
	return b.String()
}

func fieldName(path []segment) string {
	start := len(path)
	for start > 0 && path[start-1].isIndex {
		start--
	}
	if start > 0 {
		start--
	}
	return formatPath(path[start:])
}

func lessSegments(a, b []segment) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		x, y := a[i], b[i]
		switch {
		case x.isIndex && y.isIndex:
			if x.index != y.index {
				return x.index < y.index
			}
		case x.isIndex != y.isIndex:
			return x.isIndex
		case x.key != y.key:
			return x.key < y.key
		}
	}
	return len(a) < len(b)
}
