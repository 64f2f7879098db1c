package models

import (
	"reflect"
	"sort"
)

// Marks are the formatting attributes of a run of characters, e.g.
// {"bold": true, "href": "https://..."}.
//
// When Marks are used as a patch, a nil value removes the mark.
type Marks map[string]any

// Clone returns a shallow copy. A nil or empty receiver yields nil.
func (m Marks) Clone() Marks {
	if len(m) == 0 {
		return nil
	}
	out := make(Marks, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal compares two mark sets; nil and empty are equal.
func (m Marks) Equal(other Marks) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		ov, ok := other[k]
		if !ok || !reflect.DeepEqual(v, ov) {
			return false
		}
	}
	return true
}

// Apply returns m with patch merged in. Nil values in the patch remove keys.
func (m Marks) Apply(patch Marks) Marks {
	if len(patch) == 0 {
		return m.Clone()
	}
	out := m.Clone()
	if out == nil {
		out = make(Marks, len(patch))
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Diff returns the patch that turns m into other.
func (m Marks) Diff(other Marks) Marks {
	var patch Marks
	set := func(k string, v any) {
		if patch == nil {
			patch = make(Marks)
		}
		patch[k] = v
	}
	for k, v := range other {
		if ov, ok := m[k]; !ok || !reflect.DeepEqual(ov, v) {
			set(k, v)
		}
	}
	for k := range m {
		if _, ok := other[k]; !ok {
			set(k, nil)
		}
	}
	return patch
}

// Keys returns the mark names in sorted order.
func (m Marks) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CloneData deep-copies a data payload of nested maps and slices.
func CloneData(v map[string]any) map[string]any {
	if v == nil {
		return nil
	}
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = cloneValue(val)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneData(t)
	case Marks:
		return CloneData(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
