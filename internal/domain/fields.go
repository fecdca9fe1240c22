package domain

import (
	"strconv"
	"strings"
)

// FieldMap is the opaque field-to-value map contributed by the
// extraction collaborator for one criterion on one document. Values are
// strings, bools, numbers or nil.
type FieldMap map[string]any

// Merge overlays other onto the map, later values overriding earlier
// ones per field. Callers apply contributing documents in recency order
// so the newest document wins.
func (f FieldMap) Merge(other FieldMap) {
	for k, v := range other {
		f[k] = v
	}
}

// Clone returns a shallow copy of the map.
func (f FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// ExplicitTrue reports whether the named field is explicitly true: a
// boolean true, or a string in {"yes", "true", "1"} case-insensitively.
// A missing or nil field is not true, but it is also distinct from an
// explicit "no"; rules must never read absence as a disqualifying true.
func (f FieldMap) ExplicitTrue(key string) bool {
	v, ok := f[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "true", "1":
			return true
		}
	}
	return false
}

// Has reports whether the field is present with a non-nil value.
func (f FieldMap) Has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

// String returns the field as a trimmed string, empty when absent.
func (f FieldMap) String(key string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return ""
}

// Number returns the field as a float64. The second return is false
// when the field is absent or not numeric.
func (f FieldMap) Number(key string) (float64, bool) {
	v, ok := f[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
