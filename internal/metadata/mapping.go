// Package metadata holds the flat key/value mapping passed between the
// extractors, the redactor and the grouper.
package metadata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Mapping is a flat metadata record. Values are string, float64, []float64,
// bool, map[string]any, or nil.
type Mapping map[string]any

// Well-known keys.
const (
	KeyFileName     = "fileName"
	KeyFileSize     = "fileSize"
	KeyFileType     = "fileType"
	KeyLastModified = "lastModified"
	KeyInfo         = "info"
)

// Keys returns the keys of m in sorted order.
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of m. Slices and nested maps are copied so the
// clone can be handed out without exposing the original.
func (m Mapping) Clone() Mapping {
	if m == nil {
		return nil
	}
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []float64:
		return append([]float64(nil), val...)
	case []any:
		cp := make([]any, len(val))
		for i := range val {
			cp[i] = cloneValue(val[i])
		}
		return cp
	case map[string]any:
		cp := make(map[string]any, len(val))
		for k, inner := range val {
			cp[k] = cloneValue(inner)
		}
		return cp
	case Mapping:
		return val.Clone()
	default:
		return v
	}
}

// Stringify renders a metadata value as display text. Numeric arrays are
// joined with ", " and nested objects become indented JSON.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "N/A"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case []float64:
		parts := make([]string, len(val))
		for i, f := range val {
			parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
		}
		return strings.Join(parts, ", ")
	case []any:
		if nums, ok := numericSlice(val); ok {
			return Stringify(nums)
		}
		return marshalIndent(val)
	case map[string]any, Mapping:
		return marshalIndent(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// StringifyAll coerces every value of m to text, keeping the key set.
func StringifyAll(m Mapping) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = Stringify(v)
	}
	return out
}

func numericSlice(vals []any) ([]float64, bool) {
	if len(vals) == 0 {
		return nil, false
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		f, ok := v.(float64)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func marshalIndent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// FromStrings lifts a redacted (all-text) record back into a Mapping so it
// can be grouped like the original.
func FromStrings(m map[string]string) Mapping {
	if m == nil {
		return nil
	}
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
