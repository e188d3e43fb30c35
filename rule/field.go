package rule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Lookup resolves a dotted field path against an entity.
// Traversal short-circuits to (nil, false) when any intermediate
// segment is absent, nil, or not an object.
func Lookup(entity Entity, path string) (any, bool) {
	if entity == nil {
		return nil, false
	}

	segments := strings.Split(path, ".")
	var current any = map[string]any(entity)

	for _, seg := range segments {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[seg]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

// IsEmpty reports whether a field value counts as missing for
// required-field purposes: absent, nil, or empty string.
func IsEmpty(v any, present bool) bool {
	if !present || v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// IsPresent reports whether a value exists and is non-nil. Empty
// strings ARE present; only required-field semantics treat them as
// missing.
func IsPresent(v any, found bool) bool {
	return found && v != nil
}

// AsNumber coerces a field value to float64. Dates normalize to epoch
// milliseconds so numeric and temporal ranges share one comparison.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case time.Time:
		return float64(n.UnixMilli()), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsTime coerces a field value to time.Time. Strings are parsed as
// RFC 3339, with a date-only fallback.
func AsTime(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		if t, err := time.Parse(time.RFC3339, d); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02", d); err == nil {
			return t, true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// AsString renders a field value for pattern matching.
func AsString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprint(v)
	}
}
