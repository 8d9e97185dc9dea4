package core

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// IsTruthy reports whether a front-matter value counts as set.
// nil, false, "", numeric zero and NaN are falsy; everything else,
// including empty lists and maps, is truthy.
func IsTruthy(v any) bool {
	if v == nil {
		return false
	}

	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case time.Time:
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && !math.IsNaN(f)
	case reflect.String:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// Equal reports whether two observed values are strictly equal.
// Numbers compare by value whatever their Go type (1 == 1.0); other values
// of different dynamic types are never equal (1 != "1").
// Lists and maps compare by content.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		fa, okA := number(a)
		fb, okB := number(b)
		return okA && okB && fa == fb
	}

	switch ta.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if t, ok := a.(time.Time); ok {
			return t.Equal(b.(time.Time))
		}
		return reflect.DeepEqual(a, b)
	case reflect.Func:
		return false
	}
	return a == b
}

// number returns v as a float64 when it is an integer or float.
func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// FormatValue renders a front-matter value as header text.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = FormatValue(item)
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(t, ", ")
	}
	return fmt.Sprint(v)
}
