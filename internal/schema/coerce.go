package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	apperrors "github.com/alexisbeaulieu97/ccreconcile/pkg/errors"
)

type violations []apperrors.Violation

func (vs *violations) add(index int, path, format string, args ...any) {
	*vs = append(*vs, apperrors.Violation{Index: index, Path: path, Message: fmt.Sprintf(format, args...)})
}

// coerceField converts value to the field's declared type and checks every
// constraint. The second result is false when at least one violation was added.
func coerceField(f Field, value any, index int, path string, vs *violations) (any, bool) {
	before := len(*vs)
	var out any

	switch f.Type {
	case TypeString, TypeInt, TypeFloat, TypeBool:
		out = coerceConstrainedScalar(f, f.Type, value, index, path, vs)
	case TypeList, TypeSet:
		out = coerceCollection(f, value, index, path, vs)
	case TypeDict:
		raw, ok := asMap(value)
		if !ok {
			vs.add(index, path, "must be a record, got %s", describe(value))
			return nil, false
		}
		out = validateRecord(f.Fields, raw, index, path, false, "", "", vs)
	default:
		vs.add(index, path, "unsupported type %q", f.Type)
	}

	if len(*vs) > before {
		return nil, false
	}
	if f.Check != nil {
		if err := f.Check(out); err != nil {
			vs.add(index, path, "%v", err)
			return nil, false
		}
	}
	return out, true
}

func coerceConstrainedScalar(f Field, t Type, value any, index int, path string, vs *violations) any {
	out, err := coerceScalar(t, value)
	if err != nil {
		vs.add(index, path, "%v", err)
		return nil
	}

	if len(f.Choices) > 0 {
		s, _ := out.(string)
		if !containsChoice(f.Choices, s, f.CaseInsensitive) {
			vs.add(index, path, "value %q is not one of %s", s, strings.Join(f.Choices, ", "))
		}
	}
	if f.Range != nil {
		n := toFloat(out)
		if n < f.Range.Min || n > f.Range.Max {
			vs.add(index, path, "value %v is outside the range %s..%s", out, formatBound(f.Range.Min), formatBound(f.Range.Max))
		}
	}
	if f.MaxLength > 0 {
		if s, ok := out.(string); ok && utf8.RuneCountInString(s) > f.MaxLength {
			vs.add(index, path, "length %d exceeds maximum %d", utf8.RuneCountInString(s), f.MaxLength)
		}
	}
	if f.Validate != "" {
		if err := validatorInstance().Var(out, f.Validate); err != nil {
			vs.add(index, path, "value %v failed validation for tag '%s'", out, f.Validate)
		}
	}
	return out
}

func coerceCollection(f Field, value any, index int, path string, vs *violations) any {
	items, ok := asSlice(value)
	if !ok {
		vs.add(index, path, "must be a list, got %s", describe(value))
		return nil
	}

	out := make([]any, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if item == nil {
			vs.add(index, itemPath, "must not be null")
			continue
		}

		if f.Elem == TypeDict {
			raw, ok := asMap(item)
			if !ok {
				vs.add(index, itemPath, "must be a record, got %s", describe(item))
				continue
			}
			rec := validateRecord(f.Fields, raw, index, itemPath, false, "", "", vs)
			if key, ok := matchKey(f, rec); ok {
				if _, dup := seen[key]; dup {
					vs.add(index, joinPath(itemPath, f.Key), "duplicate value %v", rec[f.Key])
					continue
				}
				seen[key] = struct{}{}
			}
			out = append(out, rec)
			continue
		}

		coerced := coerceConstrainedScalar(f, f.Elem, item, index, itemPath, vs)
		if coerced == nil {
			continue
		}
		if f.Type == TypeSet {
			key := fmt.Sprint(coerced)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, coerced)
	}
	return out
}

// matchKey returns the comparable match key of a record list element.
func matchKey(f Field, rec Record) (string, bool) {
	if f.Key == "" || rec == nil {
		return "", false
	}
	v, ok := rec[f.Key]
	if !ok || v == nil {
		return "", false
	}
	key := fmt.Sprint(v)
	for _, sub := range f.Fields {
		if sub.Name == f.Key && sub.CaseInsensitive {
			key = strings.ToLower(key)
		}
	}
	return key, true
}

// coerceScalar converts value to t when the conversion is lossless.
func coerceScalar(t Type, value any) (any, error) {
	switch t {
	case TypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case TypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "yes", "on", "1":
				return true, nil
			case "false", "no", "off", "0":
				return false, nil
			}
		}
	case TypeInt:
		if n, ok := toInt(value); ok {
			return n, nil
		}
	case TypeFloat:
		switch v := value.(type) {
		case bool:
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return f, nil
			}
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, nil
			}
		default:
			rv := reflect.ValueOf(value)
			switch rv.Kind() {
			case reflect.Float32, reflect.Float64:
				if f := rv.Float(); !math.IsNaN(f) && !math.IsInf(f, 0) {
					return f, nil
				}
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				return float64(rv.Int()), nil
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
				return float64(rv.Uint()), nil
			}
		}
	}
	return nil, fmt.Errorf("cannot use %s as %s", describe(value), t)
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case bool, nil:
		return 0, false
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return int(n), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int(u), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toFloat(value any) float64 {
	switch v := value.(type) {
	case int:
		return float64(v)
	case float64:
		return v
	}
	return math.NaN()
}

func asSlice(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	if items, ok := value.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func asMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	}
	return nil, false
}

func containsChoice(choices []string, value string, fold bool) bool {
	for _, c := range choices {
		if c == value || (fold && strings.EqualFold(c, value)) {
			return true
		}
	}
	return false
}

func describe(value any) string {
	if value == nil {
		return "null"
	}
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("string %q", v)
	case bool:
		return fmt.Sprintf("bool %v", v)
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return "list"
	case reflect.Map:
		return "record"
	}
	return fmt.Sprintf("%T %v", value, value)
}

// Coerce converts value to the field's declared type and checks its
// constraints, returning the first problem found.
func Coerce(f Field, value any) (any, error) {
	var vs violations
	out, ok := coerceField(f, value, -1, f.Name, &vs)
	if !ok {
		if len(vs) == 0 {
			return nil, fmt.Errorf("%s: invalid value", f.Name)
		}
		return nil, errors.New(vs[0].String())
	}
	return out, nil
}
