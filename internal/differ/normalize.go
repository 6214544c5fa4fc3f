// Package differ decides whether observed controller state semantically
// matches desired state and builds minimal update payloads.
package differ

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
)

// DefaultAbsentSentinels are observed values that mean "not configured".
var DefaultAbsentSentinels = []string{"NOT CONFIGURED"}

// Normalize canonicalizes an observed record to the spec's shape. Strings
// are NFC-normalized, sentinel values are dropped, sets are deduplicated and
// sorted, and keys the spec does not declare are removed. Normalize is
// idempotent.
func Normalize(spec schema.Spec, rec schema.Record) schema.Record {
	return normalizeRecord(spec.Fields, rec)
}

func normalizeRecord(fields []schema.Field, rec map[string]any) schema.Record {
	if rec == nil {
		return nil
	}
	out := make(schema.Record, len(rec))
	for _, f := range fields {
		value, ok := rec[f.Name]
		if !ok || value == nil {
			continue
		}
		if isAbsentSentinel(f, value) {
			continue
		}
		if normalized, keep := normalizeValue(f, value); keep {
			out[f.Name] = normalized
		}
	}
	return out
}

func normalizeValue(f schema.Field, value any) (any, bool) {
	switch f.Type {
	case schema.TypeString:
		if s, ok := value.(string); ok {
			return norm.NFC.String(s), true
		}
		return value, true
	case schema.TypeDict:
		rec, ok := value.(map[string]any)
		if !ok {
			return value, true
		}
		return normalizeRecord(f.Fields, rec), true
	case schema.TypeList, schema.TypeSet:
		items, ok := value.([]any)
		if !ok {
			return value, true
		}
		if f.Elem == schema.TypeDict {
			out := make([]any, 0, len(items))
			for _, item := range items {
				if rec, isRec := item.(map[string]any); isRec {
					out = append(out, normalizeRecord(f.Fields, rec))
					continue
				}
				out = append(out, item)
			}
			return out, true
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			if s, isString := item.(string); isString {
				if isAbsentSentinel(f, s) {
					continue
				}
				item = norm.NFC.String(s)
			}
			out = append(out, item)
		}
		if f.Type == schema.TypeSet {
			out = sortedSet(f, out)
		}
		return out, true
	}
	return value, true
}

// sortedSet deduplicates and orders scalars by their canonical form.
func sortedSet(f schema.Field, items []any) []any {
	seen := make(map[string]struct{}, len(items))
	type entry struct {
		key   string
		value any
	}
	entries := make([]entry, 0, len(items))
	for _, item := range items {
		key := scalarKey(f, f.Elem, item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		entries = append(entries, entry{key: key, value: item})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e.value
	}
	return out
}

func isAbsentSentinel(f schema.Field, value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	for _, sentinel := range DefaultAbsentSentinels {
		if strings.EqualFold(s, sentinel) {
			return true
		}
	}
	for _, sentinel := range f.Absent {
		if strings.EqualFold(s, sentinel) {
			return true
		}
	}
	return false
}

// scalarKey renders a scalar in canonical form for set comparison.
func scalarKey(f schema.Field, t schema.Type, value any) string {
	switch t {
	case schema.TypeString:
		s := norm.NFC.String(fmt.Sprint(value))
		if f.CaseInsensitive {
			s = strings.ToLower(s)
		}
		return s
	case schema.TypeInt, schema.TypeFloat:
		if n, ok := toFloat(value); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
	case schema.TypeBool:
		if b, ok := value.(bool); ok {
			return strconv.FormatBool(b)
		}
	}
	return fmt.Sprint(value)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case nil, bool:
		return 0, false
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	case interface{ Float64() (float64, error) }:
		f, err := v.Float64()
		return f, err == nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f, !math.IsNaN(f)
	}
	return 0, false
}
