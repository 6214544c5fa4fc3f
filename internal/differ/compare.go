package differ

import (
	"math"
	"reflect"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
)

// Compare classifies have against want. want holds only the fields the pass
// manages; a field missing from want always matches. A mismatch on an
// immutable field yields Unsupported, reported for the first such field in
// declaration order.
func Compare(spec schema.Spec, have reconcile.Have, want schema.Record) reconcile.Verdict {
	if !have.Exists {
		return reconcile.Verdict{Kind: reconcile.VerdictAbsent}
	}

	observed := Normalize(spec, have.Values)
	var changed []string
	for _, f := range spec.Fields {
		wv, ok := want[f.Name]
		if !ok || wv == nil {
			continue
		}
		hv, present := observed[f.Name]
		if valueEqual(f, hv, present, wv) {
			continue
		}
		if f.Immutable {
			return reconcile.Verdict{Kind: reconcile.VerdictUnsupported, Field: f.Name}
		}
		changed = append(changed, f.Name)
	}

	if len(changed) == 0 {
		return reconcile.Verdict{Kind: reconcile.VerdictEqual}
	}
	sort.Strings(changed)

	return reconcile.Verdict{
		Kind:    reconcile.VerdictDiffers,
		Changed: changed,
		Patch:   Patch(spec, observed, want, changed),
	}
}

// Patch returns the changed fields of want plus every must-echo field.
// Must-echo values come from want, falling back to have.
func Patch(spec schema.Spec, have, want schema.Record, changed []string) schema.Record {
	patch := make(schema.Record, len(changed))
	for _, name := range changed {
		patch[name] = want[name]
	}
	for _, f := range spec.Fields {
		if !f.MustEcho {
			continue
		}
		if v, ok := want[f.Name]; ok && v != nil {
			patch[f.Name] = v
		} else if v, ok := have[f.Name]; ok && v != nil {
			patch[f.Name] = v
		}
	}
	return patch
}

// Equal reports whether two values of field f match semantically.
func Equal(f schema.Field, have, want any) bool {
	return valueEqual(f, have, have != nil, want)
}

func valueEqual(f schema.Field, have any, present bool, want any) bool {
	if IsMasked(want) || (present && IsMasked(have)) {
		return true
	}
	if !present || have == nil {
		return isEmpty(want)
	}

	switch f.Type {
	case schema.TypeString, schema.TypeInt, schema.TypeFloat, schema.TypeBool:
		return scalarEqual(f, f.Type, have, want)
	case schema.TypeSet:
		return setEqual(f, have, want)
	case schema.TypeList:
		if f.Elem == schema.TypeDict {
			return keyedListEqual(f, have, want)
		}
		return listEqual(f, have, want)
	case schema.TypeDict:
		h, hok := have.(map[string]any)
		w, wok := want.(map[string]any)
		if !hok || !wok {
			return reflect.DeepEqual(have, want)
		}
		return recordEqual(f.Fields, h, w)
	}
	return reflect.DeepEqual(have, want)
}

func recordEqual(fields []schema.Field, have, want map[string]any) bool {
	for _, f := range fields {
		wv, ok := want[f.Name]
		if !ok || wv == nil {
			continue
		}
		hv, present := have[f.Name]
		if present && isAbsentSentinel(f, hv) {
			present = false
		}
		if !valueEqual(f, hv, present, wv) {
			return false
		}
	}
	return true
}

func scalarEqual(f schema.Field, t schema.Type, have, want any) bool {
	switch t {
	case schema.TypeString:
		h, hok := have.(string)
		w, wok := want.(string)
		if !hok || !wok {
			return false
		}
		h, w = norm.NFC.String(h), norm.NFC.String(w)
		if f.CaseInsensitive {
			return strings.EqualFold(h, w)
		}
		return h == w
	case schema.TypeInt:
		h, hok := toFloat(have)
		w, wok := toFloat(want)
		return hok && wok && h == w
	case schema.TypeFloat:
		h, hok := toFloat(have)
		w, wok := toFloat(want)
		return hok && wok && math.Abs(h-w) < f.EffectiveTolerance()
	case schema.TypeBool:
		h, hok := have.(bool)
		w, wok := want.(bool)
		return hok && wok && h == w
	}
	return reflect.DeepEqual(have, want)
}

func setEqual(f schema.Field, have, want any) bool {
	h, hok := have.([]any)
	w, wok := want.([]any)
	if !hok || !wok {
		return false
	}
	hk := canonicalKeys(f, h)
	wk := canonicalKeys(f, w)
	if len(hk) != len(wk) {
		return false
	}
	for i := range hk {
		if hk[i] != wk[i] {
			return false
		}
	}
	return true
}

func canonicalKeys(f schema.Field, items []any) []string {
	seen := make(map[string]struct{}, len(items))
	keys := make([]string, 0, len(items))
	for _, item := range items {
		key := scalarKey(f, f.Elem, item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func listEqual(f schema.Field, have, want any) bool {
	h, hok := have.([]any)
	w, wok := want.([]any)
	if !hok || !wok || len(h) != len(w) {
		return false
	}
	for i := range h {
		if !scalarEqual(f, f.Elem, h[i], w[i]) {
			return false
		}
	}
	return true
}

// keyedListEqual matches elements by the declared key; extra, missing or
// repeated keys are differences.
func keyedListEqual(f schema.Field, have, want any) bool {
	h, hok := have.([]any)
	w, wok := want.([]any)
	if !hok || !wok || len(h) != len(w) {
		return false
	}
	keyField, _ := lookupField(f.Fields, f.Key)

	index := make(map[string]map[string]any, len(h))
	for _, item := range h {
		rec, ok := item.(map[string]any)
		if !ok {
			return false
		}
		key := scalarKey(keyField, keyField.Type, rec[f.Key])
		if _, dup := index[key]; dup {
			return false
		}
		index[key] = rec
	}
	matched := make(map[string]struct{}, len(w))
	for _, item := range w {
		rec, ok := item.(map[string]any)
		if !ok {
			return false
		}
		key := scalarKey(keyField, keyField.Type, rec[f.Key])
		if _, again := matched[key]; again {
			return false
		}
		match, found := index[key]
		if !found || !recordEqual(f.Fields, match, rec) {
			return false
		}
		matched[key] = struct{}{}
	}
	return len(matched) == len(index)
}

func lookupField(fields []schema.Field, name string) (schema.Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return schema.Field{Name: name, Type: schema.TypeString}, false
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case bool:
		// unset booleans read as false
		return !v
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}
