package schema

import (
	"fmt"
	"sort"
	"strings"

	deepcopy "github.com/tiendc/go-deepcopy"

	apperrors "github.com/alexisbeaulieu97/ccreconcile/pkg/errors"
)

// Validate normalizes records against the catalog. It returns one Document
// per record, or a *errors.ValidationError listing every violation found.
// Inputs are never mutated.
func Validate(catalog Catalog, records []Record, opts Options) ([]Document, error) {
	var vs violations
	docs := make([]Document, 0, len(records))
	specs := make(map[string]Spec)

	for i, record := range records {
		if record == nil {
			vs.add(i, "", "record must not be null")
			continue
		}

		var clone Record
		if err := deepcopy.Copy(&clone, record); err != nil {
			vs.add(i, "", "record cannot be copied: %v", err)
			continue
		}

		kind := opts.DefaultKind
		if opts.KindKey != "" {
			if raw, ok := clone[opts.KindKey]; ok && raw != nil {
				s, isString := raw.(string)
				if !isString || s == "" {
					vs.add(i, opts.KindKey, "must be a non-empty string")
					continue
				}
				kind = s
			}
		}

		spec, ok := catalog.Spec(kind)
		if !ok {
			vs.add(i, opts.KindKey, "unknown kind %q", kind)
			continue
		}
		specs[spec.Kind] = spec

		provided := make(map[string]struct{}, len(clone))
		for key, value := range clone {
			if value != nil && key != opts.KindKey {
				provided[key] = struct{}{}
			}
		}

		values := validateRecord(spec.Fields, clone, i, "", opts.Deleting, spec.NaturalKey, opts.KindKey, &vs)
		docs = append(docs, Document{
			Index:    i,
			Kind:     spec.Kind,
			Values:   values,
			Provided: provided,
		})
	}

	vs = append(vs, duplicateKeys(docs, specs)...)

	if err := apperrors.NewViolationsError(vs); err != nil {
		return nil, err
	}
	return docs, nil
}

// validateRecord checks one record against fields and returns the coerced copy
// with defaults filled. When deleting is set only naturalKey is required.
func validateRecord(fields []Field, raw map[string]any, index int, prefix string, deleting bool, naturalKey, reservedKey string, vs *violations) Record {
	out := make(Record, len(fields))
	known := make(map[string]struct{}, len(fields))

	for _, f := range fields {
		known[f.Name] = struct{}{}
		path := joinPath(prefix, f.Name)

		value, present := raw[f.Name]
		if !present || value == nil {
			required := f.Required
			if deleting && prefix == "" {
				required = f.Name == naturalKey
			}
			if required {
				vs.add(index, path, "is required")
				continue
			}
			if f.Default != nil && !deleting {
				var scratch violations
				if def, ok := coerceField(f, f.Default, index, path, &scratch); ok {
					out[f.Name] = def
				}
			}
			continue
		}

		if s, isString := value.(string); isString && f.Required && strings.TrimSpace(s) == "" && f.Type == TypeString {
			vs.add(index, path, "must not be empty")
			continue
		}

		if coerced, ok := coerceField(f, value, index, path, vs); ok {
			out[f.Name] = coerced
		}
	}

	var unknown []string
	for key := range raw {
		if _, ok := known[key]; ok {
			continue
		}
		if prefix == "" && reservedKey != "" && key == reservedKey {
			continue
		}
		unknown = append(unknown, key)
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		vs.add(index, joinPath(prefix, key), "unknown key")
	}

	return out
}

func duplicateKeys(docs []Document, specs map[string]Spec) violations {
	type group struct {
		order []string
		count map[string]int
	}
	groups := make(map[string]*group)
	var kinds []string

	for _, doc := range docs {
		spec := specs[doc.Kind]
		key := doc.Key(spec)
		if key == "" {
			continue
		}
		if spec.KeyField().CaseInsensitive {
			key = strings.ToLower(key)
		}
		g, ok := groups[doc.Kind]
		if !ok {
			g = &group{count: make(map[string]int)}
			groups[doc.Kind] = g
			kinds = append(kinds, doc.Kind)
		}
		if g.count[key] == 1 {
			g.order = append(g.order, key)
		}
		g.count[key]++
	}

	var vs violations
	sort.Strings(kinds)
	for _, kind := range kinds {
		g := groups[kind]
		if len(g.order) == 0 {
			continue
		}
		vs.add(-1, specs[kind].NaturalKey, "duplicate %s values: %s", kind, strings.Join(g.order, ", "))
	}
	return vs
}

// ValidateSpec is a convenience wrapper for single-kind passes.
func ValidateSpec(spec Spec, records []Record, deleting bool) ([]Document, error) {
	return Validate(Single(spec), records, Options{Deleting: deleting, DefaultKind: spec.Kind})
}

// MustCheck panics when the spec is inconsistent. Intended for package-level
// spec declarations.
func MustCheck(spec Spec) Spec {
	if err := spec.Check(); err != nil {
		panic(fmt.Sprintf("invalid spec: %v", err))
	}
	return spec
}
