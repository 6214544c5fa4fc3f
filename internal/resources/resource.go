// Package resources adapts item kinds to controller collections.
package resources

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
)

// Codec converts one field between spec and wire representations.
type Codec struct {
	ToWire   func(any) any
	FromWire func(any) any
}

// EnumCodec maps spec choices to controller constants.
func EnumCodec(mapping map[string]string) Codec {
	reverse := make(map[string]string, len(mapping))
	for spec, wire := range mapping {
		reverse[strings.ToLower(wire)] = spec
	}
	return Codec{
		ToWire: func(v any) any {
			if s, ok := v.(string); ok {
				if wire, found := mapping[s]; found {
					return wire
				}
			}
			return v
		},
		FromWire: func(v any) any {
			if s, ok := v.(string); ok {
				if spec, found := reverse[strings.ToLower(s)]; found {
					return spec
				}
			}
			return v
		},
	}
}

// StringNumberCodec sends integers as decimal strings.
var StringNumberCodec = Codec{
	ToWire: func(v any) any {
		if n, ok := v.(int); ok {
			return strconv.Itoa(n)
		}
		return v
	},
}

// CrossCheck validates relationships between fields of one record.
type CrossCheck func(values schema.Record) error

// Config declares a spec-driven resource.
type Config struct {
	Spec       schema.Spec
	Collection reconcile.Collection
	// Lookups maps Lookup.Collection names to their collections.
	Lookups    map[string]reconcile.Collection
	MinVersion string
	// FilterKey is the list query parameter that selects by natural key.
	FilterKey string
	Codecs    map[string]Codec
	Checks    []CrossCheck
	Sentinels map[reconcile.Operation]reconcile.Sentinels
	// Decoder and Encoder replace the dotted-path codec when the wire
	// shape does not map field by field.
	Decoder func(raw map[string]any) schema.Record
	Encoder func(values schema.Record) map[string]any
	// Finalize adjusts an encoded payload, e.g. to add constant settings.
	Finalize func(values schema.Record, wire map[string]any)
	// References lists same-kind natural keys an item depends on.
	References func(values schema.Record) []string
}

// SpecResource implements ports.Resource from a declarative Config.
type SpecResource struct {
	cfg Config
}

var _ ports.Resource = (*SpecResource)(nil)

// New validates the config and builds the resource.
func New(cfg Config) (*SpecResource, error) {
	if err := cfg.Spec.Check(); err != nil {
		return nil, fmt.Errorf("spec %q: %w", cfg.Spec.Kind, err)
	}
	if cfg.Collection.Path == "" {
		return nil, fmt.Errorf("resource %q: collection path is required", cfg.Spec.Kind)
	}
	for _, f := range cfg.Spec.Fields {
		if f.Lookup == nil {
			continue
		}
		if _, ok := cfg.Lookups[f.Lookup.Collection]; !ok {
			return nil, fmt.Errorf("resource %q: field %q looks up unknown collection %q", cfg.Spec.Kind, f.Name, f.Lookup.Collection)
		}
	}
	for name := range cfg.Codecs {
		if _, ok := cfg.Spec.Field(name); !ok {
			return nil, fmt.Errorf("resource %q: codec for undeclared field %q", cfg.Spec.Kind, name)
		}
	}
	return &SpecResource{cfg: cfg}, nil
}

// MustNew panics on an invalid config.
func MustNew(cfg Config) *SpecResource {
	r, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *SpecResource) Spec() schema.Spec                { return r.cfg.Spec }
func (r *SpecResource) Collection() reconcile.Collection { return r.cfg.Collection }
func (r *SpecResource) MinVersion() string               { return r.cfg.MinVersion }

func (r *SpecResource) LookupCollection(name string) (reconcile.Collection, bool) {
	c, ok := r.cfg.Lookups[name]
	return c, ok
}

// CrossValidate runs every cross-field check and joins the failures.
func (r *SpecResource) CrossValidate(values schema.Record) error {
	var errs []error
	for _, check := range r.cfg.Checks {
		if err := check(values); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *SpecResource) ObserveFilter(key string) reconcile.Filter {
	if r.cfg.FilterKey == "" {
		return nil
	}
	return reconcile.Filter{r.cfg.FilterKey: key}
}

func (r *SpecResource) Sentinels(op reconcile.Operation) reconcile.Sentinels {
	return r.cfg.Sentinels[op]
}

func (r *SpecResource) References(values schema.Record) []string {
	if r.cfg.References == nil {
		return nil
	}
	return r.cfg.References(values)
}

// Decode maps a controller object to its id and spec-shaped values. Values
// that fail coercion are kept as observed so they compare unequal.
func (r *SpecResource) Decode(raw map[string]any) (string, schema.Record) {
	id := ""
	if v, ok := raw[r.cfg.Collection.IDKey()]; ok && v != nil {
		id = fmt.Sprint(v)
	}
	if r.cfg.Decoder != nil {
		return id, r.coerce(r.cfg.Spec.Fields, r.cfg.Decoder(raw))
	}
	return id, r.decodeFields(r.cfg.Spec.Fields, raw, true)
}

// Encode maps spec-shaped values to a controller payload.
func (r *SpecResource) Encode(values schema.Record) map[string]any {
	var wire map[string]any
	if r.cfg.Encoder != nil {
		wire = r.cfg.Encoder(values)
	} else {
		wire = r.encodeFields(r.cfg.Spec.Fields, values, true)
	}
	if r.cfg.Finalize != nil {
		r.cfg.Finalize(values, wire)
	}
	return wire
}

func (r *SpecResource) decodeFields(fields []schema.Field, raw map[string]any, top bool) schema.Record {
	out := make(schema.Record, len(fields))
	for _, f := range fields {
		v, ok := getPath(raw, f.WireName())
		if !ok || v == nil {
			continue
		}
		if top {
			if codec, found := r.cfg.Codecs[f.Name]; found && codec.FromWire != nil {
				v = codec.FromWire(v)
			}
		}
		v = r.decodeNested(f, v)
		if coerced, err := schema.Coerce(f, v); err == nil {
			v = coerced
		}
		out[f.Name] = v
	}
	return out
}

func (r *SpecResource) decodeNested(f schema.Field, v any) any {
	switch {
	case f.Type == schema.TypeDict:
		if m, ok := v.(map[string]any); ok {
			return r.decodeFields(f.Fields, m, false)
		}
	case f.Elem == schema.TypeDict:
		items, ok := v.([]any)
		if !ok {
			return v
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			if m, isMap := item.(map[string]any); isMap {
				out = append(out, r.decodeFields(f.Fields, m, false))
				continue
			}
			out = append(out, item)
		}
		return out
	}
	return v
}

// coerce converts decoder output to declared types where possible.
func (r *SpecResource) coerce(fields []schema.Field, values schema.Record) schema.Record {
	out := make(schema.Record, len(values))
	for _, f := range fields {
		v, ok := values[f.Name]
		if !ok || v == nil {
			continue
		}
		if coerced, err := schema.Coerce(f, v); err == nil {
			v = coerced
		}
		out[f.Name] = v
	}
	return out
}

func (r *SpecResource) encodeFields(fields []schema.Field, values schema.Record, top bool) map[string]any {
	out := make(map[string]any, len(values))
	for _, f := range fields {
		v, ok := values[f.Name]
		if !ok || v == nil {
			continue
		}
		switch {
		case f.Type == schema.TypeDict:
			if m, isMap := v.(map[string]any); isMap {
				v = r.encodeFields(f.Fields, m, false)
			}
		case f.Elem == schema.TypeDict:
			if items, isList := v.([]any); isList {
				encoded := make([]any, 0, len(items))
				for _, item := range items {
					if m, isMap := item.(map[string]any); isMap {
						encoded = append(encoded, r.encodeFields(f.Fields, m, false))
						continue
					}
					encoded = append(encoded, item)
				}
				v = encoded
			}
		}
		if top {
			if codec, found := r.cfg.Codecs[f.Name]; found && codec.ToWire != nil {
				v = codec.ToWire(v)
			}
		}
		setPath(out, f.WireName(), v)
	}
	return out
}

// getPath reads a dotted path such as "ipTransitSettings.autonomousSystemNumber".
func getPath(m map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = m
	for _, part := range parts {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}
