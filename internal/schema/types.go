package schema

import "sort"

// Type enumerates the declared shapes a field value may take.
type Type string

const (
	TypeString Type = "str"
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
	TypeBool   Type = "bool"
	// TypeList is an ordered sequence. Elements are scalars or, with Elem ==
	// TypeDict, records matched by Key when compared.
	TypeList Type = "list"
	// TypeSet is an unordered collection of scalars.
	TypeSet  Type = "set"
	TypeDict Type = "dict"
)

// DefaultTolerance is the comparison tolerance for fractional fields that do
// not declare one (two decimal places).
const DefaultTolerance = 0.01

// Record is a normalized key/value document: user config, desired state, or
// observed state reduced to the same shape.
type Record = map[string]any

// Range bounds a numeric field, inclusive on both ends.
type Range struct {
	Min float64
	Max float64
}

// Lookup declares that user values for a field are natural keys of another
// controller collection and must be resolved to opaque ids before use.
type Lookup struct {
	Collection string
	FilterKey  string
	IDField    string
}

// Field describes one key of a record.
type Field struct {
	Name string
	Type Type
	// Elem is the element type for TypeList and TypeSet.
	Elem Type
	// Fields describes the nested record for TypeDict, or the element record
	// for a TypeList whose Elem is TypeDict.
	Fields []Field
	// Key matches elements of a list of records across have and want.
	Key string

	Required bool
	Default  any
	Choices  []string
	Range    *Range
	// MaxLength limits strings, counted in runes. Zero means unlimited.
	MaxLength int
	// Validate is a go-playground/validator tag applied to scalar values
	// (or to each element of a list/set of scalars), e.g. "ipv4".
	Validate string
	// Check is an optional semantic validator run after coercion.
	Check func(value any) error

	CaseInsensitive bool
	// Immutable fields cannot be changed once the object exists.
	Immutable bool
	// MustEcho fields are sent back unchanged in every update payload.
	MustEcho bool
	// Tolerance overrides DefaultTolerance for TypeFloat.
	Tolerance float64
	// Absent lists observed values that mean "not configured".
	Absent []string
	// Wire is the controller-side key. Defaults to Name.
	Wire  string
	NoLog bool

	Lookup *Lookup
}

// WireName returns the controller-side key for the field.
func (f Field) WireName() string {
	if f.Wire != "" {
		return f.Wire
	}
	return f.Name
}

// EffectiveTolerance returns the tolerance used to compare fractional values.
func (f Field) EffectiveTolerance() float64 {
	if f.Tolerance > 0 {
		return f.Tolerance
	}
	return DefaultTolerance
}

// Spec is the declarative schema for one item kind.
type Spec struct {
	Kind       string
	NaturalKey string
	Fields     []Field
}

// Field returns the named top-level field.
func (s Spec) Field(name string) (Field, bool) {
	return lookupField(s.Fields, name)
}

// KeyField returns the natural key descriptor.
func (s Spec) KeyField() Field {
	f, _ := s.Field(s.NaturalKey)
	return f
}

// FieldNames returns top-level field names in declaration order.
func (s Spec) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

func lookupField(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Document is one validated config record.
type Document struct {
	Index int
	Kind  string
	// Values is the coerced, defaulted copy of the user record.
	Values Record
	// Provided lists top-level keys the user supplied explicitly.
	Provided map[string]struct{}
}

// Has reports whether the user supplied the key.
func (d Document) Has(key string) bool {
	_, ok := d.Provided[key]
	return ok
}

// ProvidedKeys returns the supplied keys sorted.
func (d Document) ProvidedKeys() []string {
	keys := make([]string, 0, len(d.Provided))
	for k := range d.Provided {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key returns the natural key value of the document as a string.
func (d Document) Key(spec Spec) string {
	if v, ok := d.Values[spec.NaturalKey].(string); ok {
		return v
	}
	return ""
}

// Catalog resolves the spec for an item kind.
type Catalog interface {
	Spec(kind string) (Spec, bool)
}

// Single is a Catalog holding exactly one spec.
type Single Spec

// Spec implements Catalog.
func (s Single) Spec(kind string) (Spec, bool) {
	if kind == "" || kind == s.Kind {
		return Spec(s), true
	}
	return Spec{}, false
}

// Options tunes a validation run.
type Options struct {
	// Deleting relaxes required checks to the natural key only.
	Deleting bool
	// KindKey names the reserved key that selects a record's kind.
	KindKey string
	// DefaultKind applies to records without KindKey.
	DefaultKind string
}
