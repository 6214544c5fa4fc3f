package schema

import (
	"errors"
	"fmt"
)

var scalarTypes = map[Type]struct{}{
	TypeString: {},
	TypeInt:    {},
	TypeFloat:  {},
	TypeBool:   {},
}

// Check verifies the spec is self-consistent. Resource kinds call it at
// registration so a broken spec is caught at startup, not mid-pass.
func (s Spec) Check() error {
	var errs []error
	if s.Kind == "" {
		errs = append(errs, errors.New("spec kind is required"))
	}
	if s.NaturalKey == "" {
		errs = append(errs, fmt.Errorf("spec %q: natural key is required", s.Kind))
	} else if key, ok := s.Field(s.NaturalKey); !ok {
		errs = append(errs, fmt.Errorf("spec %q: natural key %q is not a declared field", s.Kind, s.NaturalKey))
	} else {
		if key.Type != TypeString {
			errs = append(errs, fmt.Errorf("spec %q: natural key %q must be a string", s.Kind, s.NaturalKey))
		}
		if !key.Required {
			errs = append(errs, fmt.Errorf("spec %q: natural key %q must be required", s.Kind, s.NaturalKey))
		}
		if key.Lookup != nil {
			errs = append(errs, fmt.Errorf("spec %q: natural key %q cannot be a lookup", s.Kind, s.NaturalKey))
		}
	}

	errs = append(errs, checkFields(s.Kind, "", s.Fields)...)
	return errors.Join(errs...)
}

func checkFields(kind, prefix string, fields []Field) []error {
	var errs []error
	seen := make(map[string]struct{}, len(fields))
	wires := make(map[string]string, len(fields))

	for _, f := range fields {
		path := joinPath(prefix, f.Name)
		fail := func(format string, args ...any) {
			errs = append(errs, fmt.Errorf("spec %q: field %q: %s", kind, path, fmt.Sprintf(format, args...)))
		}

		if f.Name == "" {
			fail("name is required")
			continue
		}
		if _, dup := seen[f.Name]; dup {
			fail("declared more than once")
		}
		seen[f.Name] = struct{}{}
		if other, dup := wires[f.WireName()]; dup {
			fail("wire name %q already used by %q", f.WireName(), other)
		}
		wires[f.WireName()] = f.Name

		_, scalar := scalarTypes[f.Type]
		switch f.Type {
		case TypeString, TypeInt, TypeFloat, TypeBool:
		case TypeList:
			if f.Elem == "" {
				fail("list requires an element type")
			}
			if f.Elem == TypeDict {
				if len(f.Fields) == 0 {
					fail("list of records requires element fields")
				}
				if f.Key == "" {
					fail("list of records requires a match key")
				} else if _, ok := lookupField(f.Fields, f.Key); !ok {
					fail("match key %q is not an element field", f.Key)
				}
				errs = append(errs, checkFields(kind, path, f.Fields)...)
			}
		case TypeSet:
			if _, ok := scalarTypes[f.Elem]; !ok {
				fail("set elements must be scalars, got %q", f.Elem)
			}
		case TypeDict:
			if len(f.Fields) == 0 {
				fail("record requires fields")
			}
			errs = append(errs, checkFields(kind, path, f.Fields)...)
		default:
			fail("unknown type %q", f.Type)
		}

		if len(f.Choices) > 0 && f.Type != TypeString && !(isCollection(f.Type) && f.Elem == TypeString) {
			fail("choices apply to strings only")
		}
		if f.Range != nil {
			if !isNumeric(f.Type) && !(isCollection(f.Type) && isNumeric(f.Elem)) {
				fail("range applies to numbers only")
			} else if f.Range.Min > f.Range.Max {
				fail("range min %v exceeds max %v", f.Range.Min, f.Range.Max)
			}
		}
		if f.MaxLength < 0 {
			fail("max length must be non-negative")
		}
		if f.MaxLength > 0 && f.Type != TypeString && !(isCollection(f.Type) && f.Elem == TypeString) {
			fail("max length applies to strings only")
		}
		if f.Tolerance < 0 {
			fail("tolerance must be non-negative")
		}
		if f.Tolerance > 0 && f.Type != TypeFloat {
			fail("tolerance applies to floats only")
		}
		if f.Key != "" && !(f.Type == TypeList && f.Elem == TypeDict) {
			fail("match key applies to lists of records only")
		}
		if f.Validate != "" && !scalar && !isCollection(f.Type) {
			fail("validator tags apply to scalars only")
		}
		if f.Lookup != nil {
			if f.Lookup.Collection == "" || f.Lookup.FilterKey == "" {
				fail("lookup requires collection and filter key")
			}
			if f.Type != TypeString && !(isCollection(f.Type) && f.Elem == TypeString) {
				fail("lookup applies to strings only")
			}
		}
		if f.Default != nil {
			if f.Required {
				fail("required fields cannot declare a default")
			}
			var vs violations
			if _, ok := coerceField(f, f.Default, 0, path, &vs); !ok {
				fail("default %v does not satisfy the field declaration", f.Default)
			}
		}
	}
	return errs
}

func isNumeric(t Type) bool {
	return t == TypeInt || t == TypeFloat
}

func isCollection(t Type) bool {
	return t == TypeList || t == TypeSet
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
