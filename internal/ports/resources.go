package ports

import (
	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
)

// Resource adapts one item kind to a controller collection. Implementations
// are stateless and safe for concurrent use.
type Resource interface {
	Spec() schema.Spec
	Collection() reconcile.Collection
	// LookupCollection resolves the collection named by a field's Lookup.
	LookupCollection(name string) (reconcile.Collection, bool)
	// MinVersion is the lowest controller release supporting the kind.
	MinVersion() string
	// CrossValidate runs cross-field checks on validated values.
	CrossValidate(values schema.Record) error
	// ObserveFilter narrows the listing used to find an object by natural key.
	ObserveFilter(key string) reconcile.Filter
	// Decode maps a controller object to its opaque id and spec-shaped values.
	Decode(raw map[string]any) (string, schema.Record)
	// Encode maps spec-shaped values to a controller payload.
	Encode(values schema.Record) map[string]any
	// Sentinels lists the progress strings that end tasks submitted by op.
	Sentinels(op reconcile.Operation) reconcile.Sentinels
	// References returns natural keys of same-kind objects the item
	// depends on, such as a site's parent.
	References(values schema.Record) []string
}

// ResourceRegistry manages resource discovery by kind. Registries must be
// safe for concurrent use.
type ResourceRegistry interface {
	schema.Catalog
	Register(r Resource) error
	Get(kind string) (Resource, error)
	List() []Resource
}
