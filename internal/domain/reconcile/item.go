package reconcile

import (
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
)

// Item is one validated config record bound to the spec of its kind.
type Item struct {
	Document schema.Document
	Spec     schema.Spec

	// resolved caches natural-key lookups per field: field -> value -> id.
	resolved map[string]map[string]string
}

// NewItem binds a validated document to its spec.
func NewItem(spec schema.Spec, doc schema.Document) *Item {
	return &Item{Document: doc, Spec: spec}
}

// Key returns the natural key of the item.
func (i *Item) Key() string {
	return i.Document.Key(i.Spec)
}

// Kind returns the item kind.
func (i *Item) Kind() string {
	return i.Spec.Kind
}

// Index returns the position of the item in the user config list.
func (i *Item) Index() int {
	return i.Document.Index
}

// Resolve caches the opaque id for a looked-up value.
func (i *Item) Resolve(field, value, id string) {
	if i.resolved == nil {
		i.resolved = make(map[string]map[string]string)
	}
	if i.resolved[field] == nil {
		i.resolved[field] = make(map[string]string)
	}
	i.resolved[field][value] = id
}

// ResolvedID returns a cached id for value.
func (i *Item) ResolvedID(field, value string) (string, bool) {
	id, ok := i.resolved[field][value]
	return id, ok
}

// ResolvedValue maps an opaque id back to the natural value it was resolved from.
func (i *Item) ResolvedValue(field, id string) (string, bool) {
	for value, candidate := range i.resolved[field] {
		if candidate == id {
			return value, true
		}
	}
	return "", false
}

// Have is the observed controller state for one item.
type Have struct {
	Exists bool
	// ID is the controller-assigned opaque id. It is fixed for the rest of the pass.
	ID string
	// Values is the observed object normalized to the spec's shape.
	Values schema.Record
	// Raw is the object as returned by the controller.
	Raw map[string]any
}

// Missing is the observed state of an object that does not exist.
func Missing() Have {
	return Have{}
}
