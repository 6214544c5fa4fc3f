package resources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
)

// Registry implements ports.ResourceRegistry with an in-memory map keyed by kind.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]ports.Resource
}

var _ ports.ResourceRegistry = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]ports.Resource)}
}

// Default returns a registry holding every built-in kind.
func Default() *Registry {
	r := NewRegistry()
	for _, factory := range []func() (ports.Resource, error){NewTransit, NewSite} {
		if err := r.RegisterFactory(factory); err != nil {
			panic(err)
		}
	}
	return r
}

// Register stores a resource keyed by its spec kind.
func (r *Registry) Register(res ports.Resource) error {
	if res == nil {
		return fmt.Errorf("resource is nil")
	}
	kind := res.Spec().Kind
	if kind == "" {
		return fmt.Errorf("resource kind is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[kind]; exists {
		return fmt.Errorf("resource for kind %q already registered", kind)
	}
	r.resources[kind] = res
	return nil
}

// RegisterFactory registers the resource produced by factory.
func (r *Registry) RegisterFactory(factory func() (ports.Resource, error)) error {
	if factory == nil {
		return fmt.Errorf("resource factory is nil")
	}
	res, err := factory()
	if err != nil {
		return fmt.Errorf("construct resource: %w", err)
	}
	return r.Register(res)
}

// Get returns the resource for kind.
func (r *Registry) Get(kind string) (ports.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[kind]
	if !ok {
		return nil, reconcile.NewError(reconcile.ErrCodeNotFound, "resource kind not registered", nil, map[string]interface{}{
			"kind":      kind,
			"available": r.kindsLocked(),
		})
	}
	return res, nil
}

// Spec implements schema.Catalog.
func (r *Registry) Spec(kind string) (schema.Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[kind]
	if !ok {
		return schema.Spec{}, false
	}
	return res.Spec(), true
}

// List returns every resource sorted by kind.
func (r *Registry) List() []ports.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ports.Resource, 0, len(r.resources))
	for _, kind := range r.kindsLocked() {
		out = append(out, r.resources[kind])
	}
	return out
}

// Kinds returns the registered kinds sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kindsLocked()
}

func (r *Registry) kindsLocked() []string {
	kinds := make([]string, 0, len(r.resources))
	for kind := range r.resources {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
