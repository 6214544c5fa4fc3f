package engine

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/alexisbeaulieu97/ccreconcile/internal/differ"
	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/gateway"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
)

// resolveLookups maps user-supplied natural keys of referenced objects to
// their opaque ids and caches them on the item.
func (d *Driver) resolveLookups(ctx context.Context, cfg reconcile.PassConfig, w work) error {
	for _, f := range w.item.Spec.Fields {
		if f.Lookup == nil || !w.item.Document.Has(f.Name) {
			continue
		}
		coll, ok := w.res.LookupCollection(f.Lookup.Collection)
		if !ok {
			return reconcile.NewError(reconcile.ErrCodeInternal,
				fmt.Sprintf("kind %s has no collection %q", w.item.Kind(), f.Lookup.Collection), nil, nil)
		}

		for _, value := range lookupValues(w.item.Document.Values[f.Name]) {
			if _, cached := w.item.ResolvedID(f.Name, value); cached {
				continue
			}
			id, err := d.lookup(ctx, cfg, coll, *f.Lookup, value)
			if err != nil {
				return err
			}
			w.item.Resolve(f.Name, value, id)
			d.log(ctx, "debug", "resolved reference", "field", f.Name, "value", value, "id", id)
		}
	}
	return nil
}

func (d *Driver) lookup(ctx context.Context, cfg reconcile.PassConfig, coll reconcile.Collection, l schema.Lookup, value string) (string, error) {
	objects, _, err := gateway.ListAll(ctx, d.gw, coll, reconcile.Filter{l.FilterKey: value}, cfg.PageSize)
	if err != nil {
		return "", err
	}
	for _, obj := range objects {
		candidate, ok := obj[l.FilterKey]
		if !ok || fmt.Sprint(candidate) != value {
			continue
		}
		if id, ok := obj[l.IDField]; ok && id != nil && fmt.Sprint(id) != "" {
			return fmt.Sprint(id), nil
		}
	}
	return "", reconcile.NewNotFoundError(coll.Name, value)
}

func lookupValues(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// observe lists the item's collection filtered by natural key and returns
// the first object whose decoded key matches. Reads only.
func (d *Driver) observe(ctx context.Context, cfg reconcile.PassConfig, w work) (reconcile.Have, error) {
	spec := w.item.Spec
	key := w.item.Key()

	objects, calls, err := gateway.ListAll(ctx, d.gw, w.res.Collection(), w.res.ObserveFilter(key), cfg.PageSize)
	if err != nil {
		return reconcile.Missing(), err
	}
	d.log(ctx, "debug", "observed collection", "kind", spec.Kind, "natural_key", key, "objects", len(objects), "list_calls", calls)

	keyField := spec.KeyField()
	for _, raw := range objects {
		id, values := w.res.Decode(raw)
		candidate, _ := values[spec.NaturalKey].(string)
		if !sameKey(keyField, candidate, key) {
			continue
		}
		return reconcile.Have{
			Exists: true,
			ID:     id,
			Values: differ.Normalize(spec, values),
			Raw:    raw,
		}, nil
	}
	return reconcile.Missing(), nil
}

// refetch reads one object by id. A missing object is reported as absent.
func (d *Driver) refetch(ctx context.Context, w work, id string) (reconcile.Have, error) {
	raw, err := d.gw.Get(ctx, w.res.Collection(), id)
	if err != nil {
		if reconcile.CodeOf(err) == reconcile.ErrCodeNotFound {
			return reconcile.Missing(), nil
		}
		return reconcile.Missing(), err
	}
	got, values := w.res.Decode(raw)
	if got == "" {
		got = id
	}
	return reconcile.Have{
		Exists: true,
		ID:     got,
		Values: differ.Normalize(w.item.Spec, values),
		Raw:    raw,
	}, nil
}

func sameKey(f schema.Field, a, b string) bool {
	a, b = norm.NFC.String(a), norm.NFC.String(b)
	if f.CaseInsensitive {
		return strings.EqualFold(a, b)
	}
	return a == b
}
