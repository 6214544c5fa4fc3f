package engine

import (
	"github.com/alexisbeaulieu97/ccreconcile/internal/differ"
	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
	"github.com/alexisbeaulieu97/ccreconcile/pkg/diff"
)

// step is the action chosen for a planned item.
type step int

const (
	stepSkip step = iota
	stepCreate
	stepUpdate
	stepDelete
	stepConflict
)

func (s step) operation() reconcile.Operation {
	switch s {
	case stepCreate:
		return reconcile.OpCreate
	case stepUpdate:
		return reconcile.OpUpdate
	case stepDelete:
		return reconcile.OpDelete
	}
	return ""
}

func (s step) action() reconcile.Action {
	switch s {
	case stepCreate:
		return reconcile.ActionCreated
	case stepUpdate:
		return reconcile.ActionUpdated
	case stepDelete:
		return reconcile.ActionDeleted
	case stepConflict:
		return reconcile.ActionFailed
	}
	return reconcile.ActionNone
}

func (s step) verb() string {
	switch s {
	case stepCreate:
		return "create"
	case stepUpdate:
		return "update"
	case stepDelete:
		return "delete"
	}
	return ""
}

// dispatch maps the desired end state and the diff verdict to a step.
var dispatch = map[reconcile.State]map[reconcile.VerdictKind]step{
	reconcile.StatePresent: {
		reconcile.VerdictAbsent:      stepCreate,
		reconcile.VerdictDiffers:     stepUpdate,
		reconcile.VerdictEqual:       stepSkip,
		reconcile.VerdictUnsupported: stepConflict,
	},
	reconcile.StateAbsent: {
		reconcile.VerdictAbsent:      stepSkip,
		reconcile.VerdictDiffers:     stepDelete,
		reconcile.VerdictEqual:       stepDelete,
		reconcile.VerdictUnsupported: stepDelete,
	},
}

func decide(state reconcile.State, verdict reconcile.Verdict) step {
	return dispatch[state][verdict.Kind]
}

// buildWant derives the desired record. Lookup values are replaced by the
// resolved ids. When the object exists only user-supplied keys are managed,
// so omitted fields keep their observed values. Deletes manage no fields.
func buildWant(item *reconcile.Item, have reconcile.Have, deleting bool) schema.Record {
	if deleting {
		return schema.Record{}
	}

	doc := item.Document
	want := make(schema.Record, len(doc.Values))
	for _, f := range item.Spec.Fields {
		value, ok := doc.Values[f.Name]
		if !ok || value == nil {
			continue
		}
		if have.Exists && !doc.Has(f.Name) {
			continue
		}
		if f.Lookup != nil {
			value = resolveValue(item, f.Name, value)
		}
		want[f.Name] = value
	}
	return differ.Normalize(item.Spec, want)
}

func resolveValue(item *reconcile.Item, field string, value any) any {
	switch v := value.(type) {
	case string:
		if id, ok := item.ResolvedID(field, v); ok {
			return id
		}
	case []any:
		out := make([]any, 0, len(v))
		for _, elem := range v {
			s, isString := elem.(string)
			if id, ok := item.ResolvedID(field, s); isString && ok {
				out = append(out, id)
				continue
			}
			out = append(out, elem)
		}
		return out
	}
	return value
}

// desired overlays want on the observed values, giving the full record the
// object should have after the write.
func desired(have reconcile.Have, want schema.Record) schema.Record {
	out := make(schema.Record, len(have.Values)+len(want))
	for k, v := range have.Values {
		out[k] = v
	}
	for k, v := range want {
		out[k] = v
	}
	return out
}

// planDiff renders have against the post-write record with no-log fields
// masked.
func planDiff(spec schema.Spec, have reconcile.Have, want schema.Record, s step) string {
	var before, after any
	if have.Exists {
		before = redact(spec, have.Values)
	}
	if s != stepDelete {
		after = redact(spec, desired(have, want))
	}
	out, err := diff.Documents(before, after)
	if err != nil {
		return ""
	}
	return out
}

const maskedValue = "********"

func redact(spec schema.Spec, rec schema.Record) schema.Record {
	out := make(schema.Record, len(rec))
	for k, v := range rec {
		if f, ok := spec.Field(k); ok && f.NoLog && v != nil {
			v = maskedValue
		}
		out[k] = v
	}
	return out
}

func conflictError(spec schema.Spec, have reconcile.Have, want schema.Record, field string) *reconcile.DomainError {
	hv, wv := have.Values[field], want[field]
	if f, ok := spec.Field(field); ok && f.NoLog {
		hv, wv = maskedValue, maskedValue
	}
	return reconcile.NewConflictError(field, hv, wv)
}
