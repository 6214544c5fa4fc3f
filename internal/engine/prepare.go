package engine

import (
	"context"
	"errors"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
	apperrors "github.com/alexisbeaulieu97/ccreconcile/pkg/errors"
)

// prepare validates records and binds each to its resource. Structural,
// cross-field and ordering problems are gathered across all records and
// returned as one VALIDATION_ERROR. It performs no network calls.
func (d *Driver) prepare(cfg reconcile.PassConfig, records []schema.Record) ([]work, error) {
	cfg = cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	docs, err := schema.Validate(d.registry, records, schema.Options{
		Deleting:    cfg.Deleting(),
		KindKey:     KindKey,
		DefaultKind: cfg.Kind,
	})
	if err != nil {
		return nil, invalidConfig(err)
	}

	items := make([]work, 0, len(docs))
	var vs []apperrors.Violation
	for _, doc := range docs {
		res, err := d.registry.Get(doc.Kind)
		if err != nil {
			return nil, err
		}
		items = append(items, work{item: reconcile.NewItem(res.Spec(), doc), res: res})

		if cfg.Deleting() {
			continue
		}
		for _, cerr := range splitErrors(res.CrossValidate(doc.Values)) {
			vs = append(vs, apperrors.Violation{Index: doc.Index, Message: cerr.Error()})
		}
	}

	graph, err := buildGraph(items)
	if err != nil {
		return nil, reconcile.NewValidationError(err.Error(), nil)
	}
	vs = append(vs, orderViolations(graph, cfg.Deleting())...)

	if err := apperrors.NewViolationsError(vs); err != nil {
		return nil, invalidConfig(err)
	}
	return items, nil
}

// Validate checks records without contacting the controller.
func (d *Driver) Validate(cfg reconcile.PassConfig, records []schema.Record) error {
	_, err := d.prepare(cfg, records)
	return err
}

func invalidConfig(err error) *reconcile.DomainError {
	var details map[string]interface{}
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) && len(verr.Violations) > 0 {
		msgs := make([]string, 0, len(verr.Violations))
		for _, v := range verr.Violations {
			msgs = append(msgs, v.String())
		}
		details = map[string]interface{}{"violations": msgs}
	}
	return reconcile.NewError(reconcile.ErrCodeValidation, "invalid configuration", err, details)
}

func splitErrors(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// requiredVersion is the explicit pass minimum or, when unset, the highest
// minimum declared by the kinds present in the pass.
func requiredVersion(cfg reconcile.PassConfig, items []work) (*semver.Version, error) {
	if cfg.MinVersion != "" {
		v, err := semver.NewVersion(cfg.MinVersion)
		if err != nil {
			return nil, reconcile.NewValidationError("invalid minimum controller version", map[string]interface{}{
				"version": cfg.MinVersion,
			})
		}
		return v, nil
	}

	var versions []*semver.Version
	for _, w := range items {
		raw := w.res.MinVersion()
		if raw == "" {
			continue
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, reconcile.NewError(reconcile.ErrCodeInternal, "invalid minimum version for kind "+w.item.Kind(), err, nil)
		}
		versions = append(versions, v)
	}
	if len(versions) == 0 {
		return nil, nil
	}
	sort.Sort(semver.Collection(versions))
	return versions[len(versions)-1], nil
}

func (d *Driver) checkVersion(ctx context.Context, cfg reconcile.PassConfig, items []work) error {
	if len(items) == 0 {
		return nil
	}
	minimum, err := requiredVersion(cfg, items)
	if err != nil || minimum == nil {
		return err
	}

	observed, err := d.gw.Version(ctx)
	if err != nil {
		return err
	}
	if observed.LessThan(minimum) {
		return reconcile.NewVersionError(minimum.String(), observed.String())
	}
	d.log(ctx, "debug", "controller version accepted", "observed", observed.String(), "minimum", minimum.String())
	return nil
}
