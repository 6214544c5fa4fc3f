package engine

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/ccreconcile/internal/differ"
	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
)

// itemRun holds the per-item state threaded through the machine.
type itemRun struct {
	w       work
	cfg     reconcile.PassConfig
	m       *machine
	result  reconcile.ItemResult
	have    reconcile.Have
	want    schema.Record
	verdict reconcile.Verdict
	step    step
}

func (r *itemRun) fail(ctx context.Context, err error) reconcile.ItemResult {
	if !r.m.terminal() {
		_ = r.m.fire(ctx, EventFail)
	}
	if reconcile.CodeOf(err) == reconcile.ErrCodeCancelled {
		err = reconcile.NewError(reconcile.ErrCodeTimeout, "item interrupted by cancellation", err, nil)
	}
	derr := reconcile.AsDomainError(err)
	r.result.Action = reconcile.ActionFailed
	r.result.Error = derr
	r.result.Message = derr.Error()
	r.result.States = r.m.states()
	return r.result
}

func (r *itemRun) done(ctx context.Context, action reconcile.Action, message string) reconcile.ItemResult {
	if err := r.m.fire(ctx, EventFinish); err != nil {
		return r.fail(ctx, internalError(err))
	}
	r.result.Action = action
	r.result.Message = message
	r.result.States = r.m.states()
	return r.result
}

func (r *itemRun) advance(ctx context.Context, event string) error {
	if err := r.m.fire(ctx, event); err != nil {
		return internalError(err)
	}
	return nil
}

func internalError(err error) *reconcile.DomainError {
	return reconcile.NewError(reconcile.ErrCodeInternal, "item state machine rejected a transition", err, nil)
}

// reconcileItem walks one item through the machine. It never returns an
// error: every failure is recorded on the result.
func (d *Driver) reconcileItem(ctx context.Context, cfg reconcile.PassConfig, tracker ports.TaskTracker, w work) reconcile.ItemResult {
	r := &itemRun{
		w:   w,
		cfg: cfg,
		m:   newMachine(),
		result: reconcile.ItemResult{
			Index:      w.item.Index(),
			Kind:       w.item.Kind(),
			NaturalKey: w.item.Key(),
			DryRun:     cfg.DryRun,
		},
	}

	if err := ctx.Err(); err != nil {
		return r.fail(ctx, reconcile.NewError(reconcile.ErrCodeTimeout, "pass cancelled before the item started", err, nil))
	}
	if err := r.advance(ctx, EventValidate); err != nil {
		return r.fail(ctx, err)
	}

	if !cfg.Deleting() {
		if err := d.resolveLookups(ctx, cfg, w); err != nil {
			return r.fail(ctx, err)
		}
	}
	have, err := d.observe(ctx, cfg, w)
	if err != nil {
		return r.fail(ctx, err)
	}
	r.have = have
	if err := r.advance(ctx, EventObserve); err != nil {
		return r.fail(ctx, err)
	}

	r.want = buildWant(w.item, have, cfg.Deleting())
	r.verdict = differ.Compare(w.item.Spec, have, r.want)
	r.step = decide(cfg.State, r.verdict)
	r.result.Verdict = r.verdict.Kind
	r.result.Changed = r.verdict.Changed
	if err := r.advance(ctx, EventPlan); err != nil {
		return r.fail(ctx, err)
	}
	d.log(ctx, "debug", "item planned",
		"kind", w.item.Kind(),
		"natural_key", w.item.Key(),
		"verdict", r.verdict.Kind.String(),
		"changed", r.verdict.Changed,
	)

	switch r.step {
	case stepSkip:
		return r.done(ctx, reconcile.ActionNone, skipMessage(cfg, w))
	case stepConflict:
		r.result.Changed = []string{r.verdict.Field}
		return r.fail(ctx, conflictError(w.item.Spec, have, r.want, r.verdict.Field))
	}

	r.result.Diff = planDiff(w.item.Spec, have, r.want, r.step)
	if cfg.DryRun {
		return r.done(ctx, r.step.action(), fmt.Sprintf("would %s %s", r.step.verb(), w.label()))
	}

	return d.apply(ctx, tracker, r)
}

func skipMessage(cfg reconcile.PassConfig, w work) string {
	if cfg.Deleting() {
		return fmt.Sprintf("%s is already absent", w.label())
	}
	return fmt.Sprintf("%s is up to date", w.label())
}

// apply submits the write, awaits its task, and optionally verifies.
func (d *Driver) apply(ctx context.Context, tracker ports.TaskTracker, r *itemRun) reconcile.ItemResult {
	w := r.w
	if err := r.advance(ctx, EventAct); err != nil {
		return r.fail(ctx, err)
	}

	handle, err := d.submit(ctx, r)
	if err != nil {
		return r.fail(ctx, err)
	}
	r.result.TaskID = handle.Token
	if err := r.advance(ctx, EventAwait); err != nil {
		return r.fail(ctx, err)
	}

	op := r.step.operation()
	outcome := tracker.Await(ctx, handle, fmt.Sprintf("%s %s", op, w.label()), w.res.Sentinels(op))
	d.metrics.ObserveHistogram(ctx, ports.MetricTaskWaitSeconds, outcome.Elapsed.Seconds(), map[string]string{"kind": w.item.Kind()})
	if err := outcome.Err(handle.Token); err != nil {
		return r.fail(ctx, err)
	}

	message := fmt.Sprintf("%s %s", r.step.action(), w.label())
	if !r.cfg.Verify {
		return r.done(ctx, r.step.action(), message)
	}

	if err := r.advance(ctx, EventVerify); err != nil {
		return r.fail(ctx, err)
	}
	if err := d.verify(ctx, r); err != nil {
		return r.fail(ctx, err)
	}
	return r.done(ctx, r.step.action(), message)
}

func (d *Driver) submit(ctx context.Context, r *itemRun) (reconcile.TaskHandle, error) {
	coll := r.w.res.Collection()
	switch r.step {
	case stepCreate:
		return d.gw.Create(ctx, coll, r.w.res.Encode(r.want))
	case stepUpdate:
		return d.gw.Update(ctx, coll, r.have.ID, r.w.res.Encode(r.verdict.Patch))
	case stepDelete:
		return d.gw.Delete(ctx, coll, r.have.ID)
	}
	return reconcile.TaskHandle{}, reconcile.NewError(reconcile.ErrCodeInternal, "nothing to submit", nil, nil)
}

// verify re-reads the object after a successful task and requires it to
// match want, or to be gone after a delete.
func (d *Driver) verify(ctx context.Context, r *itemRun) error {
	var (
		after reconcile.Have
		err   error
	)
	if r.step == stepUpdate {
		after, err = d.refetch(ctx, r.w, r.have.ID)
	} else {
		after, err = d.observe(ctx, r.cfg, r.w)
	}
	if err != nil {
		return err
	}

	if r.step == stepDelete {
		if after.Exists {
			return reconcile.NewPostconditionError("absent", nil)
		}
		return nil
	}
	if !after.Exists {
		return reconcile.NewPostconditionError("present", nil)
	}

	verdict := differ.Compare(r.w.item.Spec, after, r.want)
	switch verdict.Kind {
	case reconcile.VerdictEqual:
		return nil
	case reconcile.VerdictUnsupported:
		return reconcile.NewPostconditionError("equal", []string{verdict.Field})
	}
	return reconcile.NewPostconditionError("equal", verdict.Changed)
}
