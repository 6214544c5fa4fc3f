// Package tasks waits for controller tasks to reach a terminal state.
package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"k8s.io/utils/clock"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
)

// maxStatusErrors is how many consecutive failed status polls end tracking.
const maxStatusErrors = 3

// State is the interpretation of one status poll.
type State int

const (
	InProgress State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "in_progress"
}

// Tracker polls task status at a fixed interval until a terminal state or
// the deadline. It never resubmits work.
type Tracker struct {
	gw       ports.Gateway
	clock    clock.Clock
	deadline time.Duration
	interval time.Duration
	logger   ports.Logger
}

var _ ports.TaskTracker = (*Tracker)(nil)

// Option customises a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithLogger attaches a logger.
func WithLogger(l ports.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// New creates a tracker with deadline timeout and poll interval.
func New(gw ports.Gateway, timeout, interval time.Duration, opts ...Option) *Tracker {
	if timeout <= 0 {
		timeout = reconcile.DefaultTaskTimeout
	}
	if interval <= 0 {
		interval = reconcile.DefaultPollInterval
	}
	t := &Tracker{gw: gw, clock: clock.RealClock{}, deadline: timeout, interval: interval}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Polls returns the number of status calls made before giving up.
func (t *Tracker) Polls() int {
	n := int(t.deadline / t.interval)
	if n < 1 {
		return 1
	}
	return n
}

// Await polls the task behind handle. The first status call is immediate;
// later ones are spaced by the poll interval. A missing task, or several
// failed status calls in a row, ends polling with an unreachable outcome. Cancellation ends polling at
// the next tick and yields a timeout whose cause is the context error.
func (t *Tracker) Await(ctx context.Context, handle reconcile.TaskHandle, task string, sentinels reconcile.Sentinels) reconcile.TaskOutcome {
	start := t.clock.Now()
	polls := t.Polls()

	var schedule backoff.BackOff = &backoff.StopBackOff{}
	if polls > 1 {
		schedule = backoff.WithMaxRetries(backoff.NewConstantBackOff(t.interval), uint64(polls-1))
	}
	schedule.Reset()

	var lastErr error
	failures := 0
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return t.expire(handle, attempt-1, start, err)
		}

		status, err := t.gw.TaskStatus(ctx, handle.Token)
		if err != nil {
			if ctx.Err() != nil {
				return t.expire(handle, attempt, start, ctx.Err())
			}
			lastErr = err
			failures++
			t.log(ctx, "task status poll failed", "task", task, "task_id", handle.Token, "attempt", attempt, "error", err)
			if reconcile.CodeOf(err) == reconcile.ErrCodeNotFound || failures >= maxStatusErrors {
				return t.unreachable(handle, attempt, start, err)
			}
		} else {
			failures = 0
			switch Interpret(status, sentinels) {
			case Succeeded:
				return t.succeed(ctx, handle, task, status, attempt, start)
			case Failed:
				return t.fail(ctx, handle, task, status, attempt, start)
			}
		}

		wait := schedule.NextBackOff()
		if wait == backoff.Stop {
			if lastErr == nil {
				lastErr = context.DeadlineExceeded
			}
			return t.expire(handle, attempt, start, lastErr)
		}

		select {
		case <-ctx.Done():
			return t.expire(handle, attempt, start, ctx.Err())
		case <-t.clock.After(wait):
		}
	}
}

func (t *Tracker) succeed(ctx context.Context, handle reconcile.TaskHandle, task string, status reconcile.TaskStatus, polls int, start time.Time) reconcile.TaskOutcome {
	detail, err := t.gw.TaskDetail(ctx, handle.Token)
	if err != nil {
		t.log(ctx, "task detail unavailable", "task", task, "task_id", handle.Token, "error", err)
		detail = reconcile.TaskDetail{ID: handle.Token, Progress: status.Progress}
	}
	return reconcile.TaskOutcome{
		Kind:    reconcile.OutcomeSuccess,
		Detail:  detail,
		Polls:   polls,
		Elapsed: t.clock.Since(start),
	}
}

func (t *Tracker) fail(ctx context.Context, handle reconcile.TaskHandle, task string, status reconcile.TaskStatus, polls int, start time.Time) reconcile.TaskOutcome {
	detail, err := t.gw.TaskDetail(ctx, handle.Token)
	if err != nil {
		t.log(ctx, "task detail unavailable", "task", task, "task_id", handle.Token, "error", err)
		detail = reconcile.TaskDetail{ID: handle.Token, Progress: status.Progress, FailureReason: status.FailureReason, IsError: true}
	}
	return reconcile.TaskOutcome{
		Kind:    reconcile.OutcomeFailure,
		Detail:  detail,
		Reason:  failureReason(detail, status),
		Polls:   polls,
		Elapsed: t.clock.Since(start),
	}
}

func (t *Tracker) expire(handle reconcile.TaskHandle, polls int, start time.Time, cause error) reconcile.TaskOutcome {
	return reconcile.TaskOutcome{
		Kind:    reconcile.OutcomeTimeout,
		Detail:  reconcile.TaskDetail{ID: handle.Token},
		Reason:  "task did not reach a terminal state",
		Cause:   cause,
		Polls:   polls,
		Elapsed: t.clock.Since(start),
	}
}

func (t *Tracker) unreachable(handle reconcile.TaskHandle, polls int, start time.Time, cause error) reconcile.TaskOutcome {
	return reconcile.TaskOutcome{
		Kind:    reconcile.OutcomeUnreachable,
		Detail:  reconcile.TaskDetail{ID: handle.Token},
		Reason:  "task status unavailable",
		Cause:   cause,
		Polls:   polls,
		Elapsed: t.clock.Since(start),
	}
}

func (t *Tracker) log(ctx context.Context, msg string, fields ...interface{}) {
	if t.logger != nil {
		t.logger.Warn(ctx, msg, fields...)
	}
}

// Interpret classifies a status poll. Error flags and failure sentinels win.
// When success sentinels are declared, a non-empty progress string must
// match one of them; otherwise a SUCCESS status is terminal. Anything else
// is in progress.
func Interpret(status reconcile.TaskStatus, sentinels reconcile.Sentinels) State {
	if status.IsError || strings.EqualFold(status.Status, "FAILURE") {
		return Failed
	}
	if matchesAny(status.Progress, sentinels.Failure) {
		return Failed
	}
	if len(sentinels.Success) > 0 && strings.TrimSpace(status.Progress) != "" {
		if matchesAny(status.Progress, sentinels.Success) {
			return Succeeded
		}
		return InProgress
	}
	if strings.EqualFold(status.Status, "SUCCESS") {
		return Succeeded
	}
	return InProgress
}

func matchesAny(progress string, sentinels []string) bool {
	p := strings.ToLower(strings.TrimSpace(progress))
	if p == "" {
		return false
	}
	for _, s := range sentinels {
		if s != "" && strings.Contains(p, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func failureReason(detail reconcile.TaskDetail, status reconcile.TaskStatus) string {
	for _, candidate := range []string{detail.FailureReason, status.FailureReason, detail.Progress, status.Progress} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return "task failed without a reason"
}
