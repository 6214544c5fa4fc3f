package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
)

// steppingClock advances virtual time whenever the tracker waits.
type steppingClock struct {
	*clocktesting.FakeClock
	waits []time.Duration
	onWait func()
}

func newSteppingClock() *steppingClock {
	return &steppingClock{FakeClock: clocktesting.NewFakeClock(time.Unix(0, 0))}
}

func (c *steppingClock) After(d time.Duration) <-chan time.Time {
	c.waits = append(c.waits, d)
	if c.onWait != nil {
		c.onWait()
	}
	c.Step(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

// scriptedGateway replays task statuses; the last one repeats.
type scriptedGateway struct {
	ports.Gateway
	statuses    []reconcile.TaskStatus
	statusErrs  map[int]error
	detail      reconcile.TaskDetail
	detailErr   error
	statusCalls int
	detailCalls int
}

func (g *scriptedGateway) TaskStatus(context.Context, string) (reconcile.TaskStatus, error) {
	g.statusCalls++
	if err := g.statusErrs[g.statusCalls]; err != nil {
		return reconcile.TaskStatus{}, err
	}
	i := g.statusCalls - 1
	if i >= len(g.statuses) {
		i = len(g.statuses) - 1
	}
	return g.statuses[i], nil
}

func (g *scriptedGateway) TaskDetail(context.Context, string) (reconcile.TaskDetail, error) {
	g.detailCalls++
	return g.detail, g.detailErr
}

func pending() reconcile.TaskStatus { return reconcile.TaskStatus{Status: "PENDING"} }
func success() reconcile.TaskStatus { return reconcile.TaskStatus{Status: "SUCCESS"} }

var handle = reconcile.TaskHandle{Token: "task-1"}

func TestAwaitSucceedsAfterKPlusOneStatusCalls(t *testing.T) {
	for k := 0; k < 4; k++ {
		statuses := make([]reconcile.TaskStatus, 0, k+1)
		for i := 0; i < k; i++ {
			statuses = append(statuses, pending())
		}
		statuses = append(statuses, success())

		gw := &scriptedGateway{statuses: statuses, detail: reconcile.TaskDetail{ID: "task-1", Data: "t-1"}}
		clk := newSteppingClock()
		tracker := New(gw, 20*time.Second, 2*time.Second, WithClock(clk))

		outcome := tracker.Await(context.Background(), handle, "create transit", reconcile.Sentinels{})
		require.Equal(t, reconcile.OutcomeSuccess, outcome.Kind)
		require.Equal(t, k+1, gw.statusCalls)
		require.Equal(t, 1, gw.detailCalls)
		require.Equal(t, k+1, outcome.Polls)
		require.Equal(t, "t-1", outcome.Detail.Data)
		require.Equal(t, time.Duration(k)*2*time.Second, outcome.Elapsed)
	}
}

func TestAwaitTimesOutAfterFloorDOverPStatusCalls(t *testing.T) {
	cases := []struct {
		deadline, interval time.Duration
		want               int
	}{
		{10 * time.Second, 2 * time.Second, 5},
		{11 * time.Second, 2 * time.Second, 5},
		{1 * time.Second, 2 * time.Second, 1},
		{2 * time.Second, 2 * time.Second, 1},
	}
	for _, tc := range cases {
		gw := &scriptedGateway{statuses: []reconcile.TaskStatus{pending()}}
		clk := newSteppingClock()
		tracker := New(gw, tc.deadline, tc.interval, WithClock(clk))

		outcome := tracker.Await(context.Background(), handle, "create transit", reconcile.Sentinels{})
		require.Equal(t, reconcile.OutcomeTimeout, outcome.Kind)
		require.Equal(t, tc.want, gw.statusCalls, "deadline %s interval %s", tc.deadline, tc.interval)
		require.Zero(t, gw.detailCalls)
		require.Len(t, clk.waits, tc.want-1)
		require.ErrorIs(t, outcome.Cause, context.DeadlineExceeded)
		require.Equal(t, reconcile.ErrCodeTimeout, reconcile.CodeOf(outcome.Err("create transit")))
	}
}

func TestAwaitFailureCarriesControllerReason(t *testing.T) {
	gw := &scriptedGateway{
		statuses: []reconcile.TaskStatus{pending(), {Status: "FAILURE"}},
		detail:   reconcile.TaskDetail{FailureReason: "ASN already in use", IsError: true},
	}
	tracker := New(gw, 10*time.Second, time.Second, WithClock(newSteppingClock()))

	outcome := tracker.Await(context.Background(), handle, "create transit", reconcile.Sentinels{})
	require.Equal(t, reconcile.OutcomeFailure, outcome.Kind)
	require.Equal(t, "ASN already in use", outcome.Reason)
	require.Equal(t, 2, gw.statusCalls)
	require.Equal(t, 1, gw.detailCalls)

	err := outcome.Err("create transit")
	require.Equal(t, reconcile.ErrCodeController, reconcile.CodeOf(err))
	require.Contains(t, err.Error(), "ASN already in use")
}

func TestAwaitToleratesTransientStatusErrors(t *testing.T) {
	gw := &scriptedGateway{
		statuses:   []reconcile.TaskStatus{pending(), pending(), success()},
		statusErrs: map[int]error{2: reconcile.NewTransportError("task_status", errors.New("reset"))},
	}
	tracker := New(gw, 10*time.Second, time.Second, WithClock(newSteppingClock()))

	outcome := tracker.Await(context.Background(), handle, "update transit", reconcile.Sentinels{})
	require.Equal(t, reconcile.OutcomeSuccess, outcome.Kind)
	require.Equal(t, 3, gw.statusCalls)
}

func TestAwaitGivesUpOnRepeatedStatusErrors(t *testing.T) {
	reset := reconcile.NewTransportError("task_status", errors.New("connection refused"))
	gw := &scriptedGateway{
		statuses:   []reconcile.TaskStatus{pending()},
		statusErrs: map[int]error{1: reset, 2: reset, 3: reset, 4: reset},
	}
	tracker := New(gw, 20*time.Minute, 2*time.Second, WithClock(newSteppingClock()))

	outcome := tracker.Await(context.Background(), handle, "create transit", reconcile.Sentinels{})
	require.Equal(t, reconcile.OutcomeUnreachable, outcome.Kind)
	require.Equal(t, 3, gw.statusCalls)
	require.Zero(t, gw.detailCalls)

	err := outcome.Err("create transit")
	require.Equal(t, reconcile.ErrCodeTransport, reconcile.CodeOf(err))
	require.ErrorContains(t, err, "connection refused")
}

func TestAwaitStopsWhenTaskIsMissing(t *testing.T) {
	gw := &scriptedGateway{
		statuses:   []reconcile.TaskStatus{pending()},
		statusErrs: map[int]error{2: reconcile.NewNotFoundError("task", "task-1")},
	}
	tracker := New(gw, time.Minute, time.Second, WithClock(newSteppingClock()))

	outcome := tracker.Await(context.Background(), handle, "create transit", reconcile.Sentinels{})
	require.Equal(t, reconcile.OutcomeUnreachable, outcome.Kind)
	require.Equal(t, 2, gw.statusCalls)
	require.Equal(t, reconcile.ErrCodeTransport, reconcile.CodeOf(outcome.Err("create transit")))
}

func TestAwaitSuccessWithoutDetailStillSucceeds(t *testing.T) {
	gw := &scriptedGateway{
		statuses:  []reconcile.TaskStatus{{Status: "SUCCESS", Progress: "done"}},
		detailErr: reconcile.NewNotFoundError("task", "task-1"),
	}
	tracker := New(gw, 10*time.Second, time.Second, WithClock(newSteppingClock()))

	outcome := tracker.Await(context.Background(), handle, "create transit", reconcile.Sentinels{})
	require.Equal(t, reconcile.OutcomeSuccess, outcome.Kind)
	require.Equal(t, "done", outcome.Detail.Progress)
}

func TestAwaitCancellationStopsAtNextTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &scriptedGateway{statuses: []reconcile.TaskStatus{pending()}}
	clk := newSteppingClock()
	clk.onWait = func() {
		if len(clk.waits) == 2 {
			cancel()
		}
	}
	tracker := New(gw, time.Minute, time.Second, WithClock(clk))

	outcome := tracker.Await(ctx, handle, "create transit", reconcile.Sentinels{})
	require.Equal(t, reconcile.OutcomeTimeout, outcome.Kind)
	require.ErrorIs(t, outcome.Cause, context.Canceled)
	require.LessOrEqual(t, gw.statusCalls, 3)
	require.Zero(t, gw.detailCalls)
}

func TestInterpret(t *testing.T) {
	sentinels := reconcile.Sentinels{
		Success: []string{"successfully created"},
		Failure: []string{"already exists"},
	}

	cases := []struct {
		name   string
		status reconcile.TaskStatus
		want   State
	}{
		{"error flag", reconcile.TaskStatus{IsError: true, Status: "SUCCESS"}, Failed},
		{"failure status", reconcile.TaskStatus{Status: "failure"}, Failed},
		{"failure sentinel", reconcile.TaskStatus{Progress: "Transit T1 already exists"}, Failed},
		{"success sentinel", reconcile.TaskStatus{Progress: "Successfully created transit"}, Succeeded},
		{"unknown progress", reconcile.TaskStatus{Progress: "Provisioning", Status: "SUCCESS"}, InProgress},
		{"status only", reconcile.TaskStatus{Status: "SUCCESS"}, Succeeded},
		{"pending", reconcile.TaskStatus{Status: "PENDING"}, InProgress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Interpret(tc.status, sentinels))
		})
	}

	require.Equal(t, InProgress, Interpret(reconcile.TaskStatus{Progress: "working"}, reconcile.Sentinels{}))
}
