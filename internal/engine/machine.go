package engine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// Item states.
const (
	StateStart     = "start"
	StateValidated = "validated"
	StateObserved  = "observed"
	StatePlanned   = "planned"
	StateActing    = "acting"
	StateAwaiting  = "awaiting"
	StateVerifying = "verifying"
	StateDone      = "done"
	StateFailed    = "failed"
)

// Item events.
const (
	EventValidate = "validate"
	EventObserve  = "observe"
	EventPlan     = "plan"
	EventAct      = "act"
	EventAwait    = "await"
	EventVerify   = "verify"
	EventFinish   = "finish"
	EventFail     = "fail"
)

var itemEvents = fsm.Events{
	{Name: EventValidate, Src: []string{StateStart}, Dst: StateValidated},
	{Name: EventObserve, Src: []string{StateValidated}, Dst: StateObserved},
	{Name: EventPlan, Src: []string{StateObserved}, Dst: StatePlanned},
	{Name: EventAct, Src: []string{StatePlanned}, Dst: StateActing},
	{Name: EventAwait, Src: []string{StateActing}, Dst: StateAwaiting},
	{Name: EventVerify, Src: []string{StateAwaiting}, Dst: StateVerifying},
	{Name: EventFinish, Src: []string{StatePlanned, StateAwaiting, StateVerifying}, Dst: StateDone},
	{
		Name: EventFail,
		Src:  []string{StateStart, StateValidated, StateObserved, StatePlanned, StateActing, StateAwaiting, StateVerifying},
		Dst:  StateFailed,
	},
}

// machine tracks one item through the reconciliation states.
type machine struct {
	fsm   *fsm.FSM
	trail []string
}

func newMachine() *machine {
	m := &machine{trail: []string{StateStart}}
	m.fsm = fsm.NewFSM(StateStart, itemEvents, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			m.trail = append(m.trail, e.Dst)
		},
	})
	return m
}

// fire applies event. Transitions run even after the pass context is
// cancelled so that items can still reach the failed state.
func (m *machine) fire(ctx context.Context, event string) error {
	if err := m.fsm.Event(context.WithoutCancel(ctx), event); err != nil {
		return fmt.Errorf("item transition %q from %q: %w", event, m.fsm.Current(), err)
	}
	return nil
}

func (m *machine) current() string {
	return m.fsm.Current()
}

func (m *machine) terminal() bool {
	s := m.fsm.Current()
	return s == StateDone || s == StateFailed
}

func (m *machine) states() []string {
	return append([]string(nil), m.trail...)
}
