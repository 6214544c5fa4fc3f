package reconcile

import (
	"fmt"
	"strings"
)

// State is the desired end-state of a pass.
type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
)

// ParseState accepts the canonical names and the module labels merged/deleted.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present", "merged":
		return StatePresent, nil
	case "absent", "deleted":
		return StateAbsent, nil
	}
	return "", fmt.Errorf("unknown state %q (expected merged, deleted, present or absent)", s)
}

// Label returns the module-facing name of the state.
func (s State) Label() string {
	if s == StateAbsent {
		return "deleted"
	}
	return "merged"
}
