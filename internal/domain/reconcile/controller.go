package reconcile

import (
	"fmt"
	"time"
)

// Operation names a gateway call. Used for metrics and call accounting.
type Operation string

const (
	OpList       Operation = "list"
	OpGet        Operation = "get"
	OpCreate     Operation = "create"
	OpUpdate     Operation = "update"
	OpDelete     Operation = "delete"
	OpTaskStatus Operation = "task_status"
	OpTaskDetail Operation = "task_detail"
	OpVersion    Operation = "version"
)

// IsWrite reports whether the operation mutates controller state.
func (o Operation) IsWrite() bool {
	return o == OpCreate || o == OpUpdate || o == OpDelete
}

// Collection describes a controller listing endpoint and its item routes.
type Collection struct {
	Name string
	// Path lists and creates objects, e.g. /dna/intent/api/v1/sda/transitNetworks.
	Path string
	// ItemPath addresses one object; "{id}" is replaced by the opaque id.
	// Empty means Path with an id query parameter.
	ItemPath string
	IDField  string
	// IDParam is the query parameter carrying the id when no item route
	// applies. Defaults to IDKey().
	IDParam string
	// GetByQuery fetches single objects from Path filtered by IDParam even
	// when ItemPath is set.
	GetByQuery bool
	// OffsetBase is the offset of the first element (Catalyst Center uses 1).
	OffsetBase int
	// UpdateOnCollection sends updates to Path with the id in the payload.
	UpdateOnCollection bool
	// WrapPayload sends write payloads as a single-element list.
	WrapPayload bool
}

// IDKey returns the payload key holding the opaque id.
func (c Collection) IDKey() string {
	if c.IDField == "" {
		return "id"
	}
	return c.IDField
}

// IDQueryParam returns the query parameter that selects one object.
func (c Collection) IDQueryParam() string {
	if c.IDParam == "" {
		return c.IDKey()
	}
	return c.IDParam
}

// Filter narrows a list call by query parameters.
type Filter map[string]string

// Page is one slice of a listing.
type Page struct {
	Items []map[string]any
	// Total is the size of the full listing when the controller reports it, else -1.
	Total int
}

// TaskHandle is the token a write call returns.
type TaskHandle struct {
	Token string
	// Request is a snapshot of the submitting call for diagnostics.
	Request RequestSnapshot
}

// RequestSnapshot records what was submitted.
type RequestSnapshot struct {
	Operation  Operation
	Collection string
	ID         string
	Payload    map[string]any
}

// TaskStatus is one poll of a task.
type TaskStatus struct {
	ID            string
	Status        string
	IsError       bool
	Progress      string
	FailureReason string
}

// TaskDetail is the controller's full report for a finished task.
type TaskDetail struct {
	ID            string
	Progress      string
	Data          string
	FailureReason string
	IsError       bool
	Raw           map[string]any
}

// Sentinels are progress strings a call site declares as terminal.
type Sentinels struct {
	Success []string
	Failure []string
}

// OutcomeKind classifies a terminal task result.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
	OutcomeTimeout
	// OutcomeUnreachable means status polling itself kept failing.
	OutcomeUnreachable
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeUnreachable:
		return "unreachable"
	}
	return "unknown"
}

// TaskOutcome is the terminal status produced by the tracker.
type TaskOutcome struct {
	Kind   OutcomeKind
	Detail TaskDetail
	Reason string
	// Cause distinguishes cancellation from an elapsed deadline on timeouts
	// and holds the polling error when the task was unreachable.
	Cause   error
	Polls   int
	Elapsed time.Duration
}

// Err converts a non-success outcome into a domain error.
func (o TaskOutcome) Err(task string) error {
	switch o.Kind {
	case OutcomeSuccess:
		return nil
	case OutcomeFailure:
		return NewControllerError(task, o.Reason)
	case OutcomeTimeout:
		return NewTimeoutError(task, o.Cause)
	case OutcomeUnreachable:
		if derr := AsDomainError(o.Cause); derr != nil && derr.Code == ErrCodeTransport {
			return derr
		}
		return NewTransportError(string(OpTaskStatus), o.Cause)
	}
	return NewError(ErrCodeInternal, fmt.Sprintf("unknown outcome %d", o.Kind), nil, nil)
}
