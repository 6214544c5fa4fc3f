package reconcile

import (
	"fmt"
	"strings"
)

// Action is what a pass did to one item.
type Action string

const (
	ActionNone    Action = "none"
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
	ActionFailed  Action = "failed"
)

// IsChange reports whether the action modified the controller.
func (a Action) IsChange() bool {
	return a == ActionCreated || a == ActionUpdated || a == ActionDeleted
}

// ItemResult captures the outcome of one item.
type ItemResult struct {
	Index      int
	Kind       string
	NaturalKey string
	Action     Action
	Message    string
	Error      *DomainError
	Verdict    VerdictKind
	Changed    []string
	Diff       string
	TaskID     string
	// States is the trail of state machine states the item went through.
	States []string
	DryRun bool
}

// IsFailure returns true when the item failed.
func (r ItemResult) IsFailure() bool {
	return r.Action == ActionFailed
}

// FormatOutput returns a human-readable summary of the result.
func (r ItemResult) FormatOutput() string {
	if r.Error != nil {
		return r.Error.Error()
	}
	return r.Message
}

// Status is the overall verdict of a pass.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Counts tallies item actions.
type Counts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// ErrorInfo is the structured error attached to a report entry.
type ErrorInfo struct {
	Kind    ErrorCode              `json:"kind"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Entry is the per-item record handed back to the host.
type Entry struct {
	NaturalKey string     `json:"natural_key"`
	Kind       string     `json:"kind"`
	Action     Action     `json:"action"`
	Message    string     `json:"message"`
	Error      *ErrorInfo `json:"error,omitempty"`
	Diff       string     `json:"diff,omitempty"`
}

// Report is the aggregated outcome of a pass.
type Report struct {
	Changed  bool         `json:"changed"`
	Status   Status       `json:"status"`
	Msg      string       `json:"msg"`
	Response []Entry      `json:"response"`
	Counts   Counts       `json:"counts"`
	Error    *ErrorInfo   `json:"error,omitempty"`
	Items    []ItemResult `json:"-"`
}

// Failed reports whether the pass failed.
func (r Report) Failed() bool {
	return r.Status == StatusFailed
}

// ReportBuilder accumulates item results in order. Not safe for concurrent use.
type ReportBuilder struct {
	items   []ItemResult
	aborted *DomainError
	dryRun  bool
}

// NewReportBuilder creates an empty builder.
func NewReportBuilder(dryRun bool) *ReportBuilder {
	return &ReportBuilder{dryRun: dryRun}
}

// Add appends an item result.
func (b *ReportBuilder) Add(result ItemResult) {
	b.items = append(b.items, result)
}

// Abort marks the whole pass as failed.
func (b *ReportBuilder) Abort(err error) {
	b.aborted = AsDomainError(err)
}

// Aborted returns the pass-level error, if any.
func (b *ReportBuilder) Aborted() *DomainError {
	return b.aborted
}

// Results returns the results added so far.
func (b *ReportBuilder) Results() []ItemResult {
	return append([]ItemResult(nil), b.items...)
}

// Build assembles the final report.
func (b *ReportBuilder) Build() Report {
	report := Report{
		Response: make([]Entry, 0, len(b.items)),
		Items:    b.Results(),
	}

	for _, item := range b.items {
		switch item.Action {
		case ActionCreated:
			report.Counts.Created++
		case ActionUpdated:
			report.Counts.Updated++
		case ActionDeleted:
			report.Counts.Deleted++
		case ActionFailed:
			report.Counts.Failed++
		default:
			report.Counts.Unchanged++
		}
		if item.Action.IsChange() {
			report.Changed = true
		}
		report.Response = append(report.Response, Entry{
			NaturalKey: item.NaturalKey,
			Kind:       item.Kind,
			Action:     item.Action,
			Message:    item.Message,
			Error:      errorInfo(item.Error),
			Diff:       item.Diff,
		})
	}

	switch {
	case b.aborted != nil || report.Counts.Failed > 0:
		report.Status = StatusFailed
	case report.Changed:
		report.Status = StatusSuccess
	default:
		report.Status = StatusOK
	}

	if b.aborted != nil {
		report.Error = errorInfo(b.aborted)
		report.Msg = b.aborted.Error()
		return report
	}
	report.Msg = summarize(report.Counts, b.dryRun)
	return report
}

func summarize(c Counts, dryRun bool) string {
	parts := []string{
		fmt.Sprintf("%d created", c.Created),
		fmt.Sprintf("%d updated", c.Updated),
		fmt.Sprintf("%d deleted", c.Deleted),
		fmt.Sprintf("%d unchanged", c.Unchanged),
		fmt.Sprintf("%d failed", c.Failed),
	}
	msg := strings.Join(parts, ", ")
	if dryRun {
		return "check mode: " + msg
	}
	return msg
}

func errorInfo(err *DomainError) *ErrorInfo {
	if err == nil {
		return nil
	}
	msg := err.Message
	if err.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, err.Cause)
	}
	return &ErrorInfo{Kind: err.Code, Message: msg, Context: err.Context}
}
