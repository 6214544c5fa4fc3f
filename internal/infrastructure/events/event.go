// Package events carries pass and item notifications to logs and subscribers.
package events

import (
	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
)

// Event is a DomainEvent with a flat key/value payload.
type Event struct {
	Type string
	Data map[string]interface{}
}

func (e Event) EventType() string    { return e.Type }
func (e Event) Payload() interface{} { return e.Data }

// PassStarted announces a pass over count items.
func PassStarted(cfg reconcile.PassConfig, count int) Event {
	return Event{Type: ports.EventPassStarted, Data: map[string]interface{}{
		"state":   string(cfg.State),
		"items":   count,
		"dry_run": cfg.DryRun,
	}}
}

// PassFinished reports the outcome of a pass. Failed passes produce
// EventPassFailed.
func PassFinished(report reconcile.Report) Event {
	eventType := ports.EventPassCompleted
	if report.Failed() {
		eventType = ports.EventPassFailed
	}
	data := map[string]interface{}{
		"status":    string(report.Status),
		"changed":   report.Changed,
		"created":   report.Counts.Created,
		"updated":   report.Counts.Updated,
		"deleted":   report.Counts.Deleted,
		"unchanged": report.Counts.Unchanged,
		"failed":    report.Counts.Failed,
	}
	if report.Error != nil {
		data["error_kind"] = string(report.Error.Kind)
		data["error"] = report.Error.Message
	}
	return Event{Type: eventType, Data: data}
}

// ItemFinished reports one item outcome.
func ItemFinished(result reconcile.ItemResult) Event {
	eventType := ports.EventItemUnchanged
	switch {
	case result.IsFailure():
		eventType = ports.EventItemFailed
	case result.Action.IsChange():
		eventType = ports.EventItemCompleted
	}
	data := map[string]interface{}{
		"index":       result.Index,
		"kind":        result.Kind,
		"natural_key": result.NaturalKey,
		"action":      string(result.Action),
	}
	if result.TaskID != "" {
		data["task_id"] = result.TaskID
	}
	if result.Error != nil {
		data["error_kind"] = string(result.Error.Code)
	}
	if result.DryRun {
		data["dry_run"] = true
	}
	return Event{Type: eventType, Data: data}
}
