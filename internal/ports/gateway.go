package ports

import (
	"context"

	"github.com/Masterminds/semver/v3"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
)

// Gateway is the typed facade over the controller API. Each call returns a
// parsed response or a *reconcile.DomainError with one of the codes
// NOT_FOUND, TRANSPORT_ERROR, CANCELLED or TIMEOUT. Calls are never retried
// here. Implementations must be safe for concurrent use by items with
// distinct natural keys.
type Gateway interface {
	List(ctx context.Context, coll reconcile.Collection, filter reconcile.Filter, offset, limit int) (reconcile.Page, error)
	Get(ctx context.Context, coll reconcile.Collection, id string) (map[string]any, error)
	Create(ctx context.Context, coll reconcile.Collection, payload map[string]any) (reconcile.TaskHandle, error)
	Update(ctx context.Context, coll reconcile.Collection, id string, payload map[string]any) (reconcile.TaskHandle, error)
	Delete(ctx context.Context, coll reconcile.Collection, id string) (reconcile.TaskHandle, error)
	TaskStatus(ctx context.Context, token string) (reconcile.TaskStatus, error)
	TaskDetail(ctx context.Context, token string) (reconcile.TaskDetail, error)
	Version(ctx context.Context) (*semver.Version, error)
}

// TaskTracker waits for a submitted task to reach a terminal state. It never
// resubmits and never returns an error: every result is a TaskOutcome.
type TaskTracker interface {
	Await(ctx context.Context, handle reconcile.TaskHandle, task string, sentinels reconcile.Sentinels) reconcile.TaskOutcome
}
