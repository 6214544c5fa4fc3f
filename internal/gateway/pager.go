package gateway

import (
	"context"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
)

// ListAll walks a listing page by page and concatenates the results. It stops
// on a page shorter than limit, on an empty page, or once the reported total
// has been collected. The number of list calls is returned with the items.
func ListAll(ctx context.Context, gw ports.Gateway, coll reconcile.Collection, filter reconcile.Filter, limit int) ([]map[string]any, int, error) {
	if limit <= 0 {
		limit = reconcile.DefaultPageSize
	}

	var (
		items []map[string]any
		calls int
	)
	offset := coll.OffsetBase
	for {
		if err := ctx.Err(); err != nil {
			return nil, calls, contextError(ctx, reconcile.OpList, err)
		}

		page, err := gw.List(ctx, coll, filter, offset, limit)
		calls++
		if err != nil {
			return nil, calls, err
		}
		items = append(items, page.Items...)

		switch {
		case len(page.Items) == 0:
			return items, calls, nil
		case len(page.Items) < limit:
			return items, calls, nil
		case page.Total >= 0 && len(items) >= page.Total:
			return items, calls, nil
		}
		offset += len(page.Items)
	}
}
