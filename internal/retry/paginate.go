package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-sweep/internal/graph"
)

// DefaultPageSize is the window requested from the backend per page.
const DefaultPageSize = 100

// PageFunc fetches one window of a collection and reports the collection's
// total size alongside the items.
type PageFunc[T any] func(ctx context.Context, limit, skip int) ([]T, int, error)

// FetchAll walks a paginated collection to exhaustion. Every page fetch runs
// under the runner's retry policy, pages are separated by the configured
// courtesy delay, and inconsistent responses fail the whole walk rather than
// silently truncating the result.
func FetchAll[T any](ctx context.Context, r *Runner, operation string, pageSize int, fetch PageFunc[T]) ([]T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var collected []T
	total := -1

	for {
		var (
			items    []T
			reported int
		)
		err := r.Do(ctx, operation, func(ctx context.Context) error {
			var ferr error
			items, reported, ferr = fetch(ctx, pageSize, len(collected))
			return ferr
		})
		if err != nil {
			return nil, err
		}

		if reported < 0 {
			return nil, graph.NewMalformedPage(operation, fmt.Sprintf("reported total %d", reported))
		}
		if total >= 0 && reported < len(collected) {
			return nil, graph.NewMalformedPage(operation, fmt.Sprintf("total shrank to %d below %d collected", reported, len(collected)))
		}
		total = reported

		collected = append(collected, items...)
		if len(collected) >= total {
			return collected, nil
		}
		if len(items) == 0 {
			return nil, graph.NewMalformedPage(operation, fmt.Sprintf("empty page with %d items outstanding", total-len(collected)))
		}

		if err := Sleep(ctx, r.cfg.PageDelay); err != nil {
			return nil, err
		}
	}
}

// Sleep waits for d unless the context ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
