package retry

import (
	"context"
	"testing"

	"github.com/goliatone/go-sweep/internal/graph"
)

func TestFetchAllAggregatesEveryPage(t *testing.T) {
	runner := NewRunner(fastConfig(), WithTimer(&instantTimer{}))
	backend := []string{"a", "b", "c", "d", "e"}

	calls := 0
	items, err := FetchAll(context.Background(), runner, "fetch_page", 2, func(_ context.Context, limit, skip int) ([]string, int, error) {
		calls++
		end := skip + limit
		if end > len(backend) {
			end = len(backend)
		}
		if skip >= len(backend) {
			return nil, len(backend), nil
		}
		return backend[skip:end], len(backend), nil
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}
	if calls != 3 {
		t.Fatalf("expected 3 page fetches, got %d", calls)
	}
	if items[0] != "a" || items[4] != "e" {
		t.Fatalf("unexpected order: %v", items)
	}
}

func TestFetchAllRetriesWithinPage(t *testing.T) {
	runner := NewRunner(fastConfig(), WithTimer(&instantTimer{}))

	calls := 0
	items, err := FetchAll(context.Background(), runner, "fetch_page", 10, func(context.Context, int, int) ([]string, int, error) {
		calls++
		if calls == 1 {
			return nil, 0, graph.NewRateLimited("fetch_page", 0)
		}
		return []string{"only"}, 1, nil
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if calls != 2 {
		t.Fatalf("expected retry then success, got %d calls", calls)
	}
}

func TestFetchAllFailsOnEmptyPageWithOutstandingItems(t *testing.T) {
	runner := NewRunner(fastConfig(), WithTimer(&instantTimer{}))

	_, err := FetchAll(context.Background(), runner, "fetch_page", 10, func(context.Context, int, int) ([]string, int, error) {
		return nil, 10, nil
	})
	if !graph.IsMalformedPage(err) {
		t.Fatalf("expected malformed page error, got %v", err)
	}
}

func TestFetchAllFailsOnNegativeTotal(t *testing.T) {
	runner := NewRunner(fastConfig(), WithTimer(&instantTimer{}))

	_, err := FetchAll(context.Background(), runner, "fetch_page", 10, func(context.Context, int, int) ([]string, int, error) {
		return []string{"x"}, -1, nil
	})
	if !graph.IsMalformedPage(err) {
		t.Fatalf("expected malformed page error, got %v", err)
	}
}

func TestFetchAllFailsWhenTotalShrinksBelowCollected(t *testing.T) {
	runner := NewRunner(fastConfig(), WithTimer(&instantTimer{}))

	calls := 0
	_, err := FetchAll(context.Background(), runner, "fetch_page", 2, func(context.Context, int, int) ([]string, int, error) {
		calls++
		if calls == 1 {
			return []string{"a", "b"}, 4, nil
		}
		return nil, 1, nil
	})
	if !graph.IsMalformedPage(err) {
		t.Fatalf("expected malformed page error, got %v", err)
	}
}

func TestFetchAllPropagatesTerminalError(t *testing.T) {
	runner := NewRunner(fastConfig(), WithTimer(&instantTimer{}))

	_, err := FetchAll(context.Background(), runner, "fetch_page", 10, func(context.Context, int, int) ([]string, int, error) {
		return nil, 0, graph.NewValidation("fetch_page", "", "bad query")
	})
	if err == nil || graph.IsMalformedPage(err) {
		t.Fatalf("expected validation error surfaced, got %v", err)
	}
}

func TestSleepRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, 0); err == nil {
		t.Fatal("expected context error with zero delay")
	}
}
