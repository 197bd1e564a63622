package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-sweep/internal/graph"
)

// instantTimer satisfies backoff.Timer but fires every wait immediately,
// recording the delay the policy asked for.
type instantTimer struct {
	ch     chan time.Time
	delays []time.Duration
}

func (t *instantTimer) Start(d time.Duration) {
	t.delays = append(t.delays, d)
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	t.ch = ch
}

func (t *instantTimer) C() <-chan time.Time { return t.ch }

func (t *instantTimer) Stop() {}

func fastConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   50 * time.Millisecond,
		PageDelay:  -1,
		Timeout:    -1,
	}
}

func TestRunnerSucceedsFirstAttempt(t *testing.T) {
	runner := NewRunner(fastConfig(), WithTimer(&instantTimer{}))

	calls := 0
	err := runner.Do(context.Background(), "fetch_node", func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single attempt, got %d", calls)
	}
}

func TestRunnerRetriesRateLimitAndHonorsHint(t *testing.T) {
	timer := &instantTimer{}
	runner := NewRunner(fastConfig(), WithTimer(timer))

	calls := 0
	err := runner.Do(context.Background(), "fetch_page", func(context.Context) error {
		calls++
		if calls < 3 {
			return graph.NewRateLimited("fetch_page", 2*time.Second)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(timer.delays) != 2 {
		t.Fatalf("expected 2 waits, got %d", len(timer.delays))
	}
	// The server asked for 2s, which dwarfs the millisecond backoff.
	if timer.delays[0] < 2*time.Second {
		t.Fatalf("expected Retry-After to stretch the wait, got %v", timer.delays[0])
	}
}

func TestRunnerCapsHintAtMaxDelay(t *testing.T) {
	timer := &instantTimer{}
	cfg := fastConfig()
	cfg.MaxDelay = 10 * time.Millisecond
	runner := NewRunner(cfg, WithTimer(timer))

	calls := 0
	_ = runner.Do(context.Background(), "fetch_page", func(context.Context) error {
		calls++
		if calls == 1 {
			return graph.NewRateLimited("fetch_page", time.Minute)
		}
		return nil
	})
	if len(timer.delays) != 1 {
		t.Fatalf("expected one wait, got %d", len(timer.delays))
	}
	if timer.delays[0] > 10*time.Millisecond {
		t.Fatalf("expected wait capped at 10ms, got %v", timer.delays[0])
	}
}

func TestRunnerStopsOnTerminalError(t *testing.T) {
	runner := NewRunner(fastConfig(), WithTimer(&instantTimer{}))

	calls := 0
	err := runner.Do(context.Background(), "fetch_node", func(context.Context) error {
		calls++
		return graph.NewNotFound("fetch_node", "ghost")
	})
	if !graph.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("terminal errors must not retry, got %d attempts", calls)
	}
}

func TestRunnerExhaustsAttempts(t *testing.T) {
	runner := NewRunner(fastConfig(), WithTimer(&instantTimer{}))

	calls := 0
	err := runner.Do(context.Background(), "update", func(context.Context) error {
		calls++
		return graph.NewRateLimited("update", 0)
	})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !strings.Contains(err.Error(), "retries exhausted after 3 attempts") {
		t.Fatalf("expected attempt count in error, got %v", err)
	}
	if !graph.IsRateLimited(err) {
		t.Fatalf("expected underlying cause preserved, got %v", err)
	}
}

func TestRunnerAppliesPerAttemptTimeout(t *testing.T) {
	cfg := fastConfig()
	cfg.Timeout = 5 * time.Millisecond
	runner := NewRunner(cfg, WithTimer(&instantTimer{}))

	calls := 0
	err := runner.Do(context.Background(), "fetch_node", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected timeout then success, got %d attempts", calls)
	}
}

func TestRunnerStopsWhenContextCancelled(t *testing.T) {
	runner := NewRunner(fastConfig(), WithTimer(&instantTimer{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := runner.Do(ctx, "fetch_node", func(ctx context.Context) error {
		calls++
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retries after cancel, got %d", calls)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Fatalf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.BaseDelay != DefaultBaseDelay || cfg.MaxDelay != DefaultMaxDelay {
		t.Fatalf("delays = %v/%v", cfg.BaseDelay, cfg.MaxDelay)
	}
	if cfg.PageDelay != DefaultPageDelay {
		t.Fatalf("PageDelay = %v", cfg.PageDelay)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Fatalf("Timeout = %v", cfg.Timeout)
	}

	disabled := Config{PageDelay: -1, Timeout: -1}.withDefaults()
	if disabled.PageDelay != 0 || disabled.Timeout != 0 {
		t.Fatalf("negative values should disable, got %v/%v", disabled.PageDelay, disabled.Timeout)
	}
}
