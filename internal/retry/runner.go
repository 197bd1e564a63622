package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/goliatone/go-sweep/internal/graph"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/pkg/interfaces"
)

const (
	DefaultMaxRetries = 6
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 30 * time.Second
	DefaultPageDelay  = 150 * time.Millisecond
	DefaultTimeout    = 30 * time.Second
)

// Config bounds how hard the runner leans on a struggling backend.
// MaxRetries is the total number of attempts including the first. A zero
// duration selects the default; a negative PageDelay or Timeout disables
// that behaviour entirely.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	PageDelay  time.Duration
	Timeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	switch {
	case c.PageDelay == 0:
		c.PageDelay = DefaultPageDelay
	case c.PageDelay < 0:
		c.PageDelay = 0
	}
	switch {
	case c.Timeout == 0:
		c.Timeout = DefaultTimeout
	case c.Timeout < 0:
		c.Timeout = 0
	}
	return c
}

// Runner executes graph calls under a per-attempt timeout and an
// exponential, jittered backoff. Rate limits, timeouts, and transient
// transport failures are retried; everything else surfaces immediately.
type Runner struct {
	cfg    Config
	logger interfaces.Logger
	timer  backoff.Timer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger interfaces.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTimer overrides the timer driving backoff waits. Tests use this to
// fire waits immediately.
func WithTimer(timer backoff.Timer) RunnerOption {
	return func(r *Runner) {
		r.timer = timer
	}
}

// NewRunner builds a Runner from cfg, filling unset values with defaults.
func NewRunner(cfg Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:    cfg.withDefaults(),
		logger: logging.NoOp(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the normalized configuration the runner operates with.
func (r *Runner) Config() Config {
	return r.cfg
}

// Do runs fn until it succeeds, fails terminally, or the attempt budget is
// spent. Each attempt gets its own deadline; the backend's Retry-After hint
// stretches the next wait when it exceeds the computed backoff.
func (r *Runner) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := 0
	var hint time.Duration

	work := func() error {
		attempts++
		attemptCtx := ctx
		cancel := func() {}
		if r.cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		}
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		// A deadline on the attempt context, with the parent still live,
		// means the call timed out rather than the run being cancelled.
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = graph.NewTimeout(operation, "")
		}
		if !graph.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		hint = graph.RetryAfter(err)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.BaseDelay
	policy.MaxInterval = r.cfg.MaxDelay
	policy.MaxElapsedTime = 0

	var wrapped backoff.BackOff = &hintedBackOff{
		inner: policy,
		hint:  &hint,
		cap:   r.cfg.MaxDelay,
	}
	wrapped = backoff.WithMaxRetries(wrapped, uint64(r.cfg.MaxRetries-1))
	wrapped = backoff.WithContext(wrapped, ctx)

	notify := func(err error, delay time.Duration) {
		r.logger.Warn("graph call failed, backing off",
			"operation", operation,
			"attempt", attempts,
			"delay", delay,
			"error", err,
		)
	}

	err := backoff.RetryNotifyWithTimer(work, wrapped, notify, r.timer)
	if err == nil {
		return nil
	}
	if graph.IsRetryable(err) && attempts >= r.cfg.MaxRetries {
		return fmt.Errorf("%s: retries exhausted after %d attempts: %w", operation, attempts, err)
	}
	return err
}

// hintedBackOff stretches the next wait to honor a server-provided
// Retry-After, still subject to the configured ceiling.
type hintedBackOff struct {
	inner backoff.BackOff
	hint  *time.Duration
	cap   time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	next := h.inner.NextBackOff()
	if next == backoff.Stop {
		return backoff.Stop
	}
	if h.hint != nil && *h.hint > 0 {
		if *h.hint > next {
			next = *h.hint
		}
		*h.hint = 0
	}
	if h.cap > 0 && next > h.cap {
		next = h.cap
	}
	return next
}

func (h *hintedBackOff) Reset() {
	h.inner.Reset()
}
