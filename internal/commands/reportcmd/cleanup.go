package reportcmd

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-sweep/internal/commands"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/internal/report"
	"github.com/goliatone/go-sweep/pkg/interfaces"
	command "github.com/goliatone/go-command"
)

const cleanupReportsMessageType = "sweep.reports.cleanup"

const defaultRetention = 30

// CleanupReportsCommand prunes stored reports down to a retention count.
// Keep overrides the handler's configured retention; when DryRun is true
// only the would-be removal count is reported.
type CleanupReportsCommand struct {
	Keep   *int `json:"keep,omitempty"`
	DryRun bool `json:"dry_run,omitempty"`
}

// Type implements command.Message.
func (CleanupReportsCommand) Type() string { return cleanupReportsMessageType }

// Validate ensures the command payload is well-formed.
func (m CleanupReportsCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Keep, validation.By(func(value any) error {
			if m.Keep == nil {
				return nil
			}
			if *m.Keep < 0 {
				return validation.NewError("sweep.reports.cleanup.keep_invalid", "keep must be zero or positive")
			}
			return nil
		})),
	)
}

type cleanupHandlerConfig struct {
	retention  int
	cronConfig command.HandlerConfig
	timeout    time.Duration
}

// CleanupHandlerOption customises the cleanup handler.
type CleanupHandlerOption func(*cleanupHandlerConfig)

// CleanupWithRetention sets how many reports survive a prune by default.
func CleanupWithRetention(keep int) CleanupHandlerOption {
	return func(cfg *cleanupHandlerConfig) {
		if keep >= 0 {
			cfg.retention = keep
		}
	}
}

// CleanupWithCronConfig overrides the cron registration options for the cleanup handler.
func CleanupWithCronConfig(config command.HandlerConfig) CleanupHandlerOption {
	return func(cfg *cleanupHandlerConfig) {
		cfg.cronConfig = config
	}
}

// CleanupWithCronExpression overrides the cron expression for the cleanup handler.
func CleanupWithCronExpression(expression string) CleanupHandlerOption {
	return func(cfg *cleanupHandlerConfig) {
		if trimmed := strings.TrimSpace(expression); trimmed != "" {
			cfg.cronConfig.Expression = trimmed
		}
	}
}

// CleanupWithTimeout overrides the default execution timeout.
func CleanupWithTimeout(timeout time.Duration) CleanupHandlerOption {
	return func(cfg *cleanupHandlerConfig) {
		cfg.timeout = timeout
	}
}

// CleanupReportsHandler enforces report retention via the supplied store.
type CleanupReportsHandler struct {
	store      report.Store
	logger     interfaces.Logger
	retention  int
	cronConfig command.HandlerConfig
	timeout    time.Duration
}

// NewCleanupReportsHandler constructs a handler that prunes the provided store.
func NewCleanupReportsHandler(store report.Store, logger interfaces.Logger, opts ...CleanupHandlerOption) *CleanupReportsHandler {
	cfg := cleanupHandlerConfig{
		retention: defaultRetention,
		cronConfig: command.HandlerConfig{
			Expression: "@daily",
		},
		timeout: commands.DefaultCommandTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return &CleanupReportsHandler{
		store:      store,
		logger:     commands.EnsureLogger(logger),
		retention:  cfg.retention,
		cronConfig: cfg.cronConfig,
		timeout:    cfg.timeout,
	}
}

// Execute satisfies command.Commander[CleanupReportsCommand].
func (h *CleanupReportsHandler) Execute(ctx context.Context, msg CleanupReportsCommand) error {
	if err := commands.WrapValidationError(command.ValidateMessage(msg)); err != nil {
		return err
	}
	ctx = commands.EnsureContext(ctx)
	ctx, cancel := commands.WithCommandTimeout(ctx, h.timeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return commands.WrapContextError(err)
	}

	keep := h.retention
	if msg.Keep != nil {
		keep = *msg.Keep
	}

	logger := logging.WithFields(h.logger, map[string]any{
		"operation": "reports.cleanup",
	})

	if msg.DryRun {
		records, err := h.store.List(ctx)
		if err != nil {
			return commands.WrapExecuteError(err)
		}
		wouldRemove := len(records) - keep
		if wouldRemove < 0 {
			wouldRemove = 0
		}
		logging.WithFields(logger, map[string]any{
			"dry_run":      true,
			"existing":     len(records),
			"keep":         keep,
			"would_remove": wouldRemove,
		}).Debug("reports.command.cleanup.dry_run")
		return nil
	}

	removed, err := h.store.Prune(ctx, keep)
	if err != nil {
		return commands.WrapExecuteError(err)
	}

	logging.WithFields(logger, map[string]any{
		"removed": removed,
		"keep":    keep,
	}).Debug("reports.command.cleanup.removed")
	return nil
}

// CronHandler satisfies command.CronCommand by binding retention enforcement to a cron runner.
func (h *CleanupReportsHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), CleanupReportsCommand{})
	}
}

// CronOptions satisfies command.CronCommand by returning the configured cron metadata.
func (h *CleanupReportsHandler) CronOptions() command.HandlerConfig {
	return h.cronConfig
}

// CLIHandler exposes the cleanup handler to CLI integrations.
func (h *CleanupReportsHandler) CLIHandler() any {
	return h
}

// CLIOptions describes the CLI metadata for report retention.
func (h *CleanupReportsHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"reports", "cleanup"},
		Group:       "reports",
		Description: "Prune stored run reports past the retention count; supports dry-run",
	}
}
