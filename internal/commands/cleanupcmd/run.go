// Package cleanupcmd exposes deletion runs as dispatchable commands with
// cron and CLI metadata.
package cleanupcmd

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-sweep/internal/cleanup"
	"github.com/goliatone/go-sweep/internal/commands"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/internal/report"
	"github.com/goliatone/go-sweep/pkg/interfaces"
	command "github.com/goliatone/go-command"
)

const runSweepMessageType = "sweep.cleanup.run"

const defaultEnvironment = "master"

// RunSweepCommand triggers a rule-driven deletion run. Environment overrides
// the handler's configured default when set.
type RunSweepCommand struct {
	Environment string `json:"environment,omitempty"`
}

// Type implements command.Message.
func (RunSweepCommand) Type() string { return runSweepMessageType }

// Validate satisfies command.Message.
func (m RunSweepCommand) Validate() error {
	return validation.ValidateStruct(&m)
}

type runHandlerConfig struct {
	environment string
	store       report.Store
	cronConfig  command.HandlerConfig
	timeout     time.Duration
}

// RunHandlerOption customises the run handler.
type RunHandlerOption func(*runHandlerConfig)

// RunWithEnvironment sets the environment used when the message omits one.
func RunWithEnvironment(environment string) RunHandlerOption {
	return func(cfg *runHandlerConfig) {
		if trimmed := strings.TrimSpace(environment); trimmed != "" {
			cfg.environment = trimmed
		}
	}
}

// RunWithStore persists each run's report to the given store.
func RunWithStore(store report.Store) RunHandlerOption {
	return func(cfg *runHandlerConfig) {
		cfg.store = store
	}
}

// RunWithCronConfig overrides the cron registration options for the run handler.
func RunWithCronConfig(config command.HandlerConfig) RunHandlerOption {
	return func(cfg *runHandlerConfig) {
		cfg.cronConfig = config
	}
}

// RunWithCronExpression overrides the cron expression for the run handler.
func RunWithCronExpression(expression string) RunHandlerOption {
	return func(cfg *runHandlerConfig) {
		if trimmed := strings.TrimSpace(expression); trimmed != "" {
			cfg.cronConfig.Expression = trimmed
		}
	}
}

// RunWithTimeout overrides the default execution timeout.
func RunWithTimeout(timeout time.Duration) RunHandlerOption {
	return func(cfg *runHandlerConfig) {
		cfg.timeout = timeout
	}
}

// RunSweepHandler discovers and deletes rule-matched nodes via the cleanup
// service, optionally persisting the resulting report.
type RunSweepHandler struct {
	service     cleanup.Service
	store       report.Store
	logger      interfaces.Logger
	environment string
	cronConfig  command.HandlerConfig
	timeout     time.Duration
}

// NewRunSweepHandler constructs a handler that delegates to the provided service.
func NewRunSweepHandler(service cleanup.Service, logger interfaces.Logger, opts ...RunHandlerOption) *RunSweepHandler {
	cfg := runHandlerConfig{
		environment: defaultEnvironment,
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

	return &RunSweepHandler{
		service:     service,
		store:       cfg.store,
		logger:      commands.EnsureLogger(logger),
		environment: cfg.environment,
		cronConfig:  cfg.cronConfig,
		timeout:     cfg.timeout,
	}
}

// Execute satisfies command.Commander[RunSweepCommand].
func (h *RunSweepHandler) Execute(ctx context.Context, msg RunSweepCommand) error {
	if err := commands.WrapValidationError(command.ValidateMessage(msg)); err != nil {
		return err
	}
	ctx = commands.EnsureContext(ctx)
	ctx, cancel := commands.WithCommandTimeout(ctx, h.timeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return commands.WrapContextError(err)
	}

	environment := strings.TrimSpace(msg.Environment)
	if environment == "" {
		environment = h.environment
	}

	runReport, err := h.service.Sweep(ctx, environment)
	if err != nil {
		return commands.WrapExecuteError(err)
	}

	logger := logging.WithFields(h.logger, map[string]any{
		"operation":   "cleanup.run",
		"run_id":      runReport.RunID,
		"environment": environment,
	})

	if h.store != nil {
		if err := h.store.Save(ctx, runReport); err != nil {
			logger.Error("cleanup.command.run.save_failed", "error", err)
			return commands.WrapExecuteError(err)
		}
	}

	logging.WithFields(logger, map[string]any{
		"candidates":  len(runReport.Candidates),
		"deleted":     runReport.Summary.Deleted,
		"failed":      runReport.Summary.Failed,
		"will_delete": runReport.Summary.WillDelete,
		"dry_run":     runReport.DryRun,
	}).Info("cleanup.command.run.completed")
	return nil
}

// CronHandler satisfies command.CronCommand by binding sweep execution to a cron runner.
func (h *RunSweepHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), RunSweepCommand{})
	}
}

// CronOptions satisfies command.CronCommand by returning the configured cron metadata.
func (h *RunSweepHandler) CronOptions() command.HandlerConfig {
	return h.cronConfig
}

// CLIHandler exposes the run handler to CLI integrations.
func (h *RunSweepHandler) CLIHandler() any {
	return h
}

// CLIOptions describes the CLI metadata for deletion runs.
func (h *RunSweepHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"cleanup", "run"},
		Group:       "cleanup",
		Description: "Run deletion rules against the content graph and persist the report",
	}
}
