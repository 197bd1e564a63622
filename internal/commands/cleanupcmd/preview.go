package cleanupcmd

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-sweep/internal/cleanup"
	"github.com/goliatone/go-sweep/internal/commands"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/pkg/interfaces"
	command "github.com/goliatone/go-command"
)

const previewSweepMessageType = "sweep.cleanup.preview"

// PreviewSweepCommand reports the decisions a deletion run would make. Limit
// caps how many per-node decisions are logged.
type PreviewSweepCommand struct {
	Environment string `json:"environment,omitempty"`
	Limit       *int   `json:"limit,omitempty"`
}

// Type implements command.Message.
func (PreviewSweepCommand) Type() string { return previewSweepMessageType }

// Validate ensures the command payload is well-formed.
func (m PreviewSweepCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Limit, validation.By(func(value any) error {
			if m.Limit == nil {
				return nil
			}
			if *m.Limit < 0 {
				return validation.NewError("sweep.cleanup.preview.limit_invalid", "limit must be zero or positive")
			}
			return nil
		})),
	)
}

// PreviewSweepHandler walks the graph and logs every decision a run would
// make. The service must be configured for dry runs; the handler only reports.
type PreviewSweepHandler struct {
	service     cleanup.Service
	logger      interfaces.Logger
	environment string
	timeout     time.Duration
}

// PreviewHandlerOption customises the preview handler.
type PreviewHandlerOption func(*PreviewSweepHandler)

// PreviewWithEnvironment sets the environment used when the message omits one.
func PreviewWithEnvironment(environment string) PreviewHandlerOption {
	return func(h *PreviewSweepHandler) {
		if trimmed := strings.TrimSpace(environment); trimmed != "" {
			h.environment = trimmed
		}
	}
}

// PreviewWithTimeout overrides the default execution timeout.
func PreviewWithTimeout(timeout time.Duration) PreviewHandlerOption {
	return func(h *PreviewSweepHandler) {
		h.timeout = timeout
	}
}

// NewPreviewSweepHandler constructs a handler wired to the provided dry-run service.
func NewPreviewSweepHandler(service cleanup.Service, logger interfaces.Logger, opts ...PreviewHandlerOption) *PreviewSweepHandler {
	handler := &PreviewSweepHandler{
		service:     service,
		logger:      commands.EnsureLogger(logger),
		environment: defaultEnvironment,
		timeout:     commands.DefaultCommandTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler
}

// Execute satisfies command.Commander[PreviewSweepCommand].
func (h *PreviewSweepHandler) Execute(ctx context.Context, msg PreviewSweepCommand) error {
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

	limit := len(runReport.Candidates)
	if msg.Limit != nil && *msg.Limit < limit {
		limit = *msg.Limit
	}

	baseLogger := logging.WithFields(h.logger, map[string]any{
		"operation":   "cleanup.preview",
		"run_id":      runReport.RunID,
		"environment": environment,
	})

	for idx := 0; idx < limit; idx++ {
		candidate := runReport.Candidates[idx]
		if candidate == nil {
			continue
		}
		logging.WithFields(baseLogger, map[string]any{
			"index":        idx,
			"node_id":      candidate.NodeID(),
			"content_type": candidate.ContentType(),
			"rule":         candidate.RuleID,
			"outcome":      string(candidate.Outcome),
			"skip_reason":  candidate.SkipReason,
		}).Debug("cleanup.command.preview.decision")
	}

	logging.WithFields(baseLogger, map[string]any{
		"candidates":     len(runReport.Candidates),
		"will_delete":    runReport.Summary.WillDelete,
		"skipped_links":  runReport.Summary.WillSkipDueToLinks,
		"skipped_safety": runReport.Summary.WillSkipDueToSafety,
	}).Info("cleanup.command.preview.completed")
	return nil
}

// CLIHandler exposes the preview handler to CLI integrations.
func (h *PreviewSweepHandler) CLIHandler() any {
	return h
}

// CLIOptions describes the CLI metadata for deletion previews.
func (h *PreviewSweepHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"cleanup", "preview"},
		Group:       "cleanup",
		Description: "Preview deletion decisions without mutating the graph",
	}
}
