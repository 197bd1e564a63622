// Package reportcmd exposes report export and retention as dispatchable
// commands with cron and CLI metadata.
package reportcmd

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-sweep/internal/commands"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/internal/report"
	"github.com/goliatone/go-sweep/pkg/interfaces"
	command "github.com/goliatone/go-command"
)

const exportReportsMessageType = "sweep.reports.export"

// ExportReportsCommand retrieves stored run reports and emits a summary per
// record through the logger. RunID narrows the export to a single run;
// MaxRecords caps how many records are exported.
type ExportReportsCommand struct {
	RunID      string `json:"run_id,omitempty"`
	MaxRecords *int   `json:"max_records,omitempty"`
}

// Type implements command.Message.
func (ExportReportsCommand) Type() string { return exportReportsMessageType }

// Validate ensures the command payload is well-formed.
func (m ExportReportsCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.MaxRecords, validation.By(func(value any) error {
			if m.MaxRecords == nil {
				return nil
			}
			if *m.MaxRecords < 0 {
				return validation.NewError("sweep.reports.export.max_records_invalid", "max_records must be zero or positive")
			}
			return nil
		})),
	)
}

// ExportReportsHandler logs stored run reports and, when a writer is
// configured, streams the full records as indented JSON.
type ExportReportsHandler struct {
	store   report.Store
	writer  io.Writer
	logger  interfaces.Logger
	timeout time.Duration
}

// ExportHandlerOption customises the export handler.
type ExportHandlerOption func(*ExportReportsHandler)

// ExportWithWriter streams exported records to the given writer as JSON.
func ExportWithWriter(w io.Writer) ExportHandlerOption {
	return func(h *ExportReportsHandler) {
		h.writer = w
	}
}

// ExportWithTimeout overrides the default execution timeout.
func ExportWithTimeout(timeout time.Duration) ExportHandlerOption {
	return func(h *ExportReportsHandler) {
		h.timeout = timeout
	}
}

// NewExportReportsHandler constructs a handler wired to the provided report store.
func NewExportReportsHandler(store report.Store, logger interfaces.Logger, opts ...ExportHandlerOption) *ExportReportsHandler {
	handler := &ExportReportsHandler{
		store:   store,
		logger:  commands.EnsureLogger(logger),
		timeout: commands.DefaultCommandTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler
}

// Execute satisfies command.Commander[ExportReportsCommand].
func (h *ExportReportsHandler) Execute(ctx context.Context, msg ExportReportsCommand) error {
	if err := commands.WrapValidationError(command.ValidateMessage(msg)); err != nil {
		return err
	}
	ctx = commands.EnsureContext(ctx)
	ctx, cancel := commands.WithCommandTimeout(ctx, h.timeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return commands.WrapContextError(err)
	}

	records, err := h.collect(ctx, msg)
	if err != nil {
		return commands.WrapExecuteError(err)
	}

	limit := len(records)
	if msg.MaxRecords != nil && *msg.MaxRecords < limit {
		limit = *msg.MaxRecords
	}

	baseLogger := logging.WithFields(h.logger, map[string]any{
		"operation": "reports.export",
	})

	for idx := 0; idx < limit; idx++ {
		record := records[idx]
		logging.WithFields(baseLogger, map[string]any{
			"index":       idx,
			"run_id":      record.RunID,
			"environment": record.Environment,
			"dry_run":     record.DryRun,
			"deleted":     record.Deleted,
			"failed":      record.Failed,
			"will_delete": record.WillDelete,
			"ran_at":      record.RanAt.Format(time.RFC3339),
		}).Debug("reports.command.export.record")
	}

	if h.writer != nil {
		encoder := json.NewEncoder(h.writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(records[:limit]); err != nil {
			return commands.WrapExecuteError(err)
		}
	}

	logging.WithFields(baseLogger, map[string]any{
		"exported": limit,
		"total":    len(records),
	}).Info("reports.command.export.completed")
	return nil
}

func (h *ExportReportsHandler) collect(ctx context.Context, msg ExportReportsCommand) ([]*report.Record, error) {
	if runID := strings.TrimSpace(msg.RunID); runID != "" {
		record, err := h.store.GetByRunID(ctx, runID)
		if err != nil {
			return nil, err
		}
		return []*report.Record{record}, nil
	}
	return h.store.List(ctx)
}

// CLIHandler exposes the export handler to CLI integrations.
func (h *ExportReportsHandler) CLIHandler() any {
	return h
}

// CLIOptions describes the CLI metadata for report export.
func (h *ExportReportsHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"reports", "export"},
		Group:       "reports",
		Description: "Export stored run reports as JSON",
	}
}
