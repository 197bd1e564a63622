package publishcmd

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-sweep/internal/commands"
	"github.com/goliatone/go-sweep/internal/publish"
	"github.com/goliatone/go-sweep/pkg/interfaces"
)

const unpublishBatchMessageType = "sweep.unpublish.batch"

// UnpublishBatchCommand requests a bulk unpublish pass over the selected nodes.
type UnpublishBatchCommand struct {
	Environment string   `json:"environment,omitempty"`
	IDs         []string `json:"ids,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	DryRun      bool     `json:"dry_run,omitempty"`
}

// Type implements command.Message.
func (UnpublishBatchCommand) Type() string { return unpublishBatchMessageType }

// Validate ensures the message selects at least one node source.
func (m UnpublishBatchCommand) Validate() error {
	errs := validation.Errors{}
	if len(m.IDs) == 0 && strings.TrimSpace(m.ContentType) == "" {
		errs["ids"] = validation.NewError("sweep.unpublish.selection_required", "ids or content_type must be provided")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// UnpublishBatchHandler drives bulk unpublish transitions via the publish service.
type UnpublishBatchHandler struct {
	inner *commands.Handler[UnpublishBatchCommand]
}

// NewUnpublishBatchHandler constructs a handler wired to the provided publish service.
func NewUnpublishBatchHandler(service publish.Service, logger interfaces.Logger, gates FeatureGates, opts ...commands.HandlerOption[UnpublishBatchCommand]) *UnpublishBatchHandler {
	exec := func(ctx context.Context, msg UnpublishBatchCommand) error {
		if !gates.publishingEnabled() {
			return publish.ErrPublishingDisabled
		}
		_, err := service.UnpublishBatch(ctx, publish.BatchRequest{
			Environment: msg.Environment,
			IDs:         msg.IDs,
			ContentType: msg.ContentType,
			DryRun:      msg.DryRun,
		})
		return err
	}

	handlerOpts := []commands.HandlerOption[UnpublishBatchCommand]{
		commands.WithLogger[UnpublishBatchCommand](logger),
		commands.WithOperation[UnpublishBatchCommand]("unpublish.batch"),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &UnpublishBatchHandler{
		inner: commands.NewHandler[UnpublishBatchCommand](exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[UnpublishBatchCommand].Execute.
func (h *UnpublishBatchHandler) Execute(ctx context.Context, msg UnpublishBatchCommand) error {
	return h.inner.Execute(ctx, msg)
}
