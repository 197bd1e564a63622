// Package publishcmd exposes bulk publish and unpublish transitions as
// dispatchable commands.
package publishcmd

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-sweep/internal/commands"
	"github.com/goliatone/go-sweep/internal/publish"
	"github.com/goliatone/go-sweep/pkg/interfaces"
)

const publishBatchMessageType = "sweep.publish.batch"

// PublishBatchCommand requests a bulk publish pass over the selected nodes.
// Nodes are picked by explicit ids or discovered by content type.
type PublishBatchCommand struct {
	Environment string   `json:"environment,omitempty"`
	IDs         []string `json:"ids,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	DryRun      bool     `json:"dry_run,omitempty"`
}

// Type implements command.Message.
func (PublishBatchCommand) Type() string { return publishBatchMessageType }

// Validate ensures the message selects at least one node source.
func (m PublishBatchCommand) Validate() error {
	errs := validation.Errors{}
	if len(m.IDs) == 0 && strings.TrimSpace(m.ContentType) == "" {
		errs["ids"] = validation.NewError("sweep.publish.selection_required", "ids or content_type must be provided")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PublishBatchHandler drives bulk publish transitions via the publish service.
type PublishBatchHandler struct {
	inner *commands.Handler[PublishBatchCommand]
}

// NewPublishBatchHandler constructs a handler wired to the provided publish service.
func NewPublishBatchHandler(service publish.Service, logger interfaces.Logger, gates FeatureGates, opts ...commands.HandlerOption[PublishBatchCommand]) *PublishBatchHandler {
	exec := func(ctx context.Context, msg PublishBatchCommand) error {
		if !gates.publishingEnabled() {
			return publish.ErrPublishingDisabled
		}
		_, err := service.PublishBatch(ctx, publish.BatchRequest{
			Environment: msg.Environment,
			IDs:         msg.IDs,
			ContentType: msg.ContentType,
			DryRun:      msg.DryRun,
		})
		return err
	}

	handlerOpts := []commands.HandlerOption[PublishBatchCommand]{
		commands.WithLogger[PublishBatchCommand](logger),
		commands.WithOperation[PublishBatchCommand]("publish.batch"),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &PublishBatchHandler{
		inner: commands.NewHandler[PublishBatchCommand](exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[PublishBatchCommand].Execute.
func (h *PublishBatchHandler) Execute(ctx context.Context, msg PublishBatchCommand) error {
	return h.inner.Execute(ctx, msg)
}
