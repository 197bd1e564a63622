// Package promotecmd exposes cross-environment entry promotion as a
// dispatchable command.
package promotecmd

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-sweep/internal/commands"
	"github.com/goliatone/go-sweep/internal/promote"
	"github.com/goliatone/go-sweep/pkg/interfaces"
)

const promoteEntriesMessageType = "sweep.promote.entries"

// PromoteEntriesCommand copies entries from a source environment into a
// target environment. Entries are picked by explicit ids or discovered in
// the source by content type.
type PromoteEntriesCommand struct {
	Source       string   `json:"source"`
	Target       string   `json:"target"`
	IDs          []string `json:"ids,omitempty"`
	ContentTypes []string `json:"content_types,omitempty"`
	Publish      bool     `json:"publish,omitempty"`
	DryRun       bool     `json:"dry_run,omitempty"`
	Overwrite    bool     `json:"overwrite,omitempty"`
}

// Type implements command.Message.
func (PromoteEntriesCommand) Type() string { return promoteEntriesMessageType }

// Validate ensures both environments are named, distinct, and that the
// message selects at least one entry source.
func (m PromoteEntriesCommand) Validate() error {
	errs := validation.Errors{}
	source := strings.TrimSpace(m.Source)
	target := strings.TrimSpace(m.Target)
	if source == "" {
		errs["source"] = validation.NewError("sweep.promote.source_required", "source environment is required")
	}
	if target == "" {
		errs["target"] = validation.NewError("sweep.promote.target_required", "target environment is required")
	} else if source != "" && strings.EqualFold(source, target) {
		errs["target"] = validation.NewError("sweep.promote.same_environment", "source and target environments must differ")
	}
	if len(m.IDs) == 0 && len(m.ContentTypes) == 0 {
		errs["ids"] = validation.NewError("sweep.promote.selection_required", "ids or content_types must be provided")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PromoteEntriesHandler copies entries between environments via the promote service.
type PromoteEntriesHandler struct {
	inner *commands.Handler[PromoteEntriesCommand]
}

// NewPromoteEntriesHandler constructs a handler wired to the provided promote service.
func NewPromoteEntriesHandler(service promote.Service, logger interfaces.Logger, gates FeatureGates, opts ...commands.HandlerOption[PromoteEntriesCommand]) *PromoteEntriesHandler {
	exec := func(ctx context.Context, msg PromoteEntriesCommand) error {
		if !gates.promotionEnabled() {
			return promote.ErrPromotionDisabled
		}
		_, err := service.PromoteEntries(ctx, promote.Request{
			Source:       msg.Source,
			Target:       msg.Target,
			IDs:          msg.IDs,
			ContentTypes: msg.ContentTypes,
			Options: promote.Options{
				Publish:   msg.Publish,
				DryRun:    msg.DryRun,
				Overwrite: msg.Overwrite,
			},
		})
		return err
	}

	handlerOpts := []commands.HandlerOption[PromoteEntriesCommand]{
		commands.WithLogger[PromoteEntriesCommand](logger),
		commands.WithOperation[PromoteEntriesCommand]("promote.entries"),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &PromoteEntriesHandler{
		inner: commands.NewHandler[PromoteEntriesCommand](exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[PromoteEntriesCommand].Execute.
func (h *PromoteEntriesHandler) Execute(ctx context.Context, msg PromoteEntriesCommand) error {
	return h.inner.Execute(ctx, msg)
}
