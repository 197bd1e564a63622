package di

import (
	"errors"
	"io"
	"strings"

	"github.com/goliatone/go-sweep/internal/commands"
	"github.com/goliatone/go-sweep/internal/commands/cleanupcmd"
	"github.com/goliatone/go-sweep/internal/commands/promotecmd"
	"github.com/goliatone/go-sweep/internal/commands/publishcmd"
	"github.com/goliatone/go-sweep/internal/commands/reportcmd"
	"github.com/goliatone/go-sweep/pkg/interfaces"
	command "github.com/goliatone/go-command"
)

// CommandRegistry records command handlers so hosts can expose them via CLI or cron.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// CommandDispatcher subscribes command handlers to a dispatcher implementation.
type CommandDispatcher interface {
	RegisterCommand(handler any) (CommandSubscription, error)
}

// CommandSubscription allows hosts to tear down dispatcher subscriptions.
type CommandSubscription interface {
	Unsubscribe()
}

// CronRegistrar registers command handlers with a cron scheduler.
type CronRegistrar func(command.HandlerConfig, any) error

// RegistrationOptions configures how handlers are registered during construction.
type RegistrationOptions struct {
	Registry       CommandRegistry
	Dispatcher     CommandDispatcher
	CronRegistrar  CronRegistrar
	LoggerProvider interfaces.LoggerProvider
	// ExportWriter overrides the destination report exports are written to.
	ExportWriter io.Writer
}

// RegistrationResult captures the constructed command handlers and any dispatcher subscriptions.
type RegistrationResult struct {
	Handlers      []any
	Subscriptions []CommandSubscription
}

// RegisterContainerCommands builds the command handlers exposed by the provided
// container and optionally registers them with registry/dispatcher/cron
// integrations. Cron wiring additionally requires the auto-register flag so
// embedding hosts can enumerate handlers without scheduling them.
func RegisterContainerCommands(container *Container, opts RegistrationOptions) (*RegistrationResult, error) {
	if container == nil {
		return &RegistrationResult{}, nil
	}

	cfg := container.Config
	if !cfg.Commands.Enabled {
		return &RegistrationResult{}, nil
	}

	provider := opts.LoggerProvider
	if provider == nil {
		provider = container.LoggerProvider()
	}

	if opts.Registry != nil && opts.CronRegistrar != nil {
		if reg, ok := opts.Registry.(interface {
			SetCronRegister(func(command.HandlerConfig, any) error) *command.Registry
		}); ok && reg != nil {
			reg.SetCronRegister(opts.CronRegistrar)
		}
	}

	result := &RegistrationResult{
		Handlers:      make([]any, 0),
		Subscriptions: make([]CommandSubscription, 0),
	}

	registerCron := opts.CronRegistrar != nil && cfg.Commands.AutoRegisterCron

	var errs error

	register := func(handler any) {
		if handler == nil {
			return
		}
		result.Handlers = append(result.Handlers, handler)

		if opts.Registry != nil {
			if err := opts.Registry.RegisterCommand(handler); err != nil {
				errs = errors.Join(errs, err)
			}
		}

		if opts.Dispatcher != nil {
			subscription, err := opts.Dispatcher.RegisterCommand(handler)
			if err != nil {
				errs = errors.Join(errs, err)
			} else if subscription != nil {
				result.Subscriptions = append(result.Subscriptions, subscription)
			}
		}

		if registerCron {
			if cronCmd, ok := handler.(command.CronCommand); ok {
				if err := opts.CronRegistrar(cronCmd.CronOptions(), cronCmd.CronHandler()); err != nil {
					errs = errors.Join(errs, err)
				}
			}
		}
	}

	loggerFor := func(module string) interfaces.Logger {
		return commands.CommandLogger(provider, module)
	}

	// Sweep commands.
	if service := container.CleanupService(); service != nil {
		cleanupLogger := loggerFor("cleanup")

		runOpts := []cleanupcmd.RunHandlerOption{
			cleanupcmd.RunWithEnvironment(cfg.Environment),
		}
		if store := container.ReportStore(); store != nil {
			runOpts = append(runOpts, cleanupcmd.RunWithStore(store))
		}
		if expr := strings.TrimSpace(cfg.Commands.SweepCron); expr != "" {
			runOpts = append(runOpts, cleanupcmd.RunWithCronExpression(expr))
		}
		register(cleanupcmd.NewRunSweepHandler(service, cleanupLogger, runOpts...))
	}
	if service := container.PreviewService(); service != nil {
		register(cleanupcmd.NewPreviewSweepHandler(service, loggerFor("cleanup"),
			cleanupcmd.PreviewWithEnvironment(cfg.Environment)))
	}

	// Publishing commands.
	if service := container.PublishService(); service != nil && cfg.Features.Publishing {
		gates := publishcmd.FeatureGates{
			PublishingEnabled: func() bool { return cfg.Features.Publishing },
		}
		publishLogger := loggerFor("publish")
		register(publishcmd.NewPublishBatchHandler(service, publishLogger, gates))
		register(publishcmd.NewUnpublishBatchHandler(service, publishLogger, gates))
	}

	// Promotion commands.
	if service := container.PromoteService(); service != nil && cfg.Features.Promotion {
		gates := promotecmd.FeatureGates{
			PromotionEnabled: func() bool { return cfg.Features.Promotion },
		}
		register(promotecmd.NewPromoteEntriesHandler(service, loggerFor("promote"), gates))
	}

	// Report commands.
	if store := container.ReportStore(); store != nil && cfg.Features.Reports {
		reportLogger := loggerFor("report")

		exportOpts := []reportcmd.ExportHandlerOption{}
		if opts.ExportWriter != nil {
			exportOpts = append(exportOpts, reportcmd.ExportWithWriter(opts.ExportWriter))
		}
		register(reportcmd.NewExportReportsHandler(store, reportLogger, exportOpts...))

		cleanupOpts := []reportcmd.CleanupHandlerOption{}
		if cfg.Report.Retention > 0 {
			cleanupOpts = append(cleanupOpts, reportcmd.CleanupWithRetention(cfg.Report.Retention))
		}
		if expr := strings.TrimSpace(cfg.Commands.ReportCleanupCron); expr != "" {
			cleanupOpts = append(cleanupOpts, reportcmd.CleanupWithCronExpression(expr))
		}
		register(reportcmd.NewCleanupReportsHandler(store, reportLogger, cleanupOpts...))
	}

	if errs != nil && len(result.Handlers) == 0 {
		return result, errs
	}

	if len(result.Handlers) == 0 {
		return result, errors.New("no command handlers registered; ensure services are configured and required features enabled")
	}

	return result, errs
}
