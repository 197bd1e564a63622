package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/goliatone/go-sweep/cmd/sweep/internal/bootstrap"
	"github.com/goliatone/go-sweep/internal/commands/cleanupcmd"
	"github.com/goliatone/go-sweep/internal/commands/promotecmd"
	"github.com/goliatone/go-sweep/internal/commands/publishcmd"
	"github.com/goliatone/go-sweep/internal/commands/reportcmd"
)

var moduleBuilder = bootstrap.BuildModule

const usage = `Usage: sweep <command> [flags]

Commands:
  cleanup run      Run deletion rules against the content graph
  cleanup preview  Evaluate deletion rules without mutating anything
  publish          Publish nodes selected by id or content type
  unpublish        Unpublish nodes selected by id or content type
  promote          Copy entries from one environment into another
  reports export   Print stored run reports as JSON
  reports cleanup  Delete old run reports, keeping the newest

Run "sweep <command> -h" for command flags.`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("sweep: %v", err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n\n%s", usage)
	}
	switch args[0] {
	case "cleanup":
		return runCleanup(args[1:])
	case "publish":
		return runPublish(args[1:])
	case "unpublish":
		return runUnpublish(args[1:])
	case "promote":
		return runPromote(args[1:])
	case "reports":
		return runReports(args[1:])
	case "help", "-h", "--help":
		fmt.Fprintln(os.Stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func runCleanup(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("cleanup requires a subcommand: run or preview")
	}
	switch args[0] {
	case "run":
		return runCleanupRun(args[1:])
	case "preview":
		return runCleanupPreview(args[1:])
	default:
		return fmt.Errorf("unknown cleanup subcommand %q", args[0])
	}
}

func runReports(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("reports requires a subcommand: export or cleanup")
	}
	switch args[0] {
	case "export":
		return runReportsExport(args[1:])
	case "cleanup":
		return runReportsCleanup(args[1:])
	default:
		return fmt.Errorf("unknown reports subcommand %q", args[0])
	}
}

func runCleanupRun(args []string) error {
	fs := flag.NewFlagSet("sweep-cleanup-run", flag.ExitOnError)
	common := registerCommonFlags(fs)
	dryRun := fs.Bool("dry-run", false, "Evaluate and report without unlinking or deleting anything")
	maxDeletions := fs.Int("max-deletions", 0, "Override the per-run deletion quota (0 keeps the configured value)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := common.options()
	if flagProvided(fs, "dry-run") {
		opts.DryRun = dryRun
	}
	if *maxDeletions > 0 {
		opts.MaxDeletions = maxDeletions
	}

	module, err := moduleBuilder(opts)
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	defer module.Close()
	if module.Cleanup == nil {
		return fmt.Errorf("cleanup service not configured")
	}

	handlerOpts := []cleanupcmd.RunHandlerOption{
		cleanupcmd.RunWithEnvironment(module.Config.Environment),
	}
	if module.Reports != nil {
		handlerOpts = append(handlerOpts, cleanupcmd.RunWithStore(module.Reports))
	}
	handler := cleanupcmd.NewRunSweepHandler(module.Cleanup, module.Logger, handlerOpts...)

	if err := handler.Execute(context.Background(), cleanupcmd.RunSweepCommand{}); err != nil {
		return fmt.Errorf("execute cleanup run command: %w", err)
	}
	fmt.Fprintln(os.Stdout, "cleanup run command executed successfully")
	return nil
}

func runCleanupPreview(args []string) error {
	fs := flag.NewFlagSet("sweep-cleanup-preview", flag.ExitOnError)
	common := registerCommonFlags(fs)
	limit := fs.Int("limit", 0, "Log at most this many per-node decisions (default logs all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	module, err := moduleBuilder(common.options())
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	defer module.Close()
	if module.Preview == nil {
		return fmt.Errorf("preview service not configured")
	}

	handler := cleanupcmd.NewPreviewSweepHandler(module.Preview, module.Logger,
		cleanupcmd.PreviewWithEnvironment(module.Config.Environment))

	cmd := cleanupcmd.PreviewSweepCommand{}
	if flagProvided(fs, "limit") {
		cmd.Limit = limit
	}
	if err := handler.Execute(context.Background(), cmd); err != nil {
		return fmt.Errorf("execute cleanup preview command: %w", err)
	}
	fmt.Fprintln(os.Stdout, "cleanup preview command executed successfully")
	return nil
}

func runPublish(args []string) error {
	fs := flag.NewFlagSet("sweep-publish", flag.ExitOnError)
	common := registerCommonFlags(fs)
	ids := fs.String("ids", "", "Comma separated node ids to publish")
	contentType := fs.String("content-type", "", "Publish every node of this content type")
	dryRun := fs.Bool("dry-run", false, "Report transitions without writing them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	module, err := moduleBuilder(common.options())
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	defer module.Close()
	if module.Publisher == nil {
		return fmt.Errorf("publish service not configured; ensure Features.Publishing is enabled")
	}

	handler := publishcmd.NewPublishBatchHandler(module.Publisher, module.Logger, publishcmd.FeatureGates{
		PublishingEnabled: func() bool { return true },
	})
	cmd := publishcmd.PublishBatchCommand{
		Environment: module.Config.Environment,
		IDs:         bootstrap.SplitList(*ids),
		ContentType: *contentType,
		DryRun:      *dryRun,
	}
	if err := handler.Execute(context.Background(), cmd); err != nil {
		return fmt.Errorf("execute publish command: %w", err)
	}
	fmt.Fprintln(os.Stdout, "publish command executed successfully")
	return nil
}

func runUnpublish(args []string) error {
	fs := flag.NewFlagSet("sweep-unpublish", flag.ExitOnError)
	common := registerCommonFlags(fs)
	ids := fs.String("ids", "", "Comma separated node ids to unpublish")
	contentType := fs.String("content-type", "", "Unpublish every node of this content type")
	dryRun := fs.Bool("dry-run", false, "Report transitions without writing them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	module, err := moduleBuilder(common.options())
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	defer module.Close()
	if module.Publisher == nil {
		return fmt.Errorf("publish service not configured; ensure Features.Publishing is enabled")
	}

	handler := publishcmd.NewUnpublishBatchHandler(module.Publisher, module.Logger, publishcmd.FeatureGates{
		PublishingEnabled: func() bool { return true },
	})
	cmd := publishcmd.UnpublishBatchCommand{
		Environment: module.Config.Environment,
		IDs:         bootstrap.SplitList(*ids),
		ContentType: *contentType,
		DryRun:      *dryRun,
	}
	if err := handler.Execute(context.Background(), cmd); err != nil {
		return fmt.Errorf("execute unpublish command: %w", err)
	}
	fmt.Fprintln(os.Stdout, "unpublish command executed successfully")
	return nil
}

func runPromote(args []string) error {
	fs := flag.NewFlagSet("sweep-promote", flag.ExitOnError)
	common := registerCommonFlags(fs)
	source := fs.String("source", "", "Source environment (defaults to the configured environment)")
	target := fs.String("target", "", "Target environment")
	ids := fs.String("ids", "", "Comma separated entry ids to promote")
	contentTypes := fs.String("content-types", "", "Comma separated content types to promote")
	publishAfter := fs.Bool("publish", false, "Publish entries in the target after copying")
	overwrite := fs.Bool("overwrite", false, "Overwrite target entries even when they are newer than the source")
	dryRun := fs.Bool("dry-run", false, "Report transitions without writing them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	module, err := moduleBuilder(common.options())
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	defer module.Close()
	if module.Promoter == nil {
		return fmt.Errorf("promote service not configured; ensure Features.Promotion is enabled")
	}

	src := strings.TrimSpace(*source)
	if src == "" {
		src = module.Config.Environment
	}

	handler := promotecmd.NewPromoteEntriesHandler(module.Promoter, module.Logger, promotecmd.FeatureGates{
		PromotionEnabled: func() bool { return true },
	})
	cmd := promotecmd.PromoteEntriesCommand{
		Source:       src,
		Target:       *target,
		IDs:          bootstrap.SplitList(*ids),
		ContentTypes: bootstrap.SplitList(*contentTypes),
		Publish:      *publishAfter,
		DryRun:       *dryRun,
		Overwrite:    *overwrite,
	}
	if err := handler.Execute(context.Background(), cmd); err != nil {
		return fmt.Errorf("execute promote command: %w", err)
	}
	fmt.Fprintln(os.Stdout, "promote command executed successfully")
	return nil
}

func runReportsExport(args []string) error {
	fs := flag.NewFlagSet("sweep-reports-export", flag.ExitOnError)
	common := registerCommonFlags(fs)
	runID := fs.String("run-id", "", "Export a single run by its run id")
	maxRecords := fs.Int("max-records", 0, "Cap the number of exported records (0 exports all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	module, err := moduleBuilder(common.options())
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	defer module.Close()
	if module.Reports == nil {
		return fmt.Errorf("report store not configured; ensure Features.Reports and the report section are enabled")
	}

	handler := reportcmd.NewExportReportsHandler(module.Reports, module.Logger,
		reportcmd.ExportWithWriter(os.Stdout))

	cmd := reportcmd.ExportReportsCommand{RunID: *runID}
	if *maxRecords > 0 {
		cmd.MaxRecords = maxRecords
	}
	if err := handler.Execute(context.Background(), cmd); err != nil {
		return fmt.Errorf("execute reports export command: %w", err)
	}
	return nil
}

func runReportsCleanup(args []string) error {
	fs := flag.NewFlagSet("sweep-reports-cleanup", flag.ExitOnError)
	common := registerCommonFlags(fs)
	keep := fs.Int("keep", 0, "Keep the newest N reports (defaults to the configured retention)")
	dryRun := fs.Bool("dry-run", false, "Report what would be pruned without deleting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	module, err := moduleBuilder(common.options())
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	defer module.Close()
	if module.Reports == nil {
		return fmt.Errorf("report store not configured; ensure Features.Reports and the report section are enabled")
	}

	handlerOpts := []reportcmd.CleanupHandlerOption{}
	if module.Config.Report.Retention > 0 {
		handlerOpts = append(handlerOpts, reportcmd.CleanupWithRetention(module.Config.Report.Retention))
	}
	handler := reportcmd.NewCleanupReportsHandler(module.Reports, module.Logger, handlerOpts...)

	cmd := reportcmd.CleanupReportsCommand{DryRun: *dryRun}
	if flagProvided(fs, "keep") {
		cmd.Keep = keep
	}
	if err := handler.Execute(context.Background(), cmd); err != nil {
		return fmt.Errorf("execute reports cleanup command: %w", err)
	}
	fmt.Fprintln(os.Stdout, "reports cleanup command executed successfully")
	return nil
}

type commonFlags struct {
	configPath  *string
	environment *string
	graphKind   *string
	baseURL     *string
	space       *string
	token       *string
	rulesPath   *string
	verbose     *bool
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath:  fs.String("config", "", "Path to a TOML config file (defaults to .sweep/config.toml)"),
		environment: fs.String("environment", "", "Environment to operate on (defaults to the configured environment)"),
		graphKind:   fs.String("graph", "", "Graph backend kind: remote or memory"),
		baseURL:     fs.String("base-url", "", "Management API base URL"),
		space:       fs.String("space", "", "Space identifier for the remote graph"),
		token:       fs.String("token", "", "Management API token (falls back to SWEEP_TOKEN)"),
		rulesPath:   fs.String("rules", "", "Path to the deletion rules document"),
		verbose:     fs.Bool("verbose", false, "Log per-node decisions at debug level"),
	}
}

func (f *commonFlags) options() bootstrap.Options {
	return bootstrap.Options{
		ConfigPath:  *f.configPath,
		Environment: *f.environment,
		GraphKind:   *f.graphKind,
		BaseURL:     *f.baseURL,
		Space:       *f.space,
		Token:       *f.token,
		RulesPath:   *f.rulesPath,
		Verbose:     *f.verbose,
	}
}

func flagProvided(fs *flag.FlagSet, name string) bool {
	provided := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			provided = true
		}
	})
	return provided
}
