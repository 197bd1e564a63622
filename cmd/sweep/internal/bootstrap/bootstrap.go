// Package bootstrap loads sweep configuration for CLI binaries and builds a
// module ready for command execution. Configuration layers in order: defaults,
// the first TOML config file found, environment variables, then explicit flag
// values carried in Options.
package bootstrap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/goliatone/go-sweep"
	"github.com/goliatone/go-sweep/internal/cleanup"
	"github.com/goliatone/go-sweep/internal/di"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/internal/publish"
	"github.com/goliatone/go-sweep/internal/promote"
	"github.com/goliatone/go-sweep/internal/report"
	"github.com/goliatone/go-sweep/pkg/interfaces"
)

// Options captures configuration for sweep CLI bootstraps. String fields
// override the loaded configuration when non-empty; nil pointers leave the
// loaded value untouched.
type Options struct {
	ConfigPath     string
	Environment    string
	GraphKind      string
	BaseURL        string
	Space          string
	Token          string
	RulesPath      string
	DryRun         *bool
	MaxDeletions   *int
	ReportDriver   string
	ReportDSN      string
	Verbose        bool
	LoggerProvider interfaces.LoggerProvider
}

// Module wraps the sweep module with the services and logger the CLI
// subcommands execute against.
type Module struct {
	Module    *sweep.Module
	Config    sweep.Config
	Cleanup   cleanup.Service
	Preview   cleanup.Service
	Publisher publish.Service
	Promoter  promote.Service
	Reports   report.Store
	Logger    interfaces.Logger
}

// BuildModule constructs a sweep module configured for CLI use. Publishing and
// promotion are switched on so their subcommands can run, and the console
// logger is enabled so command handlers can report progress.
func BuildModule(opts Options) (*Module, error) {
	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	cfg.Features.Logger = true
	cfg.Features.Publishing = true
	cfg.Features.Promotion = true
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}

	if v := strings.TrimSpace(opts.Environment); v != "" {
		cfg.Environment = v
	}
	if v := strings.TrimSpace(opts.GraphKind); v != "" {
		cfg.Graph.Kind = v
	}
	if v := strings.TrimSpace(opts.BaseURL); v != "" {
		cfg.Graph.BaseURL = v
	}
	if v := strings.TrimSpace(opts.Space); v != "" {
		cfg.Graph.Space = v
	}
	if v := strings.TrimSpace(opts.Token); v != "" {
		cfg.Graph.Token = v
	}
	if v := strings.TrimSpace(opts.RulesPath); v != "" {
		cfg.Rules.Path = v
		cfg.Rules.Inline = nil
	}
	if opts.DryRun != nil {
		cfg.Cleanup.DryRun = *opts.DryRun
	}
	if opts.MaxDeletions != nil {
		cfg.Cleanup.MaxDeletionsPerRun = *opts.MaxDeletions
	}
	if v := strings.TrimSpace(opts.ReportDriver); v != "" {
		cfg.Report.Driver = v
		cfg.Report.Enabled = true
		cfg.Features.Reports = true
	}
	if v := strings.TrimSpace(opts.ReportDSN); v != "" {
		cfg.Report.DSN = v
	}

	diOpts := []di.Option{}
	if opts.LoggerProvider != nil {
		diOpts = append(diOpts, di.WithLoggerProvider(opts.LoggerProvider))
	}

	module, err := sweep.New(cfg, diOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise sweep module: %w", err)
	}

	logger := logging.ModuleLogger(module.Container().LoggerProvider(), "cli")

	return &Module{
		Module:    module,
		Config:    cfg,
		Cleanup:   module.Cleanup(),
		Preview:   module.Preview(),
		Publisher: module.Publisher(),
		Promoter:  module.Promoter(),
		Reports:   module.Reports(),
		Logger:    logger,
	}, nil
}

// Close releases module resources. Safe to call on a partially built module.
func (m *Module) Close() error {
	if m == nil || m.Module == nil {
		return nil
	}
	return m.Module.Close()
}

// fileConfig mirrors the runtime configuration with TOML-friendly types.
// Durations are strings parsed with time.ParseDuration; pointer fields
// distinguish unset from zero so file values only override what they name.
type fileConfig struct {
	Environment string          `toml:"environment"`
	Graph       graphSection    `toml:"graph"`
	Retry       retrySection    `toml:"retry"`
	Cleanup     cleanupSection  `toml:"cleanup"`
	Rules       rulesSection    `toml:"rules"`
	Report      reportSection   `toml:"report"`
	Logging     loggingSection  `toml:"logging"`
	Commands    commandsSection `toml:"commands"`
	Features    featuresSection `toml:"features"`
}

type graphSection struct {
	Kind    string `toml:"kind"`
	BaseURL string `toml:"base_url"`
	Space   string `toml:"space"`
	Token   string `toml:"token"`
}

type retrySection struct {
	MaxRetries *int   `toml:"max_retries"`
	BaseDelay  string `toml:"base_delay"`
	MaxDelay   string `toml:"max_delay"`
	PageDelay  string `toml:"page_delay"`
	Timeout    string `toml:"timeout"`
}

type cleanupSection struct {
	MaxDeletionsPerRun          *int  `toml:"max_deletions_per_run"`
	BatchSize                   *int  `toml:"batch_size"`
	PageSize                    *int  `toml:"page_size"`
	TreatIncompleteLinksAsEmpty *bool `toml:"treat_incomplete_links_as_empty"`
	DryRun                      *bool `toml:"dry_run"`
}

type rulesSection struct {
	Path   string `toml:"path"`
	Inline string `toml:"inline"`
}

type reportSection struct {
	Enabled   *bool  `toml:"enabled"`
	Driver    string `toml:"driver"`
	DSN       string `toml:"dsn"`
	Retention *int   `toml:"retention"`
}

type loggingSection struct {
	Provider  string   `toml:"provider"`
	Level     string   `toml:"level"`
	Format    string   `toml:"format"`
	AddSource *bool    `toml:"add_source"`
	Focus     []string `toml:"focus"`
}

type commandsSection struct {
	Enabled           *bool  `toml:"enabled"`
	AutoRegisterCron  *bool  `toml:"auto_register_cron"`
	SweepCron         string `toml:"sweep_cron"`
	ReportCleanupCron string `toml:"report_cleanup_cron"`
}

type featuresSection struct {
	Publishing *bool `toml:"publishing"`
	Promotion  *bool `toml:"promotion"`
	Reports    *bool `toml:"reports"`
	Logger     *bool `toml:"logger"`
}

// LoadConfig resolves the runtime configuration. An explicit path must decode
// cleanly; otherwise the default locations are probed in order and the first
// existing file is used. Environment variables override file values.
func LoadConfig(path string) (sweep.Config, error) {
	cfg := sweep.DefaultConfig()

	var file fileConfig
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		if _, err := toml.DecodeFile(trimmed, &file); err != nil {
			return cfg, fmt.Errorf("decode config %s: %w", trimmed, err)
		}
		if err := applyFileConfig(&cfg, file); err != nil {
			return cfg, fmt.Errorf("apply config %s: %w", trimmed, err)
		}
	} else {
		for _, location := range defaultConfigLocations() {
			if _, err := os.Stat(location); err != nil {
				continue
			}
			if _, err := toml.DecodeFile(location, &file); err != nil {
				return cfg, fmt.Errorf("decode config %s: %w", location, err)
			}
			if err := applyFileConfig(&cfg, file); err != nil {
				return cfg, fmt.Errorf("apply config %s: %w", location, err)
			}
			break
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func defaultConfigLocations() []string {
	locations := []string{filepath.Join(".sweep", "config.toml")}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		locations = append(locations, filepath.Join(home, ".sweep", "config.toml"))
	}
	return append(locations, filepath.Join("/etc", "sweep", "config.toml"))
}

func applyFileConfig(cfg *sweep.Config, file fileConfig) error {
	if v := strings.TrimSpace(file.Environment); v != "" {
		cfg.Environment = v
	}

	if v := strings.TrimSpace(file.Graph.Kind); v != "" {
		cfg.Graph.Kind = v
	}
	if v := strings.TrimSpace(file.Graph.BaseURL); v != "" {
		cfg.Graph.BaseURL = v
	}
	if v := strings.TrimSpace(file.Graph.Space); v != "" {
		cfg.Graph.Space = v
	}
	if v := strings.TrimSpace(file.Graph.Token); v != "" {
		cfg.Graph.Token = v
	}

	if file.Retry.MaxRetries != nil {
		cfg.Retry.MaxRetries = *file.Retry.MaxRetries
	}
	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"retry.base_delay", file.Retry.BaseDelay, &cfg.Retry.BaseDelay},
		{"retry.max_delay", file.Retry.MaxDelay, &cfg.Retry.MaxDelay},
		{"retry.page_delay", file.Retry.PageDelay, &cfg.Retry.PageDelay},
		{"retry.timeout", file.Retry.Timeout, &cfg.Retry.Timeout},
	}
	for _, d := range durations {
		value := strings.TrimSpace(d.value)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	if file.Cleanup.MaxDeletionsPerRun != nil {
		cfg.Cleanup.MaxDeletionsPerRun = *file.Cleanup.MaxDeletionsPerRun
	}
	if file.Cleanup.BatchSize != nil {
		cfg.Cleanup.BatchSize = *file.Cleanup.BatchSize
	}
	if file.Cleanup.PageSize != nil {
		cfg.Cleanup.PageSize = *file.Cleanup.PageSize
	}
	if file.Cleanup.TreatIncompleteLinksAsEmpty != nil {
		cfg.Cleanup.TreatIncompleteLinksAsEmpty = *file.Cleanup.TreatIncompleteLinksAsEmpty
	}
	if file.Cleanup.DryRun != nil {
		cfg.Cleanup.DryRun = *file.Cleanup.DryRun
	}

	if v := strings.TrimSpace(file.Rules.Path); v != "" {
		cfg.Rules.Path = v
	}
	if v := strings.TrimSpace(file.Rules.Inline); v != "" {
		cfg.Rules.Inline = json.RawMessage(v)
	}

	if file.Report.Enabled != nil {
		cfg.Report.Enabled = *file.Report.Enabled
	}
	if v := strings.TrimSpace(file.Report.Driver); v != "" {
		cfg.Report.Driver = v
	}
	if v := strings.TrimSpace(file.Report.DSN); v != "" {
		cfg.Report.DSN = v
	}
	if file.Report.Retention != nil {
		cfg.Report.Retention = *file.Report.Retention
	}

	if v := strings.TrimSpace(file.Logging.Provider); v != "" {
		cfg.Logging.Provider = v
	}
	if v := strings.TrimSpace(file.Logging.Level); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(file.Logging.Format); v != "" {
		cfg.Logging.Format = v
	}
	if file.Logging.AddSource != nil {
		cfg.Logging.AddSource = *file.Logging.AddSource
	}
	if len(file.Logging.Focus) > 0 {
		cfg.Logging.Focus = cloneStrings(file.Logging.Focus)
	}

	if file.Commands.Enabled != nil {
		cfg.Commands.Enabled = *file.Commands.Enabled
	}
	if file.Commands.AutoRegisterCron != nil {
		cfg.Commands.AutoRegisterCron = *file.Commands.AutoRegisterCron
	}
	if v := strings.TrimSpace(file.Commands.SweepCron); v != "" {
		cfg.Commands.SweepCron = v
	}
	if v := strings.TrimSpace(file.Commands.ReportCleanupCron); v != "" {
		cfg.Commands.ReportCleanupCron = v
	}

	if file.Features.Publishing != nil {
		cfg.Features.Publishing = *file.Features.Publishing
	}
	if file.Features.Promotion != nil {
		cfg.Features.Promotion = *file.Features.Promotion
	}
	if file.Features.Reports != nil {
		cfg.Features.Reports = *file.Features.Reports
	}
	if file.Features.Logger != nil {
		cfg.Features.Logger = *file.Features.Logger
	}

	return nil
}

func applyEnvOverrides(cfg *sweep.Config) {
	if v := os.Getenv("SWEEP_ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("SWEEP_GRAPH_KIND"); v != "" {
		cfg.Graph.Kind = v
	}
	if v := os.Getenv("SWEEP_BASE_URL"); v != "" {
		cfg.Graph.BaseURL = v
	}
	if v := os.Getenv("SWEEP_SPACE"); v != "" {
		cfg.Graph.Space = v
	}
	if v := os.Getenv("SWEEP_TOKEN"); v != "" {
		cfg.Graph.Token = v
	}
	if v := os.Getenv("SWEEP_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("SWEEP_REPORT_DRIVER"); v != "" {
		cfg.Report.Driver = v
	}
	if v := os.Getenv("SWEEP_REPORT_DSN"); v != "" {
		cfg.Report.DSN = v
	}
	if v := os.Getenv("SWEEP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// SplitList parses a comma separated list into a trimmed slice.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
