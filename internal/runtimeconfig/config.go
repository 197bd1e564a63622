// Package runtimeconfig aggregates the module's runtime settings: graph
// backend selection, retry discipline, cleanup limits, rule sources,
// report persistence, logging, and feature flags.
package runtimeconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-sweep/internal/cleanup"
	"github.com/goliatone/go-sweep/internal/retry"
)

// ErrGraphKindUnknown indicates an unsupported graph backend kind.
var ErrGraphKindUnknown = errors.New("sweep config: graph kind is invalid")

// ErrPromotionRequiresPublishing keeps promotion behind the publishing flag,
// since promoted entries are published through the publishing service.
var ErrPromotionRequiresPublishing = errors.New("sweep config: promotion feature requires publishing to be enabled")

// ErrReportsFeatureRequired indicates inconsistent report configuration.
var ErrReportsFeatureRequired = errors.New("sweep config: reports feature must be enabled to configure the report store")

// ErrCommandsCronRequiresCommands ensures cron wiring only runs when the
// command layer is enabled.
var ErrCommandsCronRequiresCommands = errors.New("sweep config: cron auto-registration requires commands to be enabled")

var ErrGraphSpaceRequired = errors.New("sweep config: graph space is required for the remote backend")
var ErrGraphTokenRequired = errors.New("sweep config: graph token is required for the remote backend")
var ErrMaxDeletionsInvalid = errors.New("sweep config: max deletions per run must be positive")
var ErrBatchSizeInvalid = errors.New("sweep config: batch size must be positive")
var ErrPageSizeInvalid = errors.New("sweep config: page size must be positive")
var ErrRetryBoundsInvalid = errors.New("sweep config: retry bounds are invalid")
var ErrRulesSourceConflict = errors.New("sweep config: rules path and inline rules are mutually exclusive")
var ErrReportDriverUnknown = errors.New("sweep config: report driver is invalid")
var ErrReportDSNRequired = errors.New("sweep config: report dsn is required for database drivers")
var ErrReportRetentionInvalid = errors.New("sweep config: report retention must be zero or positive")
var ErrLoggingProviderRequired = errors.New("sweep config: logging provider is required when logging feature is enabled")
var ErrLoggingProviderUnknown = errors.New("sweep config: logging provider is invalid")
var ErrLoggingLevelInvalid = errors.New("sweep config: logging level is invalid")
var ErrLoggingFormatInvalid = errors.New("sweep config: logging format is invalid")

// Graph backend kinds.
const (
	GraphKindRemote = "remote"
	GraphKindMemory = "memory"
)

// Report store drivers.
const (
	ReportDriverSQLite   = "sqlite"
	ReportDriverPostgres = "postgres"
	ReportDriverMemory   = "memory"
)

// Config aggregates runtime settings for the sweep module. Fields use
// simple types so host applications can overlay their own loaders.
type Config struct {
	Environment string
	Graph       GraphConfig
	Retry       RetryConfig
	Cleanup     CleanupConfig
	Rules       RulesConfig
	Report      ReportConfig
	Logging     LoggingConfig
	Commands    CommandsConfig
	Features    Features
}

// GraphConfig selects and parameterizes the content graph backend.
type GraphConfig struct {
	Kind    string
	BaseURL string
	Space   string
	Token   string
}

// RetryConfig bounds retry and pagination behaviour for graph calls.
// Zero durations select the defaults; a negative PageDelay or Timeout
// disables that behaviour.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	PageDelay  time.Duration
	Timeout    time.Duration
}

// RunnerConfig maps the retry section onto the runner configuration.
func (c RetryConfig) RunnerConfig() retry.Config {
	return retry.Config{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.BaseDelay,
		MaxDelay:   c.MaxDelay,
		PageDelay:  c.PageDelay,
		Timeout:    c.Timeout,
	}
}

// CleanupConfig bounds deletion runs.
type CleanupConfig struct {
	MaxDeletionsPerRun          int
	BatchSize                   int
	PageSize                    int
	TreatIncompleteLinksAsEmpty bool
	DryRun                      bool
}

// RulesConfig locates the deletion rule set: a file path or an inline
// JSON document, never both.
type RulesConfig struct {
	Path   string
	Inline json.RawMessage
}

// ReportConfig controls run report persistence.
type ReportConfig struct {
	Enabled   bool
	Driver    string
	DSN       string
	Retention int
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string
	Level     string
	Format    string
	AddSource bool
	Focus     []string
}

// CommandsConfig captures optional command-layer behaviour.
type CommandsConfig struct {
	Enabled           bool
	AutoRegisterCron  bool
	SweepCron         string
	ReportCleanupCron string
}

// Features toggles module functionality.
type Features struct {
	Publishing bool
	Promotion  bool
	Reports    bool
	Logger     bool
}

// DefaultConfig returns opinionated defaults: the standard retry
// envelope and cleanup limits matching the engine defaults. The graph
// backend starts on the in-memory kind; switching to remote requires a
// space and token.
func DefaultConfig() Config {
	return Config{
		Environment: "master",
		Graph: GraphConfig{
			Kind: GraphKindMemory,
		},
		Retry: RetryConfig{
			MaxRetries: retry.DefaultMaxRetries,
			BaseDelay:  retry.DefaultBaseDelay,
			MaxDelay:   retry.DefaultMaxDelay,
			PageDelay:  retry.DefaultPageDelay,
			Timeout:    retry.DefaultTimeout,
		},
		Cleanup: CleanupConfig{
			MaxDeletionsPerRun:          cleanup.DefaultMaxDeletionsPerRun,
			BatchSize:                   cleanup.DefaultBatchSize,
			PageSize:                    retry.DefaultPageSize,
			TreatIncompleteLinksAsEmpty: true,
		},
		Report: ReportConfig{
			Driver:    ReportDriverMemory,
			Retention: 30,
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
			Format:   "",
		},
		Commands: CommandsConfig{
			SweepCron:         "@daily",
			ReportCleanupCron: "@daily",
		},
		Features: Features{},
	}
}

// Validate performs high-level consistency checks.
func (cfg Config) Validate() error {
	switch normalizeToken(cfg.Graph.Kind) {
	case GraphKindMemory:
	case GraphKindRemote, "":
		if strings.TrimSpace(cfg.Graph.Space) == "" {
			return ErrGraphSpaceRequired
		}
		if strings.TrimSpace(cfg.Graph.Token) == "" {
			return ErrGraphTokenRequired
		}
	default:
		return fmt.Errorf("%w: %s", ErrGraphKindUnknown, cfg.Graph.Kind)
	}

	if cfg.Cleanup.MaxDeletionsPerRun <= 0 {
		return ErrMaxDeletionsInvalid
	}
	if cfg.Cleanup.BatchSize <= 0 {
		return ErrBatchSizeInvalid
	}
	if cfg.Cleanup.PageSize <= 0 {
		return ErrPageSizeInvalid
	}

	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries is negative", ErrRetryBoundsInvalid)
	}
	if cfg.Retry.BaseDelay < 0 {
		return fmt.Errorf("%w: base delay is negative", ErrRetryBoundsInvalid)
	}
	if cfg.Retry.MaxDelay < 0 {
		return fmt.Errorf("%w: max delay is negative", ErrRetryBoundsInvalid)
	}
	if cfg.Retry.BaseDelay > 0 && cfg.Retry.MaxDelay > 0 && cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		return fmt.Errorf("%w: max delay is below base delay", ErrRetryBoundsInvalid)
	}

	if strings.TrimSpace(cfg.Rules.Path) != "" && len(cfg.Rules.Inline) > 0 {
		return ErrRulesSourceConflict
	}

	if cfg.Report.Enabled {
		if !cfg.Features.Reports {
			return ErrReportsFeatureRequired
		}
		driver := normalizeToken(cfg.Report.Driver)
		switch driver {
		case ReportDriverMemory, "":
		case ReportDriverSQLite, ReportDriverPostgres:
			if strings.TrimSpace(cfg.Report.DSN) == "" {
				return fmt.Errorf("%w: %s", ErrReportDSNRequired, driver)
			}
		default:
			return fmt.Errorf("%w: %s", ErrReportDriverUnknown, cfg.Report.Driver)
		}
		if cfg.Report.Retention < 0 {
			return ErrReportRetentionInvalid
		}
	}

	if cfg.Features.Promotion && !cfg.Features.Publishing {
		return ErrPromotionRequiresPublishing
	}
	if cfg.Commands.AutoRegisterCron && !cfg.Commands.Enabled {
		return ErrCommandsCronRequiresCommands
	}

	if cfg.Features.Logger {
		provider := normalizeToken(cfg.Logging.Provider)
		if provider == "" {
			return ErrLoggingProviderRequired
		}
		if !isSupportedProvider(provider) {
			return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
		}
		if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
			return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
		}
		if provider == "gologger" {
			if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(format) {
				return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
			}
		}
	}
	return nil
}

func normalizeToken(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isSupportedProvider(provider string) bool {
	switch provider {
	case "console", "gologger":
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "console", "pretty":
		return true
	default:
		return false
	}
}
