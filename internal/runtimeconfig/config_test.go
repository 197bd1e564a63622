package runtimeconfig_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-sweep/internal/retry"
	"github.com/goliatone/go-sweep/internal/runtimeconfig"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
	if cfg.Cleanup.MaxDeletionsPerRun != 100 || cfg.Cleanup.BatchSize != 10 {
		t.Fatalf("unexpected cleanup defaults: %+v", cfg.Cleanup)
	}
	if !cfg.Cleanup.TreatIncompleteLinksAsEmpty {
		t.Fatal("expected incomplete links to count as empty by default")
	}
	if cfg.Retry.MaxRetries != 6 || cfg.Retry.BaseDelay != 500*time.Millisecond {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Retry.MaxDelay != 30*time.Second || cfg.Retry.Timeout != 30*time.Second {
		t.Fatalf("unexpected retry ceilings: %+v", cfg.Retry)
	}
}

func TestConfigValidate_RemoteGraphNeedsCredentials(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Graph.Kind = runtimeconfig.GraphKindRemote

	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrGraphSpaceRequired) {
		t.Fatalf("expected ErrGraphSpaceRequired, got %v", err)
	}

	cfg.Graph.Space = "space-1"
	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrGraphTokenRequired) {
		t.Fatalf("expected ErrGraphTokenRequired, got %v", err)
	}

	cfg.Graph.Token = "cma-token"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}

func TestConfigValidate_EmptyKindMeansRemote(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Graph.Kind = ""

	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrGraphSpaceRequired) {
		t.Fatalf("expected ErrGraphSpaceRequired, got %v", err)
	}
}

func TestConfigValidate_RejectsUnknownGraphKind(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Graph.Kind = "filesystem"

	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrGraphKindUnknown) {
		t.Fatalf("expected ErrGraphKindUnknown, got %v", err)
	}
}

func TestConfigValidate_RequiresPositiveCleanupLimits(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Cleanup.MaxDeletionsPerRun = 0
	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrMaxDeletionsInvalid) {
		t.Fatalf("expected ErrMaxDeletionsInvalid, got %v", err)
	}

	cfg = runtimeconfig.DefaultConfig()
	cfg.Cleanup.BatchSize = -1
	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrBatchSizeInvalid) {
		t.Fatalf("expected ErrBatchSizeInvalid, got %v", err)
	}

	cfg = runtimeconfig.DefaultConfig()
	cfg.Cleanup.PageSize = 0
	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrPageSizeInvalid) {
		t.Fatalf("expected ErrPageSizeInvalid, got %v", err)
	}
}

func TestConfigValidate_RetryBounds(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Retry.MaxRetries = -1
	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrRetryBoundsInvalid) {
		t.Fatalf("expected ErrRetryBoundsInvalid, got %v", err)
	}

	cfg = runtimeconfig.DefaultConfig()
	cfg.Retry.BaseDelay = 10 * time.Second
	cfg.Retry.MaxDelay = time.Second
	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrRetryBoundsInvalid) {
		t.Fatalf("expected ErrRetryBoundsInvalid, got %v", err)
	}

	// Negative page delay and timeout are the documented disable switches.
	cfg = runtimeconfig.DefaultConfig()
	cfg.Retry.PageDelay = -1
	cfg.Retry.Timeout = -1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}

func TestConfigValidate_RulesSourcesAreExclusive(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Rules.Path = "rules.json"
	cfg.Rules.Inline = json.RawMessage(`{"rules":[]}`)

	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrRulesSourceConflict) {
		t.Fatalf("expected ErrRulesSourceConflict, got %v", err)
	}

	cfg.Rules.Inline = nil
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}

func TestConfigValidate_ReportStore(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Report.Enabled = true
	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrReportsFeatureRequired) {
		t.Fatalf("expected ErrReportsFeatureRequired, got %v", err)
	}

	cfg.Features.Reports = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("memory driver should validate without a dsn: %v", err)
	}

	cfg.Report.Driver = runtimeconfig.ReportDriverSQLite
	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrReportDSNRequired) {
		t.Fatalf("expected ErrReportDSNRequired, got %v", err)
	}

	cfg.Report.DSN = "file:sweep.db"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}

	cfg.Report.Driver = "mongodb"
	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrReportDriverUnknown) {
		t.Fatalf("expected ErrReportDriverUnknown, got %v", err)
	}

	cfg.Report.Driver = runtimeconfig.ReportDriverPostgres
	cfg.Report.Retention = -1
	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrReportRetentionInvalid) {
		t.Fatalf("expected ErrReportRetentionInvalid, got %v", err)
	}
}

func TestConfigValidate_PromotionRequiresPublishing(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Features.Promotion = true

	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrPromotionRequiresPublishing) {
		t.Fatalf("expected ErrPromotionRequiresPublishing, got %v", err)
	}

	cfg.Features.Publishing = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}

func TestConfigValidate_CronRequiresCommands(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Commands.AutoRegisterCron = true

	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrCommandsCronRequiresCommands) {
		t.Fatalf("expected ErrCommandsCronRequiresCommands, got %v", err)
	}

	cfg.Commands.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}

func TestConfigValidate_Logging(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Features.Logger = true
	cfg.Logging.Provider = " "
	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrLoggingProviderRequired) {
		t.Fatalf("expected ErrLoggingProviderRequired, got %v", err)
	}

	cfg.Logging.Provider = "zap"
	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrLoggingProviderUnknown) {
		t.Fatalf("expected ErrLoggingProviderUnknown, got %v", err)
	}

	cfg.Logging.Provider = "gologger"
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrLoggingLevelInvalid) {
		t.Fatalf("expected ErrLoggingLevelInvalid, got %v", err)
	}

	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); !errors.Is(err, runtimeconfig.ErrLoggingFormatInvalid) {
		t.Fatalf("expected ErrLoggingFormatInvalid, got %v", err)
	}

	cfg.Logging.Format = "json"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}

	// Format is a gologger concern; the console provider ignores it.
	cfg.Logging.Provider = "console"
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}

func TestRetryConfigMapsToRunnerConfig(t *testing.T) {
	section := runtimeconfig.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   5 * time.Second,
		PageDelay:  -1,
		Timeout:    10 * time.Second,
	}

	want := retry.Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   5 * time.Second,
		PageDelay:  -1,
		Timeout:    10 * time.Second,
	}
	if got := section.RunnerConfig(); got != want {
		t.Fatalf("RunnerConfig() = %+v, want %+v", got, want)
	}
}
