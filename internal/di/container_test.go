package di_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-sweep/internal/cleanup"
	"github.com/goliatone/go-sweep/internal/di"
	"github.com/goliatone/go-sweep/internal/graph"
	"github.com/goliatone/go-sweep/internal/report"
	"github.com/goliatone/go-sweep/internal/runtimeconfig"
	"github.com/goliatone/go-sweep/pkg/testsupport"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const inlineRulesDoc = `{
  "version": "1",
  "rules": [
    {
      "id": "drop-empty-drafts",
      "name": "Drop empty drafts",
      "contentTypes": ["blogPost"],
      "conditions": {"field": "title", "operator": "isEmpty"},
      "safetyChecks": {"checkLinks": true, "skipIfReferenced": true}
    }
  ]
}`

func memoryConfig() runtimeconfig.Config {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Graph.Kind = runtimeconfig.GraphKindMemory
	return cfg
}

func sampleReport(runID string) *cleanup.Report {
	stamp := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return cleanup.BuildReport(runID, "master", false, stamp, nil)
}

func TestNewContainerDefaults(t *testing.T) {
	container, err := di.NewContainer(memoryConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if container.GraphClient() == nil {
		t.Fatal("expected graph client")
	}
	if container.Runner() == nil {
		t.Fatal("expected retry runner")
	}
	if container.Rules() == nil {
		t.Fatal("expected rule set")
	}
	if container.LinkResolver() == nil {
		t.Fatal("expected link resolver")
	}
	if container.CleanupService() == nil {
		t.Fatal("expected cleanup service")
	}
	if container.PreviewService() == nil {
		t.Fatal("expected preview service")
	}

	if container.LoggerProvider() != nil {
		t.Fatal("logger provider should be nil when the feature is off")
	}
	if container.PublishService() != nil {
		t.Fatal("publish service should be nil when publishing is off")
	}
	if container.PromoteService() != nil {
		t.Fatal("promote service should be nil when promotion is off")
	}
	if container.ReportStore() != nil {
		t.Fatal("report store should be nil when reports are off")
	}
}

func TestNewContainerValidatesConfig(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Graph.Kind = runtimeconfig.GraphKindRemote

	if _, err := di.NewContainer(cfg); !errors.Is(err, runtimeconfig.ErrGraphSpaceRequired) {
		t.Fatalf("expected space validation error, got %v", err)
	}
}

func TestNewContainerInlineRules(t *testing.T) {
	cfg := memoryConfig()
	cfg.Rules.Inline = []byte(inlineRulesDoc)

	container, err := di.NewContainer(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	types, wildcard := container.Rules().ContentTypes("master")
	if wildcard {
		t.Fatal("unexpected wildcard rule")
	}
	if len(types) != 1 || types[0] != "blogPost" {
		t.Fatalf("expected blogPost target, got %v", types)
	}
}

func TestNewContainerInvalidInlineRules(t *testing.T) {
	cfg := memoryConfig()
	cfg.Rules.Inline = []byte(`{"version": "1", "rules": [{"name": ""}]}`)

	if _, err := di.NewContainer(cfg); err == nil {
		t.Fatal("expected rules document error")
	}
}

func TestNewContainerRulesFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(path, []byte(inlineRulesDoc), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	cfg := memoryConfig()
	cfg.Rules.Path = path

	container, err := di.NewContainer(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if types, _ := container.Rules().ContentTypes("master"); len(types) != 1 {
		t.Fatalf("expected rules loaded from file, got %v", types)
	}
}

func TestNewContainerMissingRulesFile(t *testing.T) {
	cfg := memoryConfig()
	cfg.Rules.Path = filepath.Join(t.TempDir(), "missing.json")

	if _, err := di.NewContainer(cfg); err == nil {
		t.Fatal("expected error for missing rules file")
	}
}

func TestNewContainerMemoryReportStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.Features.Reports = true
	cfg.Report.Enabled = true
	cfg.Report.Driver = runtimeconfig.ReportDriverMemory

	container, err := di.NewContainer(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store := container.ReportStore()
	if store == nil {
		t.Fatal("expected report store")
	}

	ctx := context.Background()
	if err := store.Save(ctx, sampleReport("run-di-memory")); err != nil {
		t.Fatalf("save report: %v", err)
	}
	record, err := store.GetByRunID(ctx, "run-di-memory")
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if record.Environment != "master" {
		t.Fatalf("unexpected environment %q", record.Environment)
	}
}

func TestNewContainerSQLiteReportStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.Features.Reports = true
	cfg.Report.Enabled = true
	cfg.Report.Driver = runtimeconfig.ReportDriverSQLite
	cfg.Report.DSN = "file::memory:?cache=shared"

	container, err := di.NewContainer(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer container.Close()

	if container.DB() == nil {
		t.Fatal("expected container-owned database")
	}

	ctx := context.Background()
	store := container.ReportStore()
	if err := store.Save(ctx, sampleReport("run-di-sqlite")); err != nil {
		t.Fatalf("save report: %v", err)
	}
	if _, err := store.GetByRunID(ctx, "run-di-sqlite"); err != nil {
		t.Fatalf("load report: %v", err)
	}

	if err := container.Close(); err != nil {
		t.Fatalf("close container: %v", err)
	}
	if container.DB() != nil {
		t.Fatal("expected owned database to be released on close")
	}
}

func TestNewContainerInjectedBunDB(t *testing.T) {
	sqlDB, err := testsupport.NewSQLiteMemoryDB()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	sqlDB.SetMaxOpenConns(1)

	db := bun.NewDB(sqlDB, sqlitedialect.New())
	ctx := context.Background()
	if _, err := db.NewCreateTable().Model((*report.Record)(nil)).IfNotExists().Exec(ctx); err != nil {
		t.Fatalf("create table: %v", err)
	}

	cfg := memoryConfig()
	cfg.Features.Reports = true
	cfg.Report.Enabled = true
	cfg.Report.Driver = runtimeconfig.ReportDriverSQLite
	cfg.Report.DSN = "file::memory:?cache=shared"

	container, err := di.NewContainer(cfg, di.WithBunDB(db))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store := container.ReportStore()
	if err := store.Save(ctx, sampleReport("run-di-injected")); err != nil {
		t.Fatalf("save report: %v", err)
	}

	// Close must leave injected databases alone.
	if err := container.Close(); err != nil {
		t.Fatalf("close container: %v", err)
	}
	if _, err := store.GetByRunID(ctx, "run-di-injected"); err != nil {
		t.Fatalf("injected database closed by container: %v", err)
	}
}

func TestNewContainerPromotionClients(t *testing.T) {
	cfg := memoryConfig()
	cfg.Features.Publishing = true
	cfg.Features.Promotion = true

	container, err := di.NewContainer(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if container.PublishService() == nil {
		t.Fatal("expected publish service")
	}
	if container.PromoteService() == nil {
		t.Fatal("expected promote service")
	}

	factory := container.ClientFactory()
	primary, err := factory("master")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary != container.GraphClient() {
		t.Fatal("configured environment should resolve to the primary client")
	}

	staging, err := factory("staging")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if staging == container.GraphClient() {
		t.Fatal("other environments should receive their own graph")
	}
	again, err := factory("staging")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != staging {
		t.Fatal("factory should reuse environment clients")
	}

	if _, err := factory(""); !errors.Is(err, di.ErrEnvironmentRequired) {
		t.Fatalf("expected environment error, got %v", err)
	}
}

func TestNewContainerGraphClientOverride(t *testing.T) {
	store := graph.NewMemory()
	container, err := di.NewContainer(memoryConfig(), di.WithGraphClient(store))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if container.GraphClient() != graph.Client(store) {
		t.Fatal("expected injected graph client")
	}
	if container.LinkResolver() == nil {
		t.Fatal("expected resolver built on the injected client")
	}
}

func TestPreviewServiceAlwaysDryRuns(t *testing.T) {
	container, err := di.NewContainer(memoryConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	live, err := container.CleanupService().Sweep(ctx, "master")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if live.DryRun {
		t.Fatal("cleanup service should honour the configured dry-run flag")
	}

	preview, err := container.PreviewService().Sweep(ctx, "master")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !preview.DryRun {
		t.Fatal("preview service must always dry run")
	}
}
