package sweep_test

import (
	"context"
	"testing"

	sweep "github.com/goliatone/go-sweep"
	"github.com/goliatone/go-sweep/internal/cleanup"
	"github.com/goliatone/go-sweep/internal/commands/fixtures"
	"github.com/goliatone/go-sweep/internal/di"
	"github.com/goliatone/go-sweep/internal/graph"
	"github.com/goliatone/go-sweep/internal/promote"
	"github.com/goliatone/go-sweep/internal/publish"
	"github.com/goliatone/go-sweep/internal/report"
	"github.com/goliatone/go-sweep/pkg/testsupport"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const draftRulesDoc = `{
  "version": "1",
  "rules": [
    {
      "id": "drop-empty-drafts",
      "name": "Drop empty drafts",
      "contentTypes": ["draft"],
      "conditions": {"field": "title", "operator": "isEmpty"},
      "safetyChecks": {"checkLinks": true, "skipIfReferenced": true}
    }
  ]
}`

func emptyDraft(id string) *graph.Node {
	return &graph.Node{
		ID:          id,
		Kind:        graph.KindEntry,
		ContentType: "draft",
		Version:     1,
		Fields: graph.Fields{
			"title": {"en-US": graph.String("")},
		},
	}
}

func titledDraft(id, title string) *graph.Node {
	node := emptyDraft(id)
	node.Fields["title"] = graph.LocaleValues{"en-US": graph.String(title)}
	return node
}

func newReportDB(t *testing.T) *bun.DB {
	t.Helper()

	sqlDB, err := testsupport.NewSQLiteMemoryDB()
	if err != nil {
		t.Fatalf("new sqlite db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	sqlDB.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqlDB, sqlitedialect.New())
	if _, err := bunDB.NewCreateTable().Model((*report.Record)(nil)).IfNotExists().Exec(context.Background()); err != nil {
		t.Fatalf("create report table: %v", err)
	}
	return bunDB
}

func TestModuleSweepEndToEndWithBunReportStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := graph.NewMemory()
	store.Seed(
		emptyDraft("orphan-1"),
		emptyDraft("cited-1"),
		titledDraft("kept-1", "Welcome"),
		&graph.Node{
			ID:          "author-1",
			Kind:        graph.KindEntry,
			ContentType: "author",
			Version:     1,
			Fields: graph.Fields{
				"bio": {"en-US": graph.EntryLink("cited-1")},
			},
		},
	)

	bunDB := newReportDB(t)

	cfg := sweep.DefaultConfig()
	cfg.Rules.Inline = []byte(draftRulesDoc)
	cfg.Features.Reports = true
	cfg.Report.Enabled = true
	cfg.Report.Driver = sweep.ReportDriverSQLite
	cfg.Report.DSN = "file::memory:?cache=shared"

	module, err := sweep.New(cfg, di.WithGraphClient(store), di.WithBunDB(bunDB))
	if err != nil {
		t.Fatalf("new module: %v", err)
	}

	// A preview pass must classify without touching the graph.
	preview, err := module.Preview().Sweep(ctx, "master")
	if err != nil {
		t.Fatalf("preview sweep: %v", err)
	}
	if !preview.DryRun {
		t.Fatal("preview report should be marked dry run")
	}
	if preview.Summary.WillDelete != 1 || preview.Summary.Deleted != 0 {
		t.Fatalf("unexpected preview summary: %+v", preview.Summary)
	}
	if store.Node("orphan-1") == nil {
		t.Fatal("preview must not delete nodes")
	}

	runReport, err := module.Cleanup().Sweep(ctx, "master")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if runReport.DryRun {
		t.Fatal("live report should not be marked dry run")
	}
	if len(runReport.Candidates) != 2 {
		t.Fatalf("expected 2 matched candidates, got %d", len(runReport.Candidates))
	}
	if runReport.Summary.Deleted != 1 {
		t.Fatalf("expected 1 deletion, got %+v", runReport.Summary)
	}
	if runReport.Summary.WillSkipDueToLinks != 1 {
		t.Fatalf("expected 1 link skip, got %+v", runReport.Summary)
	}

	if store.Node("orphan-1") != nil {
		t.Fatal("unreferenced draft should be deleted")
	}
	if store.Node("cited-1") == nil {
		t.Fatal("referenced draft must survive the sweep")
	}
	if store.Node("kept-1") == nil {
		t.Fatal("non-matching draft must survive the sweep")
	}

	outcomes := map[string]cleanup.Outcome{}
	for _, candidate := range runReport.Candidates {
		outcomes[candidate.Node.ID] = candidate.Outcome
	}
	if outcomes["orphan-1"] != cleanup.OutcomeDeleted {
		t.Fatalf("unexpected orphan outcome: %v", outcomes["orphan-1"])
	}
	if outcomes["cited-1"] != cleanup.OutcomeSkippedLinked {
		t.Fatalf("unexpected cited outcome: %v", outcomes["cited-1"])
	}

	// Persist the run and read it back through the module's store.
	if err := module.Reports().Save(ctx, runReport); err != nil {
		t.Fatalf("save report: %v", err)
	}
	record, err := module.Reports().GetByRunID(ctx, runReport.RunID)
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if record.Deleted != 1 || record.SkippedLinks != 1 || record.CandidateCount != 2 {
		t.Fatalf("unexpected stored summary: %+v", record)
	}

	// Close must leave the injected database usable.
	if err := module.Close(); err != nil {
		t.Fatalf("close module: %v", err)
	}
	if _, err := module.Reports().List(ctx); err != nil {
		t.Fatalf("injected database closed by module: %v", err)
	}
}

func TestModulePublishAndPromoteAcrossEnvironments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := graph.NewMemory()
	store.Seed(titledDraft("post-1", "Launch notes"))

	cfg := sweep.DefaultConfig()
	cfg.Features.Publishing = true
	cfg.Features.Promotion = true

	module, err := sweep.New(cfg, di.WithGraphClient(store))
	if err != nil {
		t.Fatalf("new module: %v", err)
	}

	published, err := module.Publisher().PublishBatch(ctx, publish.BatchRequest{
		Environment: "master",
		IDs:         []string{"post-1"},
	})
	if err != nil {
		t.Fatalf("publish batch: %v", err)
	}
	if published.Counts.Published != 1 {
		t.Fatalf("unexpected publish counts: %+v", published.Counts)
	}
	if node := store.Node("post-1"); node == nil || !node.IsPublished() {
		t.Fatal("expected post-1 to be published in master")
	}

	promoted, err := module.Promoter().PromoteEntries(ctx, promote.Request{
		Source:  "master",
		Target:  "staging",
		IDs:     []string{"post-1"},
		Options: promote.Options{Publish: true},
	})
	if err != nil {
		t.Fatalf("promote entries: %v", err)
	}
	if promoted.Summary.Created != 1 {
		t.Fatalf("unexpected promote summary: %+v", promoted.Summary)
	}

	staging, err := module.Container().ClientFactory()("staging")
	if err != nil {
		t.Fatalf("staging client: %v", err)
	}
	copyNode, err := staging.FetchNode(ctx, "post-1")
	if err != nil {
		t.Fatalf("fetch staging copy: %v", err)
	}
	if !copyNode.IsPublished() {
		t.Fatal("promoted copy should be published")
	}

	unpublished, err := module.Publisher().UnpublishBatch(ctx, publish.BatchRequest{
		Environment: "master",
		IDs:         []string{"post-1"},
	})
	if err != nil {
		t.Fatalf("unpublish batch: %v", err)
	}
	if unpublished.Counts.Unpublished != 1 {
		t.Fatalf("unexpected unpublish counts: %+v", unpublished.Counts)
	}
	if node := store.Node("post-1"); node == nil || node.IsPublished() {
		t.Fatal("expected post-1 to be unpublished in master")
	}

	// The staging environment keeps its own copy.
	copyNode, err = staging.FetchNode(ctx, "post-1")
	if err != nil {
		t.Fatalf("fetch staging copy: %v", err)
	}
	if !copyNode.IsPublished() {
		t.Fatal("staging copy must be unaffected by the master unpublish")
	}
}

func TestModuleRegisterCommands(t *testing.T) {
	t.Parallel()

	cfg := sweep.DefaultConfig()
	cfg.Commands.Enabled = true
	cfg.Commands.AutoRegisterCron = true

	module, err := sweep.New(cfg)
	if err != nil {
		t.Fatalf("new module: %v", err)
	}

	registry := fixtures.NewRecordingRegistry()
	cron := fixtures.NewCronRecorder()

	result, err := module.RegisterCommands(sweep.RegistrationOptions{
		Registry:      registry,
		CronRegistrar: cron.Registrar(),
	})
	if err != nil {
		t.Fatalf("register commands: %v", err)
	}
	if len(result.Handlers) != 2 {
		t.Fatalf("expected sweep run and preview handlers, got %d", len(result.Handlers))
	}
	if len(registry.Handlers) != len(result.Handlers) {
		t.Fatalf("registry recorded %d handlers, want %d", len(registry.Handlers), len(result.Handlers))
	}
	if len(cron.Registrations) != 1 {
		t.Fatalf("expected the sweep run cron registration, got %d", len(cron.Registrations))
	}
}
