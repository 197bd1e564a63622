package report_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-sweep/internal/cleanup"
	"github.com/goliatone/go-sweep/internal/graph"
	"github.com/goliatone/go-sweep/internal/identity"
	"github.com/goliatone/go-sweep/internal/report"
)

var storeBase = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleReport(runID string, ranAt time.Time) *cleanup.Report {
	candidates := []*cleanup.Candidate{
		{
			Node:    &graph.Node{ID: "n1", Kind: graph.KindEntry, ContentType: "draft", Version: 1},
			RuleID:  "drop-empty-drafts",
			Reasons: []string{"No title provided"},
			Outcome: cleanup.OutcomeDeleted,
		},
		{
			Node:       &graph.Node{ID: "n2", Kind: graph.KindEntry, ContentType: "draft", Version: 1},
			RuleID:     "drop-empty-drafts",
			Reasons:    []string{"No title provided"},
			Outcome:    cleanup.OutcomeSkippedLinked,
			SkipReason: "Node is still referenced by other nodes",
		},
	}
	return cleanup.BuildReport(runID, "staging", false, ranAt, candidates)
}

func TestMemoryStoreSaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := report.NewMemoryStore(report.WithMemoryClock(func() time.Time { return storeBase }))

	if err := store.Save(ctx, sampleReport("run-1", storeBase)); err != nil {
		t.Fatalf("save: %v", err)
	}

	record, err := store.Get(ctx, identity.ReportUUID("run-1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.RunID != "run-1" || record.Environment != "staging" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.EnvironmentID != identity.EnvironmentUUID("staging") {
		t.Fatal("environment id must derive from the environment key")
	}
	if record.WillDelete != 1 || record.Deleted != 1 || record.SkippedLinks != 1 || record.CandidateCount != 2 {
		t.Fatalf("unexpected tallies: %+v", record)
	}
	if !record.RanAt.Equal(storeBase) || !record.CreatedAt.Equal(storeBase) {
		t.Fatalf("unexpected timestamps: ran=%v created=%v", record.RanAt, record.CreatedAt)
	}

	if len(record.Decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(record.Decisions))
	}
	first := record.Decisions[0]
	if first.NodeID != "n1" || first.Outcome != cleanup.OutcomeDeleted || first.Reasons[0] != "No title provided" {
		t.Fatalf("unexpected first decision: %+v", first)
	}
	second := record.Decisions[1]
	if second.SkipReason != "Node is still referenced by other nodes" {
		t.Fatalf("unexpected second decision: %+v", second)
	}

	stats := record.RuleBreakdown["drop-empty-drafts"]
	if stats == nil || stats.Matched != 2 || stats.Deleted != 1 || stats.Skipped != 1 {
		t.Fatalf("unexpected rule stats: %+v", stats)
	}

	// Returned records are snapshots.
	stats.Matched = 99
	again, err := store.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if again.RuleBreakdown["drop-empty-drafts"].Matched != 2 {
		t.Fatal("stored record must not share state with returned copies")
	}
}

func TestMemoryStoreRejectsDuplicateRun(t *testing.T) {
	ctx := context.Background()
	store := report.NewMemoryStore()

	if err := store.Save(ctx, sampleReport("run-1", storeBase)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, sampleReport("run-1", storeBase.Add(time.Hour))); !errors.Is(err, report.ErrDuplicateRun) {
		t.Fatalf("expected ErrDuplicateRun, got %v", err)
	}
}

func TestMemoryStoreGetByRunID(t *testing.T) {
	ctx := context.Background()
	store := report.NewMemoryStore()

	if err := store.Save(ctx, sampleReport("run-7", storeBase)); err != nil {
		t.Fatalf("save: %v", err)
	}
	record, err := store.GetByRunID(ctx, "run-7")
	if err != nil {
		t.Fatalf("get by run id: %v", err)
	}
	if record.ID != identity.ReportUUID("run-7") {
		t.Fatalf("unexpected id: %s", record.ID)
	}

	if _, err := store.GetByRunID(ctx, "missing"); err == nil {
		t.Fatal("expected not found")
	} else {
		var nf *report.NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	}
}

func TestMemoryStoreListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := report.NewMemoryStore()

	for _, run := range []struct {
		id    string
		ranAt time.Time
	}{
		{"run-mid", storeBase.Add(time.Hour)},
		{"run-old", storeBase},
		{"run-new", storeBase.Add(2 * time.Hour)},
	} {
		if err := store.Save(ctx, sampleReport(run.id, run.ranAt)); err != nil {
			t.Fatalf("save %s: %v", run.id, err)
		}
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	got := []string{records[0].RunID, records[1].RunID, records[2].RunID}
	want := []string{"run-new", "run-mid", "run-old"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestMemoryStorePruneKeepsNewest(t *testing.T) {
	ctx := context.Background()
	store := report.NewMemoryStore()

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		if err := store.Save(ctx, sampleReport(id, storeBase.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	removed, err := store.Prune(ctx, 1)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].RunID != "run-3" {
		t.Fatalf("newest record must survive, got %+v", records)
	}

	removed, err = store.Prune(ctx, 1)
	if err != nil || removed != 0 {
		t.Fatalf("second prune should be a no-op, got %d, %v", removed, err)
	}
}

func TestMemoryStoreClear(t *testing.T) {
	ctx := context.Background()
	store := report.NewMemoryStore()

	if err := store.Save(ctx, sampleReport("run-1", storeBase)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty store, got %d records", len(records))
	}
}

func TestMemoryStoreSaveValidation(t *testing.T) {
	ctx := context.Background()
	store := report.NewMemoryStore()

	if err := store.Save(ctx, nil); !errors.Is(err, report.ErrReportRequired) {
		t.Fatalf("expected ErrReportRequired, got %v", err)
	}

	failure := errors.New("disk full")
	store.Fail(failure)
	if err := store.Save(ctx, sampleReport("run-1", storeBase)); !errors.Is(err, failure) {
		t.Fatalf("expected injected failure, got %v", err)
	}
}
