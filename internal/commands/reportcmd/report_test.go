package reportcmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-sweep/internal/cleanup"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/internal/report"
)

var exportBase = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func runReport(runID string, ranAt time.Time) *cleanup.Report {
	return &cleanup.Report{
		RunID:       runID,
		Environment: "staging",
		Timestamp:   ranAt,
		Summary:     cleanup.Summary{WillDelete: 1, Deleted: 1},
	}
}

// seedReports stores n reports with ascending timestamps, so run-n is the
// newest record.
func seedReports(t *testing.T, store *report.MemoryStore, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		ranAt := exportBase.Add(time.Duration(i) * time.Hour)
		if err := store.Save(context.Background(), runReport(fmt.Sprintf("run-%d", i), ranAt)); err != nil {
			t.Fatalf("seed report %d: %v", i, err)
		}
	}
}

func TestExportReportsHandlerWritesJSON(t *testing.T) {
	store := report.NewMemoryStore()
	seedReports(t, store, 2)

	var buf bytes.Buffer
	handler := NewExportReportsHandler(store, logging.NoOp(), ExportWithWriter(&buf))

	if err := handler.Execute(context.Background(), ExportReportsCommand{}); err != nil {
		t.Fatalf("export execute: %v", err)
	}

	var records []*report.Record
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("exported payload is not JSON: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].RunID != "run-2" || records[1].RunID != "run-1" {
		t.Fatalf("records should be newest first: %q, %q", records[0].RunID, records[1].RunID)
	}
}

func TestExportReportsHandlerRespectsLimit(t *testing.T) {
	store := report.NewMemoryStore()
	seedReports(t, store, 3)

	var buf bytes.Buffer
	handler := NewExportReportsHandler(store, logging.NoOp(), ExportWithWriter(&buf))

	limit := 1
	if err := handler.Execute(context.Background(), ExportReportsCommand{MaxRecords: &limit}); err != nil {
		t.Fatalf("export execute: %v", err)
	}

	var records []*report.Record
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("exported payload is not JSON: %v", err)
	}
	if len(records) != 1 || records[0].RunID != "run-3" {
		t.Fatalf("expected only the newest record, got %+v", records)
	}
}

func TestExportReportsHandlerFiltersByRunID(t *testing.T) {
	store := report.NewMemoryStore()
	seedReports(t, store, 3)

	var buf bytes.Buffer
	handler := NewExportReportsHandler(store, logging.NoOp(), ExportWithWriter(&buf))

	if err := handler.Execute(context.Background(), ExportReportsCommand{RunID: "run-2"}); err != nil {
		t.Fatalf("export execute: %v", err)
	}

	var records []*report.Record
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("exported payload is not JSON: %v", err)
	}
	if len(records) != 1 || records[0].RunID != "run-2" {
		t.Fatalf("expected run-2 only, got %+v", records)
	}
}

func TestExportReportsHandlerUnknownRunFails(t *testing.T) {
	store := report.NewMemoryStore()
	handler := NewExportReportsHandler(store, logging.NoOp())

	err := handler.Execute(context.Background(), ExportReportsCommand{RunID: "ghost"})
	if err == nil {
		t.Fatal("expected not-found error")
	}
	var notFound *report.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError in chain, got %v", err)
	}
}

func TestExportReportsHandlerRejectsNegativeMax(t *testing.T) {
	store := report.NewMemoryStore()
	handler := NewExportReportsHandler(store, logging.NoOp())

	limit := -1
	err := handler.Execute(context.Background(), ExportReportsCommand{MaxRecords: &limit})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", err)
	}
}

func TestCleanupReportsHandlerPrunesToRetention(t *testing.T) {
	store := report.NewMemoryStore()
	seedReports(t, store, 5)

	handler := NewCleanupReportsHandler(store, logging.NoOp(), CleanupWithRetention(2))

	if err := handler.Execute(context.Background(), CleanupReportsCommand{}); err != nil {
		t.Fatalf("cleanup execute: %v", err)
	}

	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 surviving records, got %d", len(records))
	}
	if records[0].RunID != "run-5" || records[1].RunID != "run-4" {
		t.Fatalf("newest records should survive, got %q, %q", records[0].RunID, records[1].RunID)
	}
}

func TestCleanupReportsHandlerKeepOverride(t *testing.T) {
	store := report.NewMemoryStore()
	seedReports(t, store, 5)

	handler := NewCleanupReportsHandler(store, logging.NoOp(), CleanupWithRetention(1))

	keep := 4
	if err := handler.Execute(context.Background(), CleanupReportsCommand{Keep: &keep}); err != nil {
		t.Fatalf("cleanup execute: %v", err)
	}

	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("message keep should override retention, got %d records", len(records))
	}
}

func TestCleanupReportsHandlerDryRunKeepsRecords(t *testing.T) {
	store := report.NewMemoryStore()
	seedReports(t, store, 5)

	handler := NewCleanupReportsHandler(store, logging.NoOp(), CleanupWithRetention(1))

	if err := handler.Execute(context.Background(), CleanupReportsCommand{DryRun: true}); err != nil {
		t.Fatalf("cleanup dry run: %v", err)
	}

	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("dry run must not prune, got %d records", len(records))
	}
}

func TestCleanupReportsHandlerCronBinding(t *testing.T) {
	store := report.NewMemoryStore()
	seedReports(t, store, 3)

	handler := NewCleanupReportsHandler(store, logging.NoOp(), CleanupWithRetention(1))

	if expr := handler.CronOptions().Expression; expr != "@daily" {
		t.Fatalf("expected @daily default, got %q", expr)
	}

	if err := handler.CronHandler()(); err != nil {
		t.Fatalf("cron execute: %v", err)
	}
	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("cron run should prune to retention, got %d records", len(records))
	}

	custom := NewCleanupReportsHandler(store, logging.NoOp(), CleanupWithCronExpression("@hourly"))
	if expr := custom.CronOptions().Expression; expr != "@hourly" {
		t.Fatalf("expected @hourly override, got %q", expr)
	}
}

func TestCleanupReportsHandlerRejectsNegativeKeep(t *testing.T) {
	store := report.NewMemoryStore()
	handler := NewCleanupReportsHandler(store, logging.NoOp())

	keep := -1
	err := handler.Execute(context.Background(), CleanupReportsCommand{Keep: &keep})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", err)
	}
}
