// Package report persists the durable artifact of a cleanup run. A
// run writes exactly one record; retention is enforced by pruning the
// oldest records past a configured keep count.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-sweep/internal/cleanup"
	"github.com/goliatone/go-sweep/internal/identity"
)

var (
	ErrReportRequired = errors.New("report: report required")
	ErrDuplicateRun   = errors.New("report: run already recorded")
)

// NotFoundError is returned when a record cannot be located.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return "report record not found"
	}
	return fmt.Sprintf("report record %q not found", e.Key)
}

// Store persists run records.
type Store interface {
	// Save converts and stores the run report. A run id is stored at
	// most once; replays return ErrDuplicateRun.
	Save(ctx context.Context, report *cleanup.Report) error
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	GetByRunID(ctx context.Context, runID string) (*Record, error)
	// List returns records newest first.
	List(ctx context.Context) ([]*Record, error)
	// Prune removes all but the newest keep records and reports how
	// many were removed.
	Prune(ctx context.Context, keep int) (int, error)
	Clear(ctx context.Context) error
}

// Record is the persisted form of a run report: summary columns for
// querying, breakdowns and per-node decisions as JSON documents.
type Record struct {
	bun.BaseModel `bun:"table:sweep_reports,alias:sr"`

	ID            uuid.UUID `bun:",pk,type:uuid" json:"id"`
	RunID         string    `bun:"run_id,notnull" json:"run_id"`
	Environment   string    `bun:"environment,notnull" json:"environment"`
	EnvironmentID uuid.UUID `bun:"environment_id,type:uuid" json:"environment_id"`
	DryRun        bool      `bun:"dry_run,notnull,default:false" json:"dry_run"`
	RanAt         time.Time `bun:"ran_at,nullzero" json:"ran_at"`

	WillDelete     int `bun:"will_delete,notnull,default:0" json:"will_delete"`
	SkippedLinks   int `bun:"skipped_links,notnull,default:0" json:"skipped_links"`
	SkippedSafety  int `bun:"skipped_safety,notnull,default:0" json:"skipped_safety"`
	Deleted        int `bun:"deleted,notnull,default:0" json:"deleted"`
	Failed         int `bun:"failed,notnull,default:0" json:"failed"`
	CandidateCount int `bun:"candidate_count,notnull,default:0" json:"candidate_count"`

	RuleBreakdown map[string]*cleanup.RuleStats `bun:"rule_breakdown,type:jsonb" json:"rule_breakdown,omitempty"`
	TypeBreakdown map[string]*cleanup.TypeStats `bun:"type_breakdown,type:jsonb" json:"type_breakdown,omitempty"`
	Decisions     []Decision                    `bun:"decisions,type:jsonb" json:"decisions,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// Decision is the stored per-node outcome, slim enough to keep whole
// runs queryable without dragging full node payloads into the store.
type Decision struct {
	NodeID       string          `json:"nodeId"`
	ContentType  string          `json:"contentType"`
	RuleID       string          `json:"ruleId"`
	Outcome      cleanup.Outcome `json:"outcome"`
	SkipReason   string          `json:"skipReason,omitempty"`
	Reasons      []string        `json:"reasons,omitempty"`
	RemovedLinks int             `json:"removedLinks,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// NewRecord converts a run report into its persisted form. The record
// id derives deterministically from the run id, which is what makes
// Save replays detectable.
func NewRecord(runReport *cleanup.Report) *Record {
	record := &Record{
		ID:             identity.ReportUUID(runReport.RunID),
		RunID:          runReport.RunID,
		Environment:    runReport.Environment,
		EnvironmentID:  identity.EnvironmentUUID(runReport.Environment),
		DryRun:         runReport.DryRun,
		RanAt:          runReport.Timestamp,
		WillDelete:     runReport.Summary.WillDelete,
		SkippedLinks:   runReport.Summary.WillSkipDueToLinks,
		SkippedSafety:  runReport.Summary.WillSkipDueToSafety,
		Deleted:        runReport.Summary.Deleted,
		Failed:         runReport.Summary.Failed,
		CandidateCount: len(runReport.Candidates),
		RuleBreakdown:  cloneRuleBreakdown(runReport.RuleBreakdown),
		TypeBreakdown:  cloneTypeBreakdown(runReport.ContentTypeBreakdown),
		Decisions:      buildDecisions(runReport.Candidates),
	}
	return record
}

func buildDecisions(candidates []*cleanup.Candidate) []Decision {
	if len(candidates) == 0 {
		return nil
	}
	decisions := make([]Decision, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		decision := Decision{
			NodeID:       candidate.NodeID(),
			ContentType:  candidate.ContentType(),
			RuleID:       candidate.RuleID,
			Outcome:      candidate.Outcome,
			SkipReason:   candidate.SkipReason,
			Reasons:      append([]string(nil), candidate.Reasons...),
			RemovedLinks: len(candidate.Removals),
		}
		if candidate.Err != nil {
			decision.Error = candidate.Err.Error()
		}
		decisions = append(decisions, decision)
	}
	return decisions
}

func cloneRuleBreakdown(in map[string]*cleanup.RuleStats) map[string]*cleanup.RuleStats {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]*cleanup.RuleStats, len(in))
	for key, stats := range in {
		if stats == nil {
			continue
		}
		copied := *stats
		out[key] = &copied
	}
	return out
}

func cloneTypeBreakdown(in map[string]*cleanup.TypeStats) map[string]*cleanup.TypeStats {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]*cleanup.TypeStats, len(in))
	for key, stats := range in {
		if stats == nil {
			continue
		}
		copied := *stats
		out[key] = &copied
	}
	return out
}

func cloneRecord(record *Record) *Record {
	if record == nil {
		return nil
	}
	copied := *record
	copied.RuleBreakdown = cloneRuleBreakdown(record.RuleBreakdown)
	copied.TypeBreakdown = cloneTypeBreakdown(record.TypeBreakdown)
	copied.Decisions = append([]Decision(nil), record.Decisions...)
	return &copied
}
