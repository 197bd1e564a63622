package cleanup

import (
	"sort"
	"time"
)

// Summary is the run-level decision tally. WillDelete counts intent,
// so failed delete attempts are included there and broken out under
// Failed.
type Summary struct {
	WillDelete          int `json:"willDelete"`
	WillSkipDueToLinks  int `json:"willSkipDueToLinks"`
	WillSkipDueToSafety int `json:"willSkipDueToSafety"`
	Deleted             int `json:"deleted"`
	Failed              int `json:"failed"`
}

// RuleStats tallies candidates per matched rule.
type RuleStats struct {
	RuleID   string `json:"ruleId"`
	RuleName string `json:"ruleName"`
	Matched  int    `json:"matched"`
	Deleted  int    `json:"deleted"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

// TypeStats tallies candidates per content type.
type TypeStats struct {
	ContentType string `json:"contentType"`
	Matched     int    `json:"matched"`
	Deleted     int    `json:"deleted"`
	Skipped     int    `json:"skipped"`
	Failed      int    `json:"failed"`
}

// Report is the only durable artifact of a run: written once, never
// read back by the engine.
type Report struct {
	RunID       string    `json:"runId"`
	Environment string    `json:"environment"`
	Timestamp   time.Time `json:"timestamp"`
	DryRun      bool      `json:"dryRun"`

	Summary              Summary               `json:"summary"`
	RuleBreakdown        map[string]*RuleStats `json:"ruleBreakdown"`
	ContentTypeBreakdown map[string]*TypeStats `json:"contentTypeBreakdown"`

	Candidates []*Candidate `json:"candidates"`
}

// BuildReport aggregates finalized candidates into per-rule and
// per-content-type breakdowns plus the summary tally. Deterministic
// for a given candidate list; performs no I/O.
func BuildReport(runID, environment string, dryRun bool, timestamp time.Time, candidates []*Candidate) *Report {
	report := &Report{
		RunID:                runID,
		Environment:          environment,
		Timestamp:            timestamp,
		DryRun:               dryRun,
		RuleBreakdown:        map[string]*RuleStats{},
		ContentTypeBreakdown: map[string]*TypeStats{},
		Candidates:           candidates,
	}

	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}

		rule := report.ruleStats(candidate)
		ctype := report.typeStats(candidate)
		rule.Matched++
		ctype.Matched++

		switch candidate.Outcome {
		case OutcomeDeleted, OutcomePlanned:
			report.Summary.WillDelete++
			if candidate.Outcome == OutcomeDeleted {
				report.Summary.Deleted++
			}
			rule.Deleted++
			ctype.Deleted++
		case OutcomeSkippedLinked:
			report.Summary.WillSkipDueToLinks++
			rule.Skipped++
			ctype.Skipped++
		case OutcomeSkippedSafety, OutcomeSkippedQuota:
			report.Summary.WillSkipDueToSafety++
			rule.Skipped++
			ctype.Skipped++
		case OutcomeFailed:
			report.Summary.WillDelete++
			report.Summary.Failed++
			rule.Failed++
			ctype.Failed++
		default:
			rule.Skipped++
			ctype.Skipped++
		}
	}
	return report
}

func (r *Report) ruleStats(candidate *Candidate) *RuleStats {
	id := candidate.RuleID
	stats, ok := r.RuleBreakdown[id]
	if !ok {
		stats = &RuleStats{RuleID: id, RuleName: candidate.RuleName()}
		r.RuleBreakdown[id] = stats
	}
	return stats
}

func (r *Report) typeStats(candidate *Candidate) *TypeStats {
	name := candidate.ContentType()
	stats, ok := r.ContentTypeBreakdown[name]
	if !ok {
		stats = &TypeStats{ContentType: name}
		r.ContentTypeBreakdown[name] = stats
	}
	return stats
}

// RuleIDs returns the breakdown keys in stable order for rendering.
func (r *Report) RuleIDs() []string {
	ids := make([]string, 0, len(r.RuleBreakdown))
	for id := range r.RuleBreakdown {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ContentTypes returns the breakdown keys in stable order for
// rendering.
func (r *Report) ContentTypes() []string {
	names := make([]string, 0, len(r.ContentTypeBreakdown))
	for name := range r.ContentTypeBreakdown {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
