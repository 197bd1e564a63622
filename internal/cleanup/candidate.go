package cleanup

import (
	"github.com/goliatone/go-sweep/internal/graph"
	"github.com/goliatone/go-sweep/internal/links"
	"github.com/goliatone/go-sweep/internal/policy"
)

// Outcome is the terminal classification of one candidate after a run.
type Outcome string

const (
	// OutcomePending marks a candidate that matched a rule but has not
	// been through the deletion pass yet.
	OutcomePending Outcome = "pending"
	// OutcomePlanned marks a candidate a dry run would have deleted.
	OutcomePlanned Outcome = "planned"
	// OutcomeDeleted marks a completed delete sequence.
	OutcomeDeleted Outcome = "deleted"
	// OutcomeSkippedLinked marks a candidate left in place because
	// other nodes still reference it.
	OutcomeSkippedLinked Outcome = "skipped_linked"
	// OutcomeSkippedSafety marks a conservative skip taken when the
	// link check itself failed.
	OutcomeSkippedSafety Outcome = "skipped_safety"
	// OutcomeSkippedQuota marks a candidate past the per-run deletion
	// cap.
	OutcomeSkippedQuota Outcome = "skipped_quota"
	// OutcomeFailed marks a delete sequence that errored after retries.
	OutcomeFailed Outcome = "failed"
)

// Candidate is the per-node decision trail for one run. Built during
// evaluation, finalized during execution, and discarded after the
// report is emitted.
type Candidate struct {
	Node    *graph.Node          `json:"node"`
	Rule    *policy.DeletionRule `json:"-"`
	RuleID  string               `json:"ruleId"`
	Reasons []string             `json:"reasons"`

	IsLinked        bool        `json:"isLinked"`
	LinkedBy        []links.Ref `json:"linkedBy,omitempty"`
	LinkCheckFailed bool        `json:"linkCheckFailed,omitempty"`

	WillDelete bool    `json:"willDelete"`
	SkipReason string  `json:"skipReason,omitempty"`
	Outcome    Outcome `json:"outcome"`

	// Removals records the link rewrites performed on behalf of this
	// candidate so the audit trail can be replayed.
	Removals []links.Removal `json:"removals,omitempty"`
	Err      error           `json:"-"`
}

// RuleName reports the matched rule's display name.
func (c *Candidate) RuleName() string {
	if c.Rule == nil {
		return ""
	}
	return c.Rule.Name
}

// ContentType reports the candidate node's content type.
func (c *Candidate) ContentType() string {
	if c.Node == nil {
		return ""
	}
	return c.Node.ContentType
}

// NodeID reports the candidate node's identifier.
func (c *Candidate) NodeID() string {
	if c.Node == nil {
		return ""
	}
	return c.Node.ID
}

func (c *Candidate) markDeleted() {
	c.WillDelete = true
	c.Outcome = OutcomeDeleted
	c.SkipReason = ""
}

func (c *Candidate) markPlanned() {
	c.WillDelete = true
	c.Outcome = OutcomePlanned
	c.SkipReason = ""
}

func (c *Candidate) markSkipped(outcome Outcome, reason string) {
	c.WillDelete = false
	c.Outcome = outcome
	c.SkipReason = reason
}

func (c *Candidate) markFailed(err error) {
	c.WillDelete = true
	c.Outcome = OutcomeFailed
	c.Err = err
}
