// Package cleanup orchestrates reference-safe deletion runs: policy
// matching, link checking, inbound-link removal, quota enforcement,
// and the unpublish/unarchive/delete sequence against the graph.
package cleanup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-sweep/internal/graph"
	"github.com/goliatone/go-sweep/internal/links"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/internal/policy"
	"github.com/goliatone/go-sweep/internal/retry"
	"github.com/goliatone/go-sweep/pkg/interfaces"
)

var (
	ErrClientRequired = errors.New("cleanup: graph client required")
	ErrRulesRequired  = errors.New("cleanup: rule set required")
)

const (
	// DefaultMaxDeletionsPerRun caps how many nodes one run may delete.
	DefaultMaxDeletionsPerRun = 100
	// DefaultBatchSize bounds how many link checks run concurrently.
	DefaultBatchSize = 10

	// QuotaSkipReason is stamped on candidates past the per-run cap.
	QuotaSkipReason = "Exceeded max deletions per run limit"

	skipReasonStillReferenced = "Node is still referenced by other nodes"
	skipReasonLinkCheckFailed = "Link check failed, deletion skipped for safety"
	skipReasonRunCanceled     = "Run canceled before node was processed"
)

const (
	opDiscoverNodes  = "discover_nodes"
	opFetchCandidate = "fetch_candidate"
	opUnpublishNode  = "unpublish_node"
	opUnarchiveNode  = "unarchive_node"
	opDeleteNode     = "delete_node"
	opVerifyDeletion = "verify_deletion"
)

// Service runs deletion policies against batches of graph nodes.
type Service interface {
	// EvaluateCandidates matches nodes against the rule set and
	// annotates matches with inbound-link state. Read-only.
	EvaluateCandidates(ctx context.Context, nodes []*graph.Node, environment string) ([]*Candidate, error)
	// ExecuteDeletions finalizes candidates: unlinking, quota
	// enforcement, and the delete sequence. Candidate failures are
	// recorded, not returned; the error is reserved for run-level
	// problems such as cancellation.
	ExecuteDeletions(ctx context.Context, environment string, candidates []*Candidate) (*Report, error)
	// Run chains EvaluateCandidates and ExecuteDeletions under one
	// run id.
	Run(ctx context.Context, nodes []*graph.Node, environment string) (*Report, error)
	// Sweep discovers every node the enabled rules could target in the
	// environment, then runs them through the deletion pipeline.
	Sweep(ctx context.Context, environment string) (*Report, error)
}

type service struct {
	client       graph.Client
	runner       *retry.Runner
	rules        *policy.RuleSet
	resolver     links.Resolver
	logger       interfaces.Logger
	clock        func() time.Time
	runID        func() string
	maxDeletions int
	batchSize    int
	pageSize     int
	dryRun       bool
}

// ServiceOption configures the cleanup service.
type ServiceOption func(*service)

// WithLogger sets the logger used for run, decision, and failure
// reporting.
func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the report timestamp source.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRunIDGenerator overrides run id generation.
func WithRunIDGenerator(generator func() string) ServiceOption {
	return func(s *service) {
		if generator != nil {
			s.runID = generator
		}
	}
}

// WithMaxDeletionsPerRun sets the per-run deletion quota.
func WithMaxDeletionsPerRun(limit int) ServiceOption {
	return func(s *service) {
		if limit > 0 {
			s.maxDeletions = limit
		}
	}
}

// WithBatchSize bounds concurrent link checks.
func WithBatchSize(size int) ServiceOption {
	return func(s *service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithPageSize sets the page size Sweep uses when walking the graph.
func WithPageSize(size int) ServiceOption {
	return func(s *service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithDryRun previews decisions without mutating the graph.
func WithDryRun(enabled bool) ServiceOption {
	return func(s *service) {
		s.dryRun = enabled
	}
}

// WithResolver replaces the link resolver built over the client.
func WithResolver(resolver links.Resolver) ServiceOption {
	return func(s *service) {
		if resolver != nil {
			s.resolver = resolver
		}
	}
}

// NewService builds the deletion orchestrator. The runner supplies
// retry discipline for every remote call; when nil a runner with
// default settings is used.
func NewService(client graph.Client, runner *retry.Runner, rules *policy.RuleSet, opts ...ServiceOption) Service {
	s := &service{
		client:       client,
		runner:       runner,
		rules:        rules,
		logger:       logging.NoOp(),
		clock:        time.Now,
		runID:        uuid.NewString,
		maxDeletions: DefaultMaxDeletionsPerRun,
		batchSize:    DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = retry.NewRunner(retry.Config{})
	}
	if s.resolver == nil && client != nil {
		s.resolver = links.NewResolver(client, s.runner, links.WithLogger(s.logger))
	}
	return s
}

func (s *service) Run(ctx context.Context, nodes []*graph.Node, environment string) (*Report, error) {
	runID := s.runID()
	logger := logging.WithRunContext(s.logger, environment, runID)
	logger.Info("cleanup run starting",
		"nodes", len(nodes),
		"dry_run", s.dryRun,
	)

	candidates, err := s.EvaluateCandidates(ctx, nodes, environment)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, environment, runID, candidates)
}

func (s *service) Sweep(ctx context.Context, environment string) (*Report, error) {
	nodes, err := s.discover(ctx, environment)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, nodes, environment)
}

// discover walks the graph for every content type the enabled rules name.
// A wildcard rule collapses the walk into a single unfiltered pass.
func (s *service) discover(ctx context.Context, environment string) ([]*graph.Node, error) {
	if s.client == nil {
		return nil, ErrClientRequired
	}
	if s.rules == nil {
		return nil, ErrRulesRequired
	}

	types, wildcard := s.rules.ContentTypes(environment)
	if wildcard {
		return s.fetchByType(ctx, "")
	}

	var nodes []*graph.Node
	seen := make(map[string]struct{})
	for _, contentType := range types {
		page, err := s.fetchByType(ctx, contentType)
		if err != nil {
			return nil, err
		}
		for _, node := range page {
			if node == nil {
				continue
			}
			if _, ok := seen[node.ID]; ok {
				continue
			}
			seen[node.ID] = struct{}{}
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

func (s *service) fetchByType(ctx context.Context, contentType string) ([]*graph.Node, error) {
	return retry.FetchAll(ctx, s.runner, opDiscoverNodes, s.pageSize,
		func(ctx context.Context, limit, skip int) ([]*graph.Node, int, error) {
			page, err := s.client.FetchPage(ctx, graph.Query{
				ContentType: contentType,
				Limit:       limit,
				Skip:        skip,
			})
			if err != nil {
				return nil, 0, err
			}
			return page.Items, page.Total, nil
		})
}

func (s *service) EvaluateCandidates(ctx context.Context, nodes []*graph.Node, environment string) ([]*Candidate, error) {
	if s.client == nil {
		return nil, ErrClientRequired
	}
	if s.rules == nil {
		return nil, ErrRulesRequired
	}

	candidates := make([]*Candidate, 0, len(nodes))
	for _, node := range nodes {
		if node == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		match := s.rules.Match(node, environment)
		if match == nil {
			continue
		}
		candidates = append(candidates, &Candidate{
			Node:    node,
			Rule:    match.Rule,
			RuleID:  match.Rule.ID,
			Reasons: match.Reasons,
			Outcome: OutcomePending,
		})
	}

	s.checkLinks(ctx, candidates)
	return candidates, nil
}

func (s *service) ExecuteDeletions(ctx context.Context, environment string, candidates []*Candidate) (*Report, error) {
	if s.client == nil {
		return nil, ErrClientRequired
	}
	return s.execute(ctx, environment, s.runID(), candidates)
}

func (s *service) execute(ctx context.Context, environment, runID string, candidates []*Candidate) (*Report, error) {
	logger := logging.WithRunContext(s.logger, environment, runID)

	var runErr error
	deleted := 0
	for _, candidate := range candidates {
		if candidate == nil || candidate.Node == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			if candidate.Outcome == OutcomePending {
				candidate.markSkipped(OutcomeSkippedSafety, skipReasonRunCanceled)
			}
			continue
		}
		s.processCandidate(ctx, candidate, &deleted, logger)
	}

	report := BuildReport(runID, environment, s.dryRun, s.clock().UTC(), candidates)
	logger.Info("cleanup run finished",
		"will_delete", report.Summary.WillDelete,
		"deleted", report.Summary.Deleted,
		"skipped_links", report.Summary.WillSkipDueToLinks,
		"skipped_safety", report.Summary.WillSkipDueToSafety,
		"failed", report.Summary.Failed,
	)
	return report, runErr
}

// processCandidate walks one candidate through the decision machine.
// Steps for a single node are strictly ordered: quota gate, link
// handling, then the delete sequence.
func (s *service) processCandidate(ctx context.Context, candidate *Candidate, deleted *int, logger interfaces.Logger) {
	nodeLogger := logging.WithNodeContext(logger, candidate.NodeID(), candidate.ContentType())

	if *deleted >= s.maxDeletions {
		candidate.markSkipped(OutcomeSkippedQuota, QuotaSkipReason)
		nodeLogger.Info("deletion quota reached, skipping node", "rule_id", candidate.RuleID)
		return
	}

	var safety policy.SafetyChecks
	if candidate.Rule != nil {
		safety = candidate.Rule.Safety
	}

	if safety.CheckLinks {
		if candidate.LinkCheckFailed && safety.SkipIfReferenced {
			candidate.markSkipped(OutcomeSkippedSafety, skipReasonLinkCheckFailed)
			nodeLogger.Warn("link state unknown, skipping deletion", "rule_id", candidate.RuleID)
			return
		}
		if candidate.IsLinked && safety.SkipIfReferenced && !candidate.LinkCheckFailed {
			if s.dryRun {
				candidate.markSkipped(OutcomeSkippedLinked, skipReasonStillReferenced)
				nodeLogger.Info("node is referenced, dry run skips it",
					"rule_id", candidate.RuleID,
					"referenced_by", len(candidate.LinkedBy),
				)
				return
			}
			if !s.unlinkAndRecheck(ctx, candidate, nodeLogger) {
				if candidate.LinkCheckFailed {
					candidate.markSkipped(OutcomeSkippedSafety, skipReasonLinkCheckFailed)
				} else {
					candidate.markSkipped(OutcomeSkippedLinked, skipReasonStillReferenced)
					nodeLogger.Info("node still referenced after unlink, skipping",
						"rule_id", candidate.RuleID,
						"referenced_by", len(candidate.LinkedBy),
					)
				}
				return
			}
		}
		// A linked node whose rule sets skipIfReferenced=false is
		// deleted anyway: the rule accepts dangling references.
	}

	*deleted++
	if s.dryRun {
		candidate.markPlanned()
		nodeLogger.Info("dry run would delete node", "rule_id", candidate.RuleID, "reasons", candidate.Reasons)
		return
	}

	if err := s.deleteSequence(ctx, candidate.Node); err != nil {
		candidate.markFailed(err)
		nodeLogger.Error("delete sequence failed",
			"rule_id", candidate.RuleID,
			"error", err,
		)
		return
	}
	candidate.markDeleted()
	nodeLogger.Info("node deleted", "rule_id", candidate.RuleID, "reasons", candidate.Reasons)
}

// checkLinks annotates candidates whose rule requires a link check.
// Checks are independent, so they run on a bounded worker pool; each
// worker writes only to its own candidate.
func (s *service) checkLinks(ctx context.Context, candidates []*Candidate) {
	pending := make([]*Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Rule != nil && candidate.Rule.Safety.CheckLinks {
			pending = append(pending, candidate)
		}
	}
	if len(pending) == 0 {
		return
	}

	workers := s.batchSize
	if workers > len(pending) {
		workers = len(pending)
	}
	if workers <= 1 {
		for _, candidate := range pending {
			s.checkOne(ctx, candidate)
		}
		return
	}

	jobs := make(chan *Candidate)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for candidate := range jobs {
				s.checkOne(ctx, candidate)
			}
		}()
	}
	// Every candidate is dispatched even under cancellation: checkOne
	// fails fast on a dead context and marks the candidate so the
	// execute phase takes the conservative branch.
	for _, candidate := range pending {
		jobs <- candidate
	}
	close(jobs)
	wg.Wait()
}

func (s *service) checkOne(ctx context.Context, candidate *Candidate) {
	refs, err := s.resolver.FindInbound(ctx, candidate.Node)
	if err != nil {
		candidate.IsLinked = true
		candidate.LinkCheckFailed = true
		s.logger.Warn("link check failed, treating node as referenced",
			"node_id", candidate.NodeID(),
			"rule_id", candidate.RuleID,
			"error", err,
		)
		return
	}
	candidate.IsLinked = len(refs) > 0
	candidate.LinkedBy = refs
}

// unlinkAndRecheck strips inbound links and re-queries the backend.
// Returns true only when the re-check comes back clear; LinkCheckFailed
// is raised when either pass errors so the caller can skip
// conservatively.
func (s *service) unlinkAndRecheck(ctx context.Context, candidate *Candidate, logger interfaces.Logger) bool {
	result, err := s.resolver.RemoveInbound(ctx, candidate.Node)
	if err != nil {
		candidate.LinkCheckFailed = true
		logger.Warn("inbound link removal failed", "error", err)
		return false
	}
	candidate.Removals = append(candidate.Removals, result.Removals...)
	if !result.Success {
		logger.Warn("some referencing nodes could not be rewritten",
			"updated", result.UpdatedCount,
			"errors", len(result.Errors),
		)
	}

	refs, err := s.resolver.FindInbound(ctx, candidate.Node)
	if err != nil {
		candidate.LinkCheckFailed = true
		logger.Warn("post-unlink re-check failed", "error", err)
		return false
	}
	candidate.IsLinked = len(refs) > 0
	candidate.LinkedBy = refs
	return !candidate.IsLinked
}

// deleteSequence clears one node out of the graph: unpublish when
// published, unarchive when archived, then delete, each step retried
// independently. NotFound anywhere means another writer got there
// first and counts as success.
func (s *service) deleteSequence(ctx context.Context, target *graph.Node) error {
	node, err := s.fetchNode(ctx, target.ID)
	if err != nil {
		if graph.IsNotFound(err) {
			return nil
		}
		return err
	}

	if node.IsPublished() {
		node, err = s.lifecycleStep(ctx, node, opUnpublishNode, s.client.Unpublish)
		if err != nil {
			return err
		}
		if node == nil {
			return nil
		}
	}

	if node.IsArchived() {
		node, err = s.lifecycleStep(ctx, node, opUnarchiveNode, s.client.Unarchive)
		if err != nil {
			return err
		}
		if node == nil {
			return nil
		}
	}

	_, err = s.applyStep(ctx, node, opDeleteNode, func(ctx context.Context, n *graph.Node) (*graph.Node, error) {
		return nil, s.client.DeleteNode(ctx, n)
	})
	if err != nil && !graph.IsNotFound(err) {
		return err
	}

	s.verifyDeleted(ctx, target.ID)
	return nil
}

type stepFunc func(context.Context, *graph.Node) (*graph.Node, error)

// lifecycleStep applies one state transition and absorbs the NotFound
// ambiguity: a nil node with nil error means the target vanished and
// the sequence is already complete.
func (s *service) lifecycleStep(ctx context.Context, node *graph.Node, op string, step stepFunc) (*graph.Node, error) {
	updated, err := s.applyStep(ctx, node, op, step)
	if err == nil {
		return updated, nil
	}
	if graph.IsNotFound(err) {
		return s.refreshAfterNotFound(ctx, node.ID)
	}
	return nil, err
}

// applyStep runs one mutating step through the retry runner. A version
// conflict means the node moved under us, so the step is reapplied once
// against a freshly fetched copy.
func (s *service) applyStep(ctx context.Context, node *graph.Node, op string, step stepFunc) (*graph.Node, error) {
	current := node
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			fresh, err := s.fetchNode(ctx, current.ID)
			if err != nil {
				return nil, err
			}
			current = fresh
		}

		var out *graph.Node
		err := s.runner.Do(ctx, op, func(ctx context.Context) error {
			result, err := step(ctx, current)
			if err != nil {
				return err
			}
			out = result
			return nil
		})
		if err == nil {
			return out, nil
		}
		if !graph.IsVersionConflict(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// refreshAfterNotFound disambiguates a NotFound from a lifecycle step:
// either the node vanished entirely (nil, nil) or another writer
// already advanced its state and processing continues on the fresh
// copy.
func (s *service) refreshAfterNotFound(ctx context.Context, id string) (*graph.Node, error) {
	node, err := s.fetchNode(ctx, id)
	if err != nil {
		if graph.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return node, nil
}

func (s *service) fetchNode(ctx context.Context, id string) (*graph.Node, error) {
	var node *graph.Node
	err := s.runner.Do(ctx, opFetchCandidate, func(ctx context.Context) error {
		fetched, err := s.client.FetchNode(ctx, id)
		if err != nil {
			return err
		}
		node = fetched
		return nil
	})
	return node, err
}

// verifyDeleted confirms the node is gone. The backend is eventually
// consistent, so a node still visible here is logged, not failed.
func (s *service) verifyDeleted(ctx context.Context, id string) {
	err := s.runner.Do(ctx, opVerifyDeletion, func(ctx context.Context) error {
		_, err := s.client.FetchNode(ctx, id)
		return err
	})
	if err == nil {
		s.logger.Warn("node still visible after delete, backend may be propagating",
			"node_id", id,
		)
		return
	}
	if !graph.IsNotFound(err) {
		s.logger.Debug("post-delete verification inconclusive",
			"node_id", id,
			"error", err,
		)
	}
}
