// Package publish drives bulk publish and unpublish transitions over the
// content graph. Each node is re-fetched before its transition so the
// decision runs against current state, and version conflicts trigger one
// reapply against a fresh copy.
package publish

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-sweep/internal/graph"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/internal/retry"
	"github.com/goliatone/go-sweep/pkg/interfaces"
)

var (
	ErrClientRequired     = errors.New("publish: graph client required")
	ErrSelectionRequired  = errors.New("publish: node ids or content type required")
	ErrPublishingDisabled = errors.New("publish: publishing feature disabled")
)

const (
	opFetchNode     = "fetch_node"
	opDiscoverNodes = "discover_nodes"
	opPublishNode   = "publish_node"
	opUnpublishNode = "unpublish_node"
)

const (
	msgAlreadyPublished = "Node is already published with no pending changes"
	msgNotPublished     = "Node is not published"
	msgArchived         = "Archived nodes cannot be published"
	msgNodeMissing      = "Node does not exist"
	msgRunCanceled      = "Run canceled before node was processed"
	msgStateChanged     = "Node state changed during operation"
)

// Service runs publish and unpublish batches.
type Service interface {
	// PublishBatch publishes every selected node that is not already
	// live at its latest version. Per-node failures are recorded on the
	// result; the returned error is reserved for selection problems and
	// run-level failures such as cancellation.
	PublishBatch(ctx context.Context, req BatchRequest) (*BatchResult, error)
	// UnpublishBatch takes every selected published node off the
	// delivery surface. Error semantics match PublishBatch.
	UnpublishBatch(ctx context.Context, req BatchRequest) (*BatchResult, error)
}

type service struct {
	client   graph.Client
	runner   *retry.Runner
	logger   interfaces.Logger
	pageSize int
}

// ServiceOption configures the publish service.
type ServiceOption func(*service)

// WithLogger sets the logger used for batch and item reporting.
func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPageSize overrides the page size used for content-type discovery.
func WithPageSize(size int) ServiceOption {
	return func(s *service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// NewService builds the batch publisher. The runner supplies retry
// discipline for every remote call; when nil a runner with default
// settings is used.
func NewService(client graph.Client, runner *retry.Runner, opts ...ServiceOption) Service {
	s := &service{
		client:   client,
		runner:   runner,
		logger:   logging.NoOp(),
		pageSize: retry.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = retry.NewRunner(retry.Config{})
	}
	return s
}

func (s *service) PublishBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	return s.run(ctx, req, ActionPublish)
}

func (s *service) UnpublishBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	return s.run(ctx, req, ActionUnpublish)
}

func (s *service) run(ctx context.Context, req BatchRequest, action string) (*BatchResult, error) {
	if s.client == nil {
		return nil, ErrClientRequired
	}

	ids := normalizeIDs(req.IDs)
	if len(ids) == 0 {
		contentType := strings.TrimSpace(req.ContentType)
		if contentType == "" {
			return nil, ErrSelectionRequired
		}
		discovered, err := s.discover(ctx, contentType)
		if err != nil {
			return nil, err
		}
		ids = discovered
	}

	logger := logging.WithFields(s.logger, map[string]any{
		"action":      action,
		"environment": req.Environment,
	})
	logger.Info("batch starting", "nodes", len(ids), "dry_run", req.DryRun)

	result := &BatchResult{
		Environment: req.Environment,
		Action:      action,
		DryRun:      req.DryRun,
	}

	var runErr error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			runErr = err
			result.add(ItemResult{ID: id, Status: StatusSkipped, Message: msgRunCanceled})
			continue
		}
		result.add(s.processOne(ctx, action, id, req.DryRun, logger))
	}

	logger.Info("batch finished",
		"published", result.Counts.Published,
		"unpublished", result.Counts.Unpublished,
		"skipped", result.Counts.Skipped,
		"failed", result.Counts.Failed,
	)
	return result, runErr
}

// processOne re-fetches one node and walks it through the requested
// transition. Failures are folded into the item, never returned: one bad
// node must not abort the rest of the batch.
func (s *service) processOne(ctx context.Context, action, id string, dryRun bool, logger interfaces.Logger) ItemResult {
	node, err := s.fetchNode(ctx, id)
	if err != nil {
		if graph.IsNotFound(err) {
			return ItemResult{ID: id, Status: StatusSkipped, Message: msgNodeMissing}
		}
		logger.Error("node fetch failed", "node_id", id, "error", err)
		return ItemResult{ID: id, Status: StatusFailed, Message: err.Error()}
	}

	var item ItemResult
	if action == ActionUnpublish {
		item = s.unpublishOne(ctx, node, dryRun)
	} else {
		item = s.publishOne(ctx, node, dryRun)
	}

	switch item.Status {
	case StatusFailed:
		logger.Error("node transition failed", "node_id", item.ID, "error", item.Message)
	case StatusSkipped:
		logger.Debug("node skipped", "node_id", item.ID, "reason", item.Message)
	default:
		logger.Info("node transitioned", "node_id", item.ID, "status", item.Status)
	}
	return item
}

func (s *service) publishOne(ctx context.Context, node *graph.Node, dryRun bool) ItemResult {
	item := ItemResult{ID: node.ID, ContentType: node.ContentType}

	if node.IsArchived() {
		item.Status = StatusSkipped
		item.Message = msgArchived
		return item
	}
	if node.IsPublished() && !node.HasPendingChanges() {
		item.Status = StatusSkipped
		item.Message = msgAlreadyPublished
		return item
	}
	if dryRun {
		item.Status = StatusPublished
		return item
	}

	if _, err := s.apply(ctx, node, opPublishNode, s.client.Publish); err != nil {
		if graph.IsNotFound(err) {
			return s.resolveNotFound(ctx, item, true)
		}
		item.Status = StatusFailed
		item.Message = err.Error()
		return item
	}
	item.Status = StatusPublished
	return item
}

func (s *service) unpublishOne(ctx context.Context, node *graph.Node, dryRun bool) ItemResult {
	item := ItemResult{ID: node.ID, ContentType: node.ContentType}

	if !node.IsPublished() {
		item.Status = StatusSkipped
		item.Message = msgNotPublished
		return item
	}
	if dryRun {
		item.Status = StatusUnpublished
		return item
	}

	if _, err := s.apply(ctx, node, opUnpublishNode, s.client.Unpublish); err != nil {
		if graph.IsNotFound(err) {
			return s.resolveNotFound(ctx, item, false)
		}
		item.Status = StatusFailed
		item.Message = err.Error()
		return item
	}
	item.Status = StatusUnpublished
	return item
}

// apply runs one lifecycle call through the retry runner. A version
// conflict means another writer advanced the node, so the call is
// reapplied once against a freshly fetched copy.
func (s *service) apply(ctx context.Context, node *graph.Node, op string, step func(context.Context, *graph.Node) (*graph.Node, error)) (*graph.Node, error) {
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

// resolveNotFound disambiguates a NotFound that came back from a
// transition call: either the node vanished, or another writer already
// moved it to the requested state.
func (s *service) resolveNotFound(ctx context.Context, item ItemResult, wantPublished bool) ItemResult {
	node, err := s.fetchNode(ctx, item.ID)
	if err != nil {
		if graph.IsNotFound(err) {
			item.Status = StatusSkipped
			item.Message = msgNodeMissing
			return item
		}
		item.Status = StatusFailed
		item.Message = err.Error()
		return item
	}

	if node.IsPublished() == wantPublished {
		item.Status = StatusSkipped
		if wantPublished {
			item.Message = msgAlreadyPublished
		} else {
			item.Message = msgNotPublished
		}
		return item
	}
	item.Status = StatusFailed
	item.Message = msgStateChanged
	return item
}

// discover walks every node of the given content type. The walk is
// exhaustive so batch semantics stay deterministic across pages.
func (s *service) discover(ctx context.Context, contentType string) ([]string, error) {
	nodes, err := retry.FetchAll(ctx, s.runner, opDiscoverNodes, s.pageSize,
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
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if node != nil && node.ID != "" {
			ids = append(ids, node.ID)
		}
	}
	return ids, nil
}

func (s *service) fetchNode(ctx context.Context, id string) (*graph.Node, error) {
	var node *graph.Node
	err := s.runner.Do(ctx, opFetchNode, func(ctx context.Context) error {
		fetched, err := s.client.FetchNode(ctx, id)
		if err != nil {
			return err
		}
		node = fetched
		return nil
	})
	return node, err
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id := graph.NormalizeID(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
