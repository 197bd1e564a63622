// Package promote copies entries between environments of the content
// graph. Targets are matched by id: missing entries are created, existing
// ones are replaced unless the target copy is newer, and promoted entries
// can optionally be published in the same pass.
package promote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-sweep/internal/graph"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/internal/retry"
	"github.com/goliatone/go-sweep/pkg/interfaces"
)

var (
	ErrClientsRequired   = errors.New("promote: environment client factory required")
	ErrSourceRequired    = errors.New("promote: source environment required")
	ErrTargetRequired    = errors.New("promote: target environment required")
	ErrSameEnvironment   = errors.New("promote: source and target environments match")
	ErrSelectionRequired = errors.New("promote: entry ids or content types required")
	ErrPromotionDisabled = errors.New("promote: promotion feature disabled")
)

const (
	opFetchSource    = "fetch_source_entry"
	opFetchTarget    = "fetch_target_entry"
	opDiscoverSource = "discover_source_entries"
	opWriteTarget    = "write_target_entry"
	opPublishTarget  = "publish_target_entry"
)

const (
	msgMissingSource  = "Entry does not exist in source environment"
	msgSourceArchived = "Archived entries are not promoted"
	msgTargetArchived = "Target entry is archived"
	msgTargetNewer    = "Target entry is newer; use overwrite to replace it"
	msgRunCanceled    = "Run canceled before entry was processed"
)

// ClientFactory returns a graph client bound to one environment.
type ClientFactory func(environment string) (graph.Client, error)

// Service promotes entries from one environment to another.
type Service interface {
	// PromoteEntries copies the selected entries into the target
	// environment. Per-entry failures are recorded on the result; the
	// returned error is reserved for selection problems, unreachable
	// environments, and run-level failures such as cancellation.
	PromoteEntries(ctx context.Context, req Request) (*Result, error)
}

type service struct {
	clients  ClientFactory
	runner   *retry.Runner
	logger   interfaces.Logger
	pageSize int
}

// ServiceOption configures the promotion service.
type ServiceOption func(*service)

// WithLogger sets the logger used for pass and item reporting.
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

// NewService builds the promoter. The factory resolves environment names
// to clients at request time, so one service can serve any pair. The
// runner supplies retry discipline for every remote call; when nil a
// runner with default settings is used.
func NewService(clients ClientFactory, runner *retry.Runner, opts ...ServiceOption) Service {
	s := &service{
		clients:  clients,
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

type envPair struct {
	source graph.Client
	target graph.Client
}

func (s *service) PromoteEntries(ctx context.Context, req Request) (*Result, error) {
	if s.clients == nil {
		return nil, ErrClientsRequired
	}
	source := strings.TrimSpace(req.Source)
	target := strings.TrimSpace(req.Target)
	if source == "" {
		return nil, ErrSourceRequired
	}
	if target == "" {
		return nil, ErrTargetRequired
	}
	if source == target {
		return nil, ErrSameEnvironment
	}

	sourceClient, err := s.clients(source)
	if err != nil {
		return nil, fmt.Errorf("promote: source environment %q: %w", source, err)
	}
	targetClient, err := s.clients(target)
	if err != nil {
		return nil, fmt.Errorf("promote: target environment %q: %w", target, err)
	}
	envs := envPair{source: sourceClient, target: targetClient}

	ids := normalizeList(req.IDs)
	if len(ids) == 0 {
		types := normalizeList(req.ContentTypes)
		if len(types) == 0 {
			return nil, ErrSelectionRequired
		}
		discovered, err := s.discover(ctx, sourceClient, types)
		if err != nil {
			return nil, err
		}
		ids = discovered
	}

	logger := logging.WithFields(s.logger, map[string]any{
		"source": source,
		"target": target,
	})
	logger.Info("promotion starting", "entries", len(ids), "dry_run", req.Options.DryRun)

	result := &Result{
		Source: source,
		Target: target,
		DryRun: req.Options.DryRun,
	}

	var runErr error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			runErr = err
			result.add(Item{ID: id, Status: StatusSkipped, Message: msgRunCanceled})
			continue
		}
		item := s.processOne(ctx, envs, id, req.Options)
		switch item.Status {
		case StatusFailed:
			logger.Error("entry promotion failed", "node_id", item.ID, "error", item.Message)
		case StatusSkipped:
			logger.Debug("entry skipped", "node_id", item.ID, "reason", item.Message)
		default:
			logger.Info("entry promoted", "node_id", item.ID, "status", item.Status)
		}
		result.add(item)
	}

	logger.Info("promotion finished",
		"created", result.Summary.Created,
		"updated", result.Summary.Updated,
		"skipped", result.Summary.Skipped,
		"failed", result.Summary.Failed,
	)
	return result, runErr
}

// processOne promotes a single entry. Failures are folded into the item,
// never returned: one bad entry must not abort the rest of the pass.
func (s *service) processOne(ctx context.Context, envs envPair, id string, opts Options) Item {
	item := Item{ID: id}

	source, err := s.fetchNode(ctx, envs.source, opFetchSource, id)
	if err != nil {
		if graph.IsNotFound(err) {
			item.Status = StatusSkipped
			item.Message = msgMissingSource
			return item
		}
		item.Status = StatusFailed
		item.Message = err.Error()
		return item
	}
	item.ContentType = source.ContentType

	if source.IsArchived() {
		item.Status = StatusSkipped
		item.Message = msgSourceArchived
		return item
	}

	target, err := s.fetchNode(ctx, envs.target, opFetchTarget, id)
	exists := err == nil
	if err != nil && !graph.IsNotFound(err) {
		item.Status = StatusFailed
		item.Message = err.Error()
		return item
	}

	if exists {
		if target.IsArchived() {
			item.Status = StatusSkipped
			item.Message = msgTargetArchived
			return item
		}
		if target.Version > source.Version && !opts.Overwrite {
			item.Status = StatusSkipped
			item.Message = msgTargetNewer
			return item
		}
	}

	status := StatusCreated
	version := 0
	if exists {
		status = StatusUpdated
		version = target.Version
	}

	if opts.DryRun {
		item.Status = status
		return item
	}

	written, err := s.writeTarget(ctx, envs.target, &graph.Node{
		ID:          source.ID,
		Kind:        source.Kind,
		ContentType: source.ContentType,
		Version:     version,
		Fields:      source.Fields.Clone(),
	})
	if err != nil {
		item.Status = StatusFailed
		item.Message = err.Error()
		return item
	}

	if opts.Publish {
		err := s.runner.Do(ctx, opPublishTarget, func(ctx context.Context) error {
			_, err := envs.target.Publish(ctx, written)
			return err
		})
		if err != nil {
			item.Status = StatusFailed
			item.Message = "Entry written but publish failed: " + err.Error()
			return item
		}
	}

	item.Status = status
	return item
}

// writeTarget pushes one entry into the target environment. A version
// conflict means the target moved under us, so the write is reapplied
// once with the target's current version token.
func (s *service) writeTarget(ctx context.Context, client graph.Client, node *graph.Node) (*graph.Node, error) {
	current := node
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			fresh, err := s.fetchNode(ctx, client, opFetchTarget, current.ID)
			switch {
			case err == nil:
				current.Version = fresh.Version
			case graph.IsNotFound(err):
				current.Version = 0
			default:
				return nil, err
			}
		}

		var out *graph.Node
		err := s.runner.Do(ctx, opWriteTarget, func(ctx context.Context) error {
			result, err := client.UpdateNode(ctx, current)
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

// discover walks the source environment for every entry of the requested
// content types, in request order.
func (s *service) discover(ctx context.Context, client graph.Client, contentTypes []string) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})
	for _, contentType := range contentTypes {
		nodes, err := retry.FetchAll(ctx, s.runner, opDiscoverSource, s.pageSize,
			func(ctx context.Context, limit, skip int) ([]*graph.Node, int, error) {
				page, err := client.FetchPage(ctx, graph.Query{
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
		for _, node := range nodes {
			if node == nil || node.ID == "" {
				continue
			}
			if _, ok := seen[node.ID]; ok {
				continue
			}
			seen[node.ID] = struct{}{}
			ids = append(ids, node.ID)
		}
	}
	return ids, nil
}

func (s *service) fetchNode(ctx context.Context, client graph.Client, op, id string) (*graph.Node, error) {
	var node *graph.Node
	err := s.runner.Do(ctx, op, func(ctx context.Context) error {
		fetched, err := client.FetchNode(ctx, id)
		if err != nil {
			return err
		}
		node = fetched
		return nil
	})
	return node, err
}

// normalizeList trims entries and drops blanks and duplicates, keeping
// first-occurrence order.
func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		value := graph.NormalizeID(raw)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
