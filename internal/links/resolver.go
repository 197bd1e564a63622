// Package links discovers inbound references between graph nodes and
// strips them so a target can be deleted without leaving broken links
// behind.
package links

import (
	"context"
	"errors"
	"sync"

	"github.com/goliatone/go-sweep/internal/graph"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/internal/retry"
	"github.com/goliatone/go-sweep/pkg/interfaces"
)

var ErrTargetRequired = errors.New("links: target node required")

const (
	opFindInbound = "find_inbound_links"
	opFetchRef    = "fetch_referencing_node"
	opUpdateRef   = "update_referencing_node"
)

// Ref identifies a node holding at least one link to the target.
type Ref struct {
	ID          string `json:"id"`
	ContentType string `json:"contentType,omitempty"`
}

// Removal records one stripped link so reports can replay exactly what
// was rewritten.
type Removal struct {
	NodeID    string `json:"nodeId"`
	Field     string `json:"field"`
	Locale    string `json:"locale"`
	RemovedID string `json:"removedId"`
}

// NodeError pairs a referencing node with the error that stopped its
// rewrite. Collected, never thrown: one bad referencer must not abort
// the rest.
type NodeError struct {
	NodeID string `json:"nodeId"`
	Err    error  `json:"-"`
}

func (e NodeError) Error() string {
	if e.Err == nil {
		return "links: node " + e.NodeID + " failed"
	}
	return "links: node " + e.NodeID + ": " + e.Err.Error()
}

func (e NodeError) Unwrap() error {
	return e.Err
}

// RemovalResult summarizes one RemoveInbound pass. Success stays true
// when every referencing node was either rewritten, unchanged, or
// skipped; it flips to false only when at least one rewrite ultimately
// failed after retries.
type RemovalResult struct {
	Success         bool        `json:"success"`
	UpdatedCount    int         `json:"updatedCount"`
	SkippedArchived []string    `json:"skippedArchived,omitempty"`
	Removals        []Removal   `json:"removals,omitempty"`
	Errors          []NodeError `json:"errors,omitempty"`
}

// Resolver finds and removes inbound links. Implementations are safe
// for concurrent use within a run.
type Resolver interface {
	FindInbound(ctx context.Context, target *graph.Node) ([]Ref, error)
	RemoveInbound(ctx context.Context, target *graph.Node) (*RemovalResult, error)
}

type resolver struct {
	client   graph.Client
	runner   *retry.Runner
	logger   interfaces.Logger
	pageSize int

	mu    sync.RWMutex
	types map[string]string
}

// Option configures the resolver.
type Option func(*resolver)

// WithLogger sets the logger used for skip and failure reporting.
func WithLogger(logger interfaces.Logger) Option {
	return func(r *resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithPageSize overrides the page size used when walking inbound
// reference result sets.
func WithPageSize(size int) Option {
	return func(r *resolver) {
		if size > 0 {
			r.pageSize = size
		}
	}
}

// NewResolver builds a Resolver over the given client. The runner
// supplies retry and pagination discipline for every remote call.
func NewResolver(client graph.Client, runner *retry.Runner, opts ...Option) Resolver {
	r := &resolver{
		client:   client,
		runner:   runner,
		logger:   logging.NoOp(),
		pageSize: retry.DefaultPageSize,
		types:    map[string]string{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindInbound pages through every node holding a link to target. The
// walk is exhaustive: undercounting inbound references risks an unsafe
// delete, so pagination failures propagate instead of truncating.
func (r *resolver) FindInbound(ctx context.Context, target *graph.Node) ([]Ref, error) {
	if target == nil || target.ID == "" {
		return nil, ErrTargetRequired
	}

	query := graph.Query{
		LinksTo:     target.ID,
		LinksToKind: target.Kind,
	}
	nodes, err := retry.FetchAll(ctx, r.runner, opFindInbound, r.pageSize,
		func(ctx context.Context, limit, skip int) ([]*graph.Node, int, error) {
			q := query
			q.Limit = limit
			q.Skip = skip
			page, err := r.client.FetchPage(ctx, q)
			if err != nil {
				return nil, 0, err
			}
			return page.Items, page.Total, nil
		})
	if err != nil {
		return nil, err
	}

	refs := make([]Ref, 0, len(nodes))
	for _, node := range nodes {
		if node == nil || node.ID == "" {
			continue
		}
		r.remember(node)
		refs = append(refs, Ref{ID: node.ID, ContentType: r.contentTypeOf(node)})
	}
	return refs, nil
}

// RemoveInbound rewrites every referencing node so it no longer links
// to target. Referencing nodes are processed independently: failures
// are collected per node and reported in the result.
func (r *resolver) RemoveInbound(ctx context.Context, target *graph.Node) (*RemovalResult, error) {
	if target == nil || target.ID == "" {
		return nil, ErrTargetRequired
	}

	refs, err := r.FindInbound(ctx, target)
	if err != nil {
		return nil, err
	}

	result := &RemovalResult{Success: true}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			result.Success = false
			result.Errors = append(result.Errors, NodeError{NodeID: ref.ID, Err: err})
			continue
		}

		removals, archived, err := r.unlinkOne(ctx, ref.ID, target.ID)
		switch {
		case err != nil:
			if graph.IsNotFound(err) {
				// Referencer vanished between discovery and rewrite;
				// nothing left to unlink.
				continue
			}
			result.Success = false
			result.Errors = append(result.Errors, NodeError{NodeID: ref.ID, Err: err})
			r.logger.Warn("failed to remove inbound links from referencing node",
				"node_id", ref.ID,
				"target_id", target.ID,
				"error", err,
			)
		case archived:
			result.SkippedArchived = append(result.SkippedArchived, ref.ID)
			r.logger.Warn("referencing node is archived, skipping link removal",
				"node_id", ref.ID,
				"target_id", target.ID,
			)
		case len(removals) > 0:
			result.UpdatedCount++
			result.Removals = append(result.Removals, removals...)
			r.logger.Info("removed inbound links from referencing node",
				"node_id", ref.ID,
				"target_id", target.ID,
				"removed", len(removals),
			)
		}
	}
	return result, nil
}

// unlinkOne fetches the referencing node fresh, strips links to target,
// and writes the result back. A version conflict means another writer
// raced us, so the fetch-strip-write cycle runs once more against the
// latest state before giving up.
func (r *resolver) unlinkOne(ctx context.Context, refID, targetID string) ([]Removal, bool, error) {
	const attempts = 2

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		var node *graph.Node
		err := r.runner.Do(ctx, opFetchRef, func(ctx context.Context) error {
			fetched, err := r.client.FetchNode(ctx, refID)
			if err != nil {
				return err
			}
			node = fetched
			return nil
		})
		if err != nil {
			return nil, false, err
		}
		r.remember(node)

		if node.IsArchived() {
			return nil, true, nil
		}

		stripped, removals := stripLinks(node, targetID)
		if len(removals) == 0 {
			return nil, false, nil
		}

		err = r.runner.Do(ctx, opUpdateRef, func(ctx context.Context) error {
			_, err := r.client.UpdateNode(ctx, stripped)
			return err
		})
		if err == nil {
			return removals, false, nil
		}
		if !graph.IsVersionConflict(err) {
			return nil, false, err
		}
		lastErr = err
	}
	return nil, false, lastErr
}

// stripLinks clones node and removes every link to targetID. Scalar
// link fields become null; array fields keep all non-matching elements
// in their original order.
func stripLinks(node *graph.Node, targetID string) (*graph.Node, []Removal) {
	clone := node.Clone()
	var removals []Removal

	for _, field := range clone.Fields.FieldNames() {
		locales := clone.Fields[field]
		for _, locale := range locales.Locales() {
			value, count := stripValue(locales[locale], targetID)
			if count == 0 {
				continue
			}
			locales[locale] = value
			for i := 0; i < count; i++ {
				removals = append(removals, Removal{
					NodeID:    node.ID,
					Field:     field,
					Locale:    locale,
					RemovedID: targetID,
				})
			}
		}
	}
	return clone, removals
}

func stripValue(value graph.Value, targetID string) (graph.Value, int) {
	switch value.Kind() {
	case graph.ValueLink:
		if link, ok := value.AsLink(); ok && link.TargetID == targetID {
			return graph.Null(), 1
		}
	case graph.ValueArray:
		items := value.Items()
		kept := make([]graph.Value, 0, len(items))
		removed := 0
		for _, item := range items {
			if link, ok := item.AsLink(); ok && link.TargetID == targetID {
				removed++
				continue
			}
			kept = append(kept, item)
		}
		if removed > 0 {
			return graph.Array(kept...), removed
		}
	}
	return value, 0
}

// remember caches the content type of every node the resolver observes.
// The cache is read-through and duplicate-populate safe: entries only
// ever move from absent to a fetched value.
func (r *resolver) remember(node *graph.Node) {
	if node == nil || node.ID == "" || node.ContentType == "" {
		return
	}
	r.mu.Lock()
	if _, ok := r.types[node.ID]; !ok {
		r.types[node.ID] = node.ContentType
	}
	r.mu.Unlock()
}

func (r *resolver) contentTypeOf(node *graph.Node) string {
	if node.ContentType != "" {
		return node.ContentType
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[node.ID]
}
