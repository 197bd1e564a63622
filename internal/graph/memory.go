package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Operation names used for journaling and fault injection on the in-memory
// client.
const (
	OpFetchNode = "fetch_node"
	OpFetchPage = "fetch_page"
	OpUpdate    = "update"
	OpPublish   = "publish"
	OpUnpublish = "unpublish"
	OpArchive   = "archive"
	OpUnarchive = "unarchive"
	OpDelete    = "delete"
)

// Memory is an in-memory Client used by tests and by embedders that want to
// dry-run policies against a locally assembled graph. It enforces the same
// version and state rules a real backend does: stale writes conflict,
// published or archived nodes refuse deletion, and every successful write
// advances the version token.
type Memory struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	journal  []string
	failures map[string][]error
	clock    func() time.Time
}

// MemoryOption configures the in-memory client.
type MemoryOption func(*Memory)

// WithMemoryClock overrides the clock used for system timestamps.
func WithMemoryClock(clock func() time.Time) MemoryOption {
	return func(m *Memory) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewMemory returns an empty in-memory graph.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		nodes:    map[string]*Node{},
		failures: map[string][]error{},
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Client = (*Memory)(nil)

// Seed stores nodes directly, assigning version and timestamps when the
// caller left them zero. Seeded nodes are cloned.
func (m *Memory) Seed(nodes ...*Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, node := range nodes {
		if node == nil || node.ID == "" {
			continue
		}
		stored := node.Clone()
		if stored.Kind == "" {
			stored.Kind = KindEntry
		}
		if stored.Version == 0 {
			stored.Version = 1
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = m.clock().UTC()
		}
		if stored.UpdatedAt.IsZero() {
			stored.UpdatedAt = stored.CreatedAt
		}
		m.nodes[stored.ID] = stored
	}
}

// FailNext queues an error to be returned by the next call of the named
// operation. Repeated calls queue in FIFO order.
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], err)
}

// Journal returns the operations performed so far, in order.
func (m *Memory) Journal() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.journal))
	copy(out, m.journal)
	return out
}

// Len reports how many nodes the graph currently holds.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// Node returns a clone of the stored node, or nil when absent.
func (m *Memory) Node(id string) *Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if node, ok := m.nodes[id]; ok {
		return node.Clone()
	}
	return nil
}

func (m *Memory) record(entry string) {
	m.journal = append(m.journal, entry)
}

func (m *Memory) popFailure(op string) error {
	queue := m.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	m.failures[op] = queue[1:]
	return err
}

func (m *Memory) FetchNode(ctx context.Context, id string) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(OpFetchNode + ":" + id)
	if err := m.popFailure(OpFetchNode); err != nil {
		return nil, err
	}

	node, ok := m.nodes[id]
	if !ok {
		return nil, NewNotFound(OpFetchNode, id)
	}
	return node.Clone(), nil
}

func (m *Memory) FetchPage(ctx context.Context, q Query) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(fmt.Sprintf("%s:ct=%s,links_to=%s,skip=%d", OpFetchPage, q.ContentType, q.LinksTo, q.Skip))
	if err := m.popFailure(OpFetchPage); err != nil {
		return nil, err
	}

	matched := make([]*Node, 0, len(m.nodes))
	for _, node := range m.nodes {
		if q.ContentType != "" && node.ContentType != q.ContentType {
			continue
		}
		if q.LinksTo != "" && !nodeLinksTo(node, q.LinksTo, q.LinksToKind) {
			continue
		}
		matched = append(matched, node)
	}

	// Stable discovery order: oldest first, ties broken by id.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	skip := q.Skip
	if skip < 0 {
		skip = 0
	}

	page := &Page{Total: len(matched), Limit: limit, Skip: skip}
	if skip < len(matched) {
		end := skip + limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = make([]*Node, 0, end-skip)
		for _, node := range matched[skip:end] {
			page.Items = append(page.Items, node.Clone())
		}
	}
	return page, nil
}

func (m *Memory) UpdateNode(ctx context.Context, node *Node) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if node == nil || node.ID == "" {
		return nil, NewValidation(OpUpdate, "", "node id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(OpUpdate + ":" + node.ID)
	if err := m.popFailure(OpUpdate); err != nil {
		return nil, err
	}

	stored, ok := m.nodes[node.ID]
	if !ok {
		// A zero version acts as a create, mirroring backends that upsert
		// on first write.
		if node.Version != 0 {
			return nil, NewNotFound(OpUpdate, node.ID)
		}
		created := node.Clone()
		created.Version = 1
		if created.Kind == "" {
			created.Kind = KindEntry
		}
		now := m.clock().UTC()
		created.CreatedAt = now
		created.UpdatedAt = now
		m.nodes[created.ID] = created
		return created.Clone(), nil
	}

	if node.Version != stored.Version {
		return nil, NewVersionConflict(OpUpdate, node.ID)
	}

	stored.Fields = node.Fields.Clone()
	stored.Version++
	stored.UpdatedAt = m.clock().UTC()
	return stored.Clone(), nil
}

func (m *Memory) Publish(ctx context.Context, node *Node) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(OpPublish + ":" + node.ID)
	if err := m.popFailure(OpPublish); err != nil {
		return nil, err
	}

	stored, ok := m.nodes[node.ID]
	if !ok {
		return nil, NewNotFound(OpPublish, node.ID)
	}
	if node.Version != stored.Version {
		return nil, NewVersionConflict(OpPublish, node.ID)
	}
	if stored.IsArchived() {
		return nil, NewValidation(OpPublish, node.ID, "cannot publish an archived node")
	}

	now := m.clock().UTC()
	stored.PublishedVersion = stored.Version
	stored.PublishedAt = &now
	stored.Version++
	stored.UpdatedAt = now
	return stored.Clone(), nil
}

func (m *Memory) Unpublish(ctx context.Context, node *Node) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(OpUnpublish + ":" + node.ID)
	if err := m.popFailure(OpUnpublish); err != nil {
		return nil, err
	}

	stored, ok := m.nodes[node.ID]
	if !ok {
		return nil, NewNotFound(OpUnpublish, node.ID)
	}
	if !stored.IsPublished() {
		return nil, NewNotFound(OpUnpublish, node.ID)
	}

	stored.PublishedVersion = 0
	stored.PublishedAt = nil
	stored.Version++
	stored.UpdatedAt = m.clock().UTC()
	return stored.Clone(), nil
}

func (m *Memory) Archive(ctx context.Context, node *Node) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(OpArchive + ":" + node.ID)
	if err := m.popFailure(OpArchive); err != nil {
		return nil, err
	}

	stored, ok := m.nodes[node.ID]
	if !ok {
		return nil, NewNotFound(OpArchive, node.ID)
	}
	if stored.IsPublished() {
		return nil, NewValidation(OpArchive, node.ID, "cannot archive a published node")
	}

	now := m.clock().UTC()
	stored.ArchivedAt = &now
	stored.Version++
	stored.UpdatedAt = now
	return stored.Clone(), nil
}

func (m *Memory) Unarchive(ctx context.Context, node *Node) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(OpUnarchive + ":" + node.ID)
	if err := m.popFailure(OpUnarchive); err != nil {
		return nil, err
	}

	stored, ok := m.nodes[node.ID]
	if !ok {
		return nil, NewNotFound(OpUnarchive, node.ID)
	}
	if !stored.IsArchived() {
		return nil, NewNotFound(OpUnarchive, node.ID)
	}

	stored.ArchivedAt = nil
	stored.Version++
	stored.UpdatedAt = m.clock().UTC()
	return stored.Clone(), nil
}

func (m *Memory) DeleteNode(ctx context.Context, node *Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(OpDelete + ":" + node.ID)
	if err := m.popFailure(OpDelete); err != nil {
		return err
	}

	stored, ok := m.nodes[node.ID]
	if !ok {
		return NewNotFound(OpDelete, node.ID)
	}
	if stored.IsPublished() {
		return NewValidation(OpDelete, node.ID, "cannot delete a published node")
	}
	if stored.IsArchived() {
		return NewValidation(OpDelete, node.ID, "cannot delete an archived node")
	}

	delete(m.nodes, node.ID)
	return nil
}

func nodeLinksTo(node *Node, targetID string, kind Kind) bool {
	for _, locales := range node.Fields {
		for _, value := range locales {
			if valueLinksTo(value, targetID, kind) {
				return true
			}
		}
	}
	return false
}

func valueLinksTo(value Value, targetID string, kind Kind) bool {
	if link, ok := value.AsLink(); ok {
		if kind.Valid() && link.Kind != kind {
			return false
		}
		return link.TargetID == targetID
	}
	for _, item := range value.Items() {
		if valueLinksTo(item, targetID, kind) {
			return true
		}
	}
	return false
}
