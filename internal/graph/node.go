package graph

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Kind discriminates the two node flavours the content graph exposes.
type Kind string

const (
	KindEntry Kind = "Entry"
	KindAsset Kind = "Asset"
)

// Valid reports whether the kind is one the graph understands.
func (k Kind) Valid() bool {
	return k == KindEntry || k == KindAsset
}

// LocaleValues maps a locale code to the field value stored for it.
type LocaleValues map[string]Value

// Fields maps a field name to its per-locale values.
type Fields map[string]LocaleValues

// Clone returns a deep copy so callers can mutate fields without
// affecting the source node.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	cloned := make(Fields, len(f))
	for name, locales := range f {
		copied := make(LocaleValues, len(locales))
		for locale, value := range locales {
			copied[locale] = value.Clone()
		}
		cloned[name] = copied
	}
	return cloned
}

// FieldNames returns the field names in sorted order for deterministic walks.
func (f Fields) FieldNames() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Locales returns the locale codes present for a field in sorted order.
func (l LocaleValues) Locales() []string {
	locales := make([]string, 0, len(l))
	for locale := range l {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	return locales
}

// Node is a single entry or asset in the content graph together with the
// system metadata the backend tracks for it. Version carries the optimistic
// concurrency token; every successful write advances it.
type Node struct {
	ID               string
	Kind             Kind
	ContentType      string
	Version          int
	PublishedVersion int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	PublishedAt      *time.Time
	ArchivedAt       *time.Time
	Fields           Fields
}

// IsPublished reports whether the node has a live published revision.
func (n *Node) IsPublished() bool {
	return n != nil && n.PublishedVersion > 0
}

// IsArchived reports whether the node is archived on the backend.
func (n *Node) IsArchived() bool {
	return n != nil && n.ArchivedAt != nil
}

// HasPendingChanges reports whether the node was edited after its last
// publish. Publishing bumps the version once, so a gap larger than one
// means a newer draft exists.
func (n *Node) HasPendingChanges() bool {
	return n.IsPublished() && n.Version > n.PublishedVersion+1
}

// FieldValue returns the value stored for a field in a specific locale.
func (n *Node) FieldValue(name, locale string) (Value, bool) {
	if n == nil || n.Fields == nil {
		return Null(), false
	}
	locales, ok := n.Fields[name]
	if !ok {
		return Null(), false
	}
	value, ok := locales[locale]
	if !ok {
		return Null(), false
	}
	return value, true
}

// FieldLocales returns every locale value stored for a field. The second
// return reports whether the field exists at all.
func (n *Node) FieldLocales(name string) (LocaleValues, bool) {
	if n == nil || n.Fields == nil {
		return nil, false
	}
	locales, ok := n.Fields[name]
	return locales, ok
}

// SetField stores a value for a field/locale pair, allocating maps as needed.
func (n *Node) SetField(name, locale string, value Value) {
	if n == nil {
		return
	}
	if n.Fields == nil {
		n.Fields = Fields{}
	}
	locales, ok := n.Fields[name]
	if !ok {
		locales = LocaleValues{}
		n.Fields[name] = locales
	}
	locales[locale] = value
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cloned := *n
	cloned.Fields = n.Fields.Clone()
	if n.PublishedAt != nil {
		at := *n.PublishedAt
		cloned.PublishedAt = &at
	}
	if n.ArchivedAt != nil {
		at := *n.ArchivedAt
		cloned.ArchivedAt = &at
	}
	return &cloned
}

// Query selects a slice of the graph. LinksTo restricts results to nodes
// holding a link to the given target; LinksToKind tells the backend which
// index to consult and defaults to entries.
type Query struct {
	ContentType string
	LinksTo     string
	LinksToKind Kind
	Limit       int
	Skip        int
}

// Page is one window of a collection result. Total reports the full
// collection size so callers can drive pagination.
type Page struct {
	Items []*Node
	Total int
	Limit int
	Skip  int
}

// Client is the minimal surface the engine needs from a content graph
// backend. Write operations carry the node so its version token travels
// with the call; implementations must reject stale versions.
type Client interface {
	FetchNode(ctx context.Context, id string) (*Node, error)
	FetchPage(ctx context.Context, q Query) (*Page, error)
	UpdateNode(ctx context.Context, node *Node) (*Node, error)
	Publish(ctx context.Context, node *Node) (*Node, error)
	Unpublish(ctx context.Context, node *Node) (*Node, error)
	Archive(ctx context.Context, node *Node) (*Node, error)
	Unarchive(ctx context.Context, node *Node) (*Node, error)
	DeleteNode(ctx context.Context, node *Node) error
}

// NormalizeID trims whitespace from externally supplied node identifiers.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}
