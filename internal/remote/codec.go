package remote

import (
	"fmt"
	"time"

	"github.com/goliatone/go-sweep/internal/graph"
)

// Wire envelopes for the management API. Nodes travel as a sys block
// plus localized fields; collections wrap items with window metadata.

type sysBlock struct {
	ID               string           `json:"id,omitempty"`
	Type             string           `json:"type,omitempty"`
	Version          int              `json:"version,omitempty"`
	PublishedVersion int              `json:"publishedVersion,omitempty"`
	CreatedAt        string           `json:"createdAt,omitempty"`
	UpdatedAt        string           `json:"updatedAt,omitempty"`
	PublishedAt      string           `json:"publishedAt,omitempty"`
	ArchivedAt       string           `json:"archivedAt,omitempty"`
	ContentType      *contentTypeLink `json:"contentType,omitempty"`
}

type contentTypeLink struct {
	Sys contentTypeSys `json:"sys"`
}

type contentTypeSys struct {
	Type     string `json:"type"`
	LinkType string `json:"linkType"`
	ID       string `json:"id"`
}

type nodeEnvelope struct {
	Sys    sysBlock                          `json:"sys"`
	Fields map[string]map[string]graph.Value `json:"fields,omitempty"`
}

type collectionEnvelope struct {
	Total int            `json:"total"`
	Skip  int            `json:"skip"`
	Limit int            `json:"limit"`
	Items []nodeEnvelope `json:"items"`
}

type errorEnvelope struct {
	Sys     sysBlock `json:"sys"`
	Message string   `json:"message"`
}

// updatePayload is the write body: the backend takes sys metadata from
// the path and headers, never from the body.
type updatePayload struct {
	Fields graph.Fields `json:"fields"`
}

func (e nodeEnvelope) toNode() (*graph.Node, error) {
	kind := graph.Kind(e.Sys.Type)
	if !kind.Valid() {
		return nil, fmt.Errorf("remote: unknown node type %q", e.Sys.Type)
	}
	node := &graph.Node{
		ID:               e.Sys.ID,
		Kind:             kind,
		Version:          e.Sys.Version,
		PublishedVersion: e.Sys.PublishedVersion,
	}
	if e.Sys.ContentType != nil {
		node.ContentType = e.Sys.ContentType.Sys.ID
	}

	var ok bool
	if node.CreatedAt, ok = parseSysTime(e.Sys.CreatedAt); !ok {
		return nil, fmt.Errorf("remote: node %s: bad createdAt %q", e.Sys.ID, e.Sys.CreatedAt)
	}
	if node.UpdatedAt, ok = parseSysTime(e.Sys.UpdatedAt); !ok {
		return nil, fmt.Errorf("remote: node %s: bad updatedAt %q", e.Sys.ID, e.Sys.UpdatedAt)
	}
	if at, ok := graph.ParseTime(e.Sys.PublishedAt); ok {
		node.PublishedAt = &at
	}
	if at, ok := graph.ParseTime(e.Sys.ArchivedAt); ok {
		node.ArchivedAt = &at
	}

	if len(e.Fields) > 0 {
		node.Fields = make(graph.Fields, len(e.Fields))
		for name, locales := range e.Fields {
			values := make(graph.LocaleValues, len(locales))
			for locale, value := range locales {
				values[locale] = value
			}
			node.Fields[name] = values
		}
	}
	return node, nil
}

func parseSysTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	return graph.ParseTime(s)
}
