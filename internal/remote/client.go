// Package remote implements the graph client against a Contentful-style
// content management API: entries and assets under
// /spaces/{space}/environments/{environment}, optimistic concurrency via
// the X-Contentful-Version header, and rate limiting surfaced through
// 429 responses.
//
// Calls here are raw single shots. Retries, backoff, and pagination
// belong to the retry runner layered on top.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-sweep/internal/graph"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/pkg/interfaces"
)

const (
	// DefaultBaseURL targets the hosted management API.
	DefaultBaseURL = "https://api.contentful.com"

	headerVersion     = "X-Contentful-Version"
	headerContentType = "X-Contentful-Content-Type"
	headerRateReset   = "X-Contentful-RateLimit-Reset"

	contentTypeJSON = "application/vnd.contentful.management.v1+json"

	// maxErrorBody caps how much of an error response is read for its
	// message.
	maxErrorBody = 64 << 10
)

var (
	ErrSpaceRequired       = errors.New("remote: space required")
	ErrEnvironmentRequired = errors.New("remote: environment required")
	ErrTokenRequired       = errors.New("remote: access token required")
)

// Config carries the connection settings for one space environment.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL     string
	Space       string
	Environment string
	Token       string
	// UserAgent is sent with every request when set.
	UserAgent string
}

// Client talks to one space environment. It implements graph.Client.
type Client struct {
	baseURL     string
	space       string
	environment string
	token       string
	userAgent   string
	httpClient  *http.Client
	logger      interfaces.Logger
}

var _ graph.Client = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default, mainly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger interfaces.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

var (
	transportOnce   sync.Once
	sharedTransport *http.Transport
)

// pooledTransport returns the shared connection-pooling transport used
// by every client in the process.
func pooledTransport() *http.Transport {
	transportOnce.Do(func() {
		sharedTransport = &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	})
	return sharedTransport
}

// New builds a client for the configured space environment.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Space) == "" {
		return nil, ErrSpaceRequired
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		return nil, ErrEnvironmentRequired
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrTokenRequired
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		space:       strings.TrimSpace(cfg.Space),
		environment: strings.TrimSpace(cfg.Environment),
		token:       strings.TrimSpace(cfg.Token),
		userAgent:   strings.TrimSpace(cfg.UserAgent),
		httpClient:  &http.Client{Transport: pooledTransport()},
		logger:      logging.NoOp(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Environment reports which environment the client targets.
func (c *Client) Environment() string { return c.environment }

// FetchNode looks the id up as an entry first and falls back to the
// asset collection, since node ids are not kind-qualified.
func (c *Client) FetchNode(ctx context.Context, id string) (*graph.Node, error) {
	id = graph.NormalizeID(id)
	if id == "" {
		return nil, graph.NewValidation(graph.OpFetchNode, "", "node id required")
	}

	node, entryErr := c.fetchByKind(ctx, graph.KindEntry, id)
	if entryErr == nil {
		return node, nil
	}
	if !graph.IsNotFound(entryErr) {
		return nil, entryErr
	}

	node, assetErr := c.fetchByKind(ctx, graph.KindAsset, id)
	if assetErr == nil {
		return node, nil
	}
	if graph.IsNotFound(assetErr) {
		return nil, entryErr
	}
	return nil, assetErr
}

func (c *Client) fetchByKind(ctx context.Context, kind graph.Kind, id string) (*graph.Node, error) {
	resp, err := c.request(ctx, graph.OpFetchNode, id, http.MethodGet, c.nodeURL(kind, id), 0, "", nil)
	if err != nil {
		return nil, err
	}
	return c.decodeNode(graph.OpFetchNode, id, resp)
}

// FetchPage queries the entry collection. Inbound-link filters select
// the index by the target's kind; referencing nodes are always entries.
func (c *Client) FetchPage(ctx context.Context, q graph.Query) (*graph.Page, error) {
	values := url.Values{}
	if q.ContentType != "" {
		values.Set("content_type", q.ContentType)
	}
	if q.LinksTo != "" {
		if q.LinksToKind == graph.KindAsset {
			values.Set("links_to_asset", q.LinksTo)
		} else {
			values.Set("links_to_entry", q.LinksTo)
		}
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Skip > 0 {
		values.Set("skip", strconv.Itoa(q.Skip))
	}
	// Stable windows while paging: oldest first, ties broken by id.
	values.Set("order", "sys.createdAt,sys.id")

	target := c.collectionURL(graph.KindEntry) + "?" + values.Encode()
	resp, err := c.request(ctx, graph.OpFetchPage, "", http.MethodGet, target, 0, "", nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(graph.OpFetchPage, "", resp)
	}

	var envelope collectionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, graph.NewMalformedPage(graph.OpFetchPage, err.Error())
	}

	page := &graph.Page{
		Total: envelope.Total,
		Limit: envelope.Limit,
		Skip:  envelope.Skip,
		Items: make([]*graph.Node, 0, len(envelope.Items)),
	}
	for _, item := range envelope.Items {
		node, err := item.toNode()
		if err != nil {
			return nil, graph.NewMalformedPage(graph.OpFetchPage, err.Error())
		}
		page.Items = append(page.Items, node)
	}
	return page, nil
}

// UpdateNode writes the node's fields under its version token. A zero
// version creates the node, carrying the content type in a header the
// way the backend expects for upserts.
func (c *Client) UpdateNode(ctx context.Context, node *graph.Node) (*graph.Node, error) {
	if node == nil || node.ID == "" {
		return nil, graph.NewValidation(graph.OpUpdate, "", "node id required")
	}

	contentType := ""
	if node.Version == 0 {
		contentType = node.ContentType
	}
	resp, err := c.request(ctx, graph.OpUpdate, node.ID, http.MethodPut,
		c.nodeURL(node.Kind, node.ID), node.Version, contentType,
		updatePayload{Fields: node.Fields})
	if err != nil {
		return nil, err
	}
	return c.decodeNode(graph.OpUpdate, node.ID, resp)
}

func (c *Client) Publish(ctx context.Context, node *graph.Node) (*graph.Node, error) {
	return c.lifecycle(ctx, graph.OpPublish, node, http.MethodPut, "published")
}

func (c *Client) Unpublish(ctx context.Context, node *graph.Node) (*graph.Node, error) {
	return c.lifecycle(ctx, graph.OpUnpublish, node, http.MethodDelete, "published")
}

func (c *Client) Archive(ctx context.Context, node *graph.Node) (*graph.Node, error) {
	return c.lifecycle(ctx, graph.OpArchive, node, http.MethodPut, "archived")
}

func (c *Client) Unarchive(ctx context.Context, node *graph.Node) (*graph.Node, error) {
	return c.lifecycle(ctx, graph.OpUnarchive, node, http.MethodDelete, "archived")
}

func (c *Client) DeleteNode(ctx context.Context, node *graph.Node) error {
	if node == nil || node.ID == "" {
		return graph.NewValidation(graph.OpDelete, "", "node id required")
	}
	resp, err := c.request(ctx, graph.OpDelete, node.ID, http.MethodDelete,
		c.nodeURL(node.Kind, node.ID), node.Version, "", nil)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return c.statusError(graph.OpDelete, node.ID, resp)
	}
	return nil
}

func (c *Client) lifecycle(ctx context.Context, op string, node *graph.Node, method, state string) (*graph.Node, error) {
	if node == nil || node.ID == "" {
		return nil, graph.NewValidation(op, "", "node id required")
	}
	target := c.nodeURL(node.Kind, node.ID) + "/" + state
	resp, err := c.request(ctx, op, node.ID, method, target, node.Version, "", nil)
	if err != nil {
		return nil, err
	}
	return c.decodeNode(op, node.ID, resp)
}

func (c *Client) collectionURL(kind graph.Kind) string {
	collection := "entries"
	if kind == graph.KindAsset {
		collection = "assets"
	}
	return fmt.Sprintf("%s/spaces/%s/environments/%s/%s",
		c.baseURL, url.PathEscape(c.space), url.PathEscape(c.environment), collection)
}

func (c *Client) nodeURL(kind graph.Kind, id string) string {
	return c.collectionURL(kind) + "/" + url.PathEscape(id)
}

// request performs one HTTP call, mapping transport failures to the
// graph error taxonomy. Status handling is left to the caller, since a
// 404 is an error for a fetch but routine for a fallback probe.
func (c *Client) request(ctx context.Context, op, nodeID, method, target string, version int, contentType string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("remote: encode %s: %w", op, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("remote: build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	if version > 0 {
		req.Header.Set(headerVersion, strconv.Itoa(version))
	}
	if contentType != "" {
		req.Header.Set(headerContentType, contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("api request", "method", method, "op", op, "node_id", nodeID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(op, nodeID, err)
	}
	return resp, nil
}

func (c *Client) transportError(op, nodeID string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return graph.NewTimeout(op, nodeID)
	}
	return graph.NewUnavailable(op, err)
}

func (c *Client) decodeNode(op, nodeID string, resp *http.Response) (*graph.Node, error) {
	defer drain(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.statusError(op, nodeID, resp)
	}

	var envelope nodeEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("remote: decode %s response: %w", op, err)
	}
	node, err := envelope.toNode()
	if err != nil {
		return nil, err
	}
	return node, nil
}

// statusError turns a non-success response into the matching graph
// error, pulling the backend's message and rate-limit hints along.
func (c *Client) statusError(op, nodeID string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var envelope errorEnvelope
	_ = json.Unmarshal(raw, &envelope)

	if resp.StatusCode == http.StatusTooManyRequests || envelope.Sys.ID == "RateLimitExceeded" {
		return graph.NewRateLimited(op, retryAfterHint(resp))
	}

	detail := strings.TrimSpace(envelope.Message)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return graph.NewNotFound(op, nodeID)
	case http.StatusConflict:
		return graph.NewVersionConflict(op, nodeID)
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return graph.NewValidation(op, nodeID, detail)
	default:
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return graph.NewUnavailable(op, fmt.Errorf("status %d: %s", resp.StatusCode, detail))
	}
}

// retryAfterHint reads the backend's requested wait, preferring the
// standard header over the vendor reset header. Both carry seconds.
func retryAfterHint(resp *http.Response) time.Duration {
	for _, header := range []string{"Retry-After", headerRateReset} {
		value := strings.TrimSpace(resp.Header.Get(header))
		if value == "" {
			continue
		}
		if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

// drain discards any unread body so the pooled connection is reusable.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
