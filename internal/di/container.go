package di

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-sweep/internal/cleanup"
	"github.com/goliatone/go-sweep/internal/graph"
	"github.com/goliatone/go-sweep/internal/links"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/internal/logging/gologger"
	"github.com/goliatone/go-sweep/internal/policy"
	"github.com/goliatone/go-sweep/internal/promote"
	"github.com/goliatone/go-sweep/internal/publish"
	"github.com/goliatone/go-sweep/internal/remote"
	"github.com/goliatone/go-sweep/internal/report"
	"github.com/goliatone/go-sweep/internal/retry"
	"github.com/goliatone/go-sweep/internal/runtimeconfig"
	"github.com/goliatone/go-sweep/pkg/interfaces"
	"github.com/uptrace/bun"
)

// ErrEnvironmentRequired is returned when a client factory is asked for a
// blank environment.
var ErrEnvironmentRequired = errors.New("di: environment required")

// Container wires the sweep engine from configuration. Hosts override
// individual pieces through options; anything left nil is built from the
// runtime config.
type Container struct {
	Config runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider

	bunDB         *bun.DB
	ownsDB        bool
	cacheService  repocache.CacheService
	keySerializer repocache.KeySerializer

	client  graph.Client
	clients promote.ClientFactory
	runner  *retry.Runner
	rules   *policy.RuleSet

	resolver   links.Resolver
	cleanupSvc cleanup.Service
	previewSvc cleanup.Service
	publishSvc publish.Service
	promoteSvc promote.Service
	store      report.Store
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithLoggerProvider overrides the logging provider built from configuration.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		c.loggerProvider = provider
	}
}

// WithGraphClient overrides the graph client for the configured environment.
func WithGraphClient(client graph.Client) Option {
	return func(c *Container) {
		c.client = client
	}
}

// WithClientFactory overrides how per-environment graph clients are built
// for promotion flows.
func WithClientFactory(factory promote.ClientFactory) Option {
	return func(c *Container) {
		c.clients = factory
	}
}

// WithRunner overrides the retry runner shared by every service.
func WithRunner(runner *retry.Runner) Option {
	return func(c *Container) {
		c.runner = runner
	}
}

// WithRuleSet overrides the deletion rule set loaded from configuration.
func WithRuleSet(rules *policy.RuleSet) Option {
	return func(c *Container) {
		c.rules = rules
	}
}

// WithBunDB supplies the database used by the report store. The caller keeps
// ownership: schema and lifecycle stay on their side.
func WithBunDB(db *bun.DB) Option {
	return func(c *Container) {
		c.bunDB = db
	}
}

// WithCache wraps the report store repository with the supplied cache service.
func WithCache(service repocache.CacheService, serializer repocache.KeySerializer) Option {
	return func(c *Container) {
		c.cacheService = service
		c.keySerializer = serializer
	}
}

// WithLinkResolver overrides the inbound link resolver binding.
func WithLinkResolver(resolver links.Resolver) Option {
	return func(c *Container) {
		c.resolver = resolver
	}
}

// WithCleanupService overrides the default cleanup service binding.
func WithCleanupService(svc cleanup.Service) Option {
	return func(c *Container) {
		c.cleanupSvc = svc
	}
}

// WithPublishService overrides the default publish service binding.
func WithPublishService(svc publish.Service) Option {
	return func(c *Container) {
		c.publishSvc = svc
	}
}

// WithPromoteService overrides the default promotion service binding.
func WithPromoteService(svc promote.Service) Option {
	return func(c *Container) {
		c.promoteSvc = svc
	}
}

// WithReportStore overrides the audit report store binding.
func WithReportStore(store report.Store) Option {
	return func(c *Container) {
		c.store = store
	}
}

// NewContainer creates a container with the provided configuration.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{Config: cfg}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.configureLogging(); err != nil {
		return nil, err
	}
	if err := c.configureGraph(); err != nil {
		return nil, err
	}
	c.configureRunner()
	if err := c.configureRules(); err != nil {
		return nil, err
	}
	if err := c.configureReportStore(); err != nil {
		c.Close()
		return nil, err
	}
	c.configureServices()

	return c, nil
}

func (c *Container) configureLogging() error {
	if c.loggerProvider != nil || !c.Config.Features.Logger {
		return nil
	}

	logCfg := c.Config.Logging
	format := logCfg.Format
	if normalize(logCfg.Provider) == "console" && strings.TrimSpace(format) == "" {
		format = "console"
	}

	provider, err := gologger.NewProvider(gologger.Config{
		Level:     logCfg.Level,
		Format:    format,
		AddSource: logCfg.AddSource,
		Focus:     logCfg.Focus,
	})
	if err != nil {
		return err
	}

	c.loggerProvider = provider
	return nil
}

func (c *Container) configureGraph() error {
	memory := normalize(c.Config.Graph.Kind) == runtimeconfig.GraphKindMemory

	if c.client == nil {
		if memory {
			c.client = graph.NewMemory()
		} else {
			client, err := remote.New(remote.Config{
				BaseURL:     c.Config.Graph.BaseURL,
				Space:       c.Config.Graph.Space,
				Environment: c.Config.Environment,
				Token:       c.Config.Graph.Token,
			}, remote.WithLogger(logging.RemoteLogger(c.loggerProvider)))
			if err != nil {
				return err
			}
			c.client = client
		}
	}

	if c.clients == nil {
		if memory {
			c.clients = c.memoryClientFactory()
		} else {
			c.clients = c.remoteClientFactory()
		}
	}

	return nil
}

// memoryClientFactory hands out one in-memory graph per environment. The
// configured environment maps onto the container's primary client so
// promotions observe the same state the cleanup services do.
func (c *Container) memoryClientFactory() promote.ClientFactory {
	var mu sync.Mutex
	graphs := map[string]graph.Client{}

	return func(environment string) (graph.Client, error) {
		environment = strings.TrimSpace(environment)
		if environment == "" {
			return nil, ErrEnvironmentRequired
		}
		if strings.EqualFold(environment, c.Config.Environment) {
			return c.client, nil
		}

		mu.Lock()
		defer mu.Unlock()
		if client, ok := graphs[environment]; ok {
			return client, nil
		}
		client := graph.NewMemory()
		graphs[environment] = client
		return client, nil
	}
}

func (c *Container) remoteClientFactory() promote.ClientFactory {
	graphCfg := c.Config.Graph
	logger := logging.RemoteLogger(c.loggerProvider)

	var mu sync.Mutex
	clients := map[string]graph.Client{}

	return func(environment string) (graph.Client, error) {
		environment = strings.TrimSpace(environment)
		if environment == "" {
			return nil, ErrEnvironmentRequired
		}
		if strings.EqualFold(environment, c.Config.Environment) && c.client != nil {
			return c.client, nil
		}

		mu.Lock()
		defer mu.Unlock()
		if client, ok := clients[environment]; ok {
			return client, nil
		}
		client, err := remote.New(remote.Config{
			BaseURL:     graphCfg.BaseURL,
			Space:       graphCfg.Space,
			Environment: environment,
			Token:       graphCfg.Token,
		}, remote.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		clients[environment] = client
		return client, nil
	}
}

func (c *Container) configureRunner() {
	if c.runner != nil {
		return
	}
	c.runner = retry.NewRunner(
		c.Config.Retry.RunnerConfig(),
		retry.WithLogger(logging.GraphLogger(c.loggerProvider)),
	)
}

func (c *Container) configureRules() error {
	if c.rules != nil {
		return nil
	}

	var rules []*policy.DeletionRule
	raw := []byte(c.Config.Rules.Inline)
	if len(raw) == 0 && strings.TrimSpace(c.Config.Rules.Path) != "" {
		data, err := os.ReadFile(c.Config.Rules.Path)
		if err != nil {
			return fmt.Errorf("di: read rules document: %w", err)
		}
		raw = data
	}
	if len(raw) > 0 {
		parsed, err := policy.ParseRules(raw)
		if err != nil {
			return fmt.Errorf("di: load rules document: %w", err)
		}
		rules = parsed
	}

	c.rules = policy.NewRuleSet(rules,
		policy.WithLogger(logging.PolicyLogger(c.loggerProvider)),
		policy.WithTreatIncompleteLinksAsEmpty(c.Config.Cleanup.TreatIncompleteLinksAsEmpty),
	)
	return nil
}

func (c *Container) configureCacheDefaults() {
	if c.cacheService != nil && c.keySerializer == nil {
		c.keySerializer = repocache.NewDefaultKeySerializer()
	}
}

func (c *Container) configureServices() {
	if c.resolver == nil {
		c.resolver = links.NewResolver(c.client, c.runner,
			links.WithLogger(logging.LinksLogger(c.loggerProvider)),
			links.WithPageSize(c.Config.Cleanup.PageSize),
		)
	}

	if c.cleanupSvc == nil {
		c.cleanupSvc = cleanup.NewService(c.client, c.runner, c.rules,
			c.cleanupOptions(c.Config.Cleanup.DryRun)...)
	}
	if c.previewSvc == nil {
		c.previewSvc = cleanup.NewService(c.client, c.runner, c.rules,
			c.cleanupOptions(true)...)
	}

	if c.publishSvc == nil && c.Config.Features.Publishing {
		c.publishSvc = publish.NewService(c.client, c.runner,
			publish.WithLogger(logging.PublishLogger(c.loggerProvider)),
			publish.WithPageSize(c.Config.Cleanup.PageSize),
		)
	}

	if c.promoteSvc == nil && c.Config.Features.Promotion {
		c.promoteSvc = promote.NewService(c.clients, c.runner,
			promote.WithLogger(logging.PromoteLogger(c.loggerProvider)),
			promote.WithPageSize(c.Config.Cleanup.PageSize),
		)
	}
}

func (c *Container) cleanupOptions(dryRun bool) []cleanup.ServiceOption {
	return []cleanup.ServiceOption{
		cleanup.WithLogger(logging.CleanupLogger(c.loggerProvider)),
		cleanup.WithResolver(c.resolver),
		cleanup.WithMaxDeletionsPerRun(c.Config.Cleanup.MaxDeletionsPerRun),
		cleanup.WithBatchSize(c.Config.Cleanup.BatchSize),
		cleanup.WithPageSize(c.Config.Cleanup.PageSize),
		cleanup.WithDryRun(dryRun),
	}
}

// LoggerProvider exposes the configured logging provider. It is nil when the
// logger feature is off and no override was supplied.
func (c *Container) LoggerProvider() interfaces.LoggerProvider {
	return c.loggerProvider
}

// GraphClient exposes the client bound to the configured environment.
func (c *Container) GraphClient() graph.Client {
	return c.client
}

// ClientFactory exposes the per-environment client factory used by promotions.
func (c *Container) ClientFactory() promote.ClientFactory {
	return c.clients
}

// Runner exposes the shared retry runner.
func (c *Container) Runner() *retry.Runner {
	return c.runner
}

// Rules exposes the compiled deletion rule set.
func (c *Container) Rules() *policy.RuleSet {
	return c.rules
}

// LinkResolver exposes the inbound link resolver.
func (c *Container) LinkResolver() links.Resolver {
	return c.resolver
}

// CleanupService returns the sweep orchestrator honouring the configured
// dry-run setting.
func (c *Container) CleanupService() cleanup.Service {
	return c.cleanupSvc
}

// PreviewService returns a cleanup service pinned to dry-run mode.
func (c *Container) PreviewService() cleanup.Service {
	return c.previewSvc
}

// PublishService returns the bulk publish service, nil when publishing is
// disabled.
func (c *Container) PublishService() publish.Service {
	return c.publishSvc
}

// PromoteService returns the promotion service, nil when promotion is
// disabled.
func (c *Container) PromoteService() promote.Service {
	return c.promoteSvc
}

// ReportStore returns the audit report store, nil when reports are disabled.
func (c *Container) ReportStore() report.Store {
	return c.store
}

// DB exposes the report database when one is configured.
func (c *Container) DB() *bun.DB {
	return c.bunDB
}

// Close releases resources the container opened itself, currently the report
// database when it was built from configuration.
func (c *Container) Close() error {
	if c.ownsDB && c.bunDB != nil {
		err := c.bunDB.Close()
		c.bunDB = nil
		c.ownsDB = false
		return err
	}
	return nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
