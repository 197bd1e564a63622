package sweep

import (
	"github.com/goliatone/go-sweep/internal/cleanup"
	"github.com/goliatone/go-sweep/internal/di"
	"github.com/goliatone/go-sweep/internal/graph"
	"github.com/goliatone/go-sweep/internal/links"
	"github.com/goliatone/go-sweep/internal/policy"
	"github.com/goliatone/go-sweep/internal/promote"
	"github.com/goliatone/go-sweep/internal/publish"
	"github.com/goliatone/go-sweep/internal/report"
)

// CleanupService exports the sweep orchestrator contract for consumers of the sweep package.
type CleanupService = cleanup.Service

// PublishService exports the bulk publish service contract.
type PublishService = publish.Service

// PromoteService exports the cross-environment promotion service contract.
type PromoteService = promote.Service

// LinkResolver exports the inbound link resolver contract.
type LinkResolver = links.Resolver

// ReportStore exports the audit report store contract.
type ReportStore = report.Store

// GraphClient exports the content graph client contract.
type GraphClient = graph.Client

// Node exports the content graph node shape.
type Node = graph.Node

// Report exports the sweep run report shape.
type Report = cleanup.Report

// Candidate exports the per-node deletion decision shape.
type Candidate = cleanup.Candidate

// RuleSet exports the compiled deletion policy shape.
type RuleSet = policy.RuleSet

// DeletionRule exports the declarative policy rule shape.
type DeletionRule = policy.DeletionRule

// Command registration surface, re-exported so hosts can wire CLI, dispatcher,
// and cron integrations without reaching into internal packages.
type (
	CommandRegistry     = di.CommandRegistry
	CommandDispatcher   = di.CommandDispatcher
	CommandSubscription = di.CommandSubscription
	CronRegistrar       = di.CronRegistrar
	RegistrationOptions = di.RegistrationOptions
	RegistrationResult  = di.RegistrationResult
)

// Module represents the top level sweep runtime façade.
type Module struct {
	container *di.Container
}

// New constructs a sweep module using the provided configuration and optional DI overrides.
func New(cfg Config, opts ...di.Option) (*Module, error) {
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Container exposes the underlying DI container for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// Cleanup returns the sweep orchestrator honouring the configured dry-run flag.
func (m *Module) Cleanup() CleanupService {
	return m.container.CleanupService()
}

// Preview returns a sweep orchestrator pinned to dry-run mode.
func (m *Module) Preview() CleanupService {
	return m.container.PreviewService()
}

// Publisher returns the bulk publish service, nil when publishing is disabled.
func (m *Module) Publisher() PublishService {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.PublishService()
}

// Promoter returns the promotion service, nil when promotion is disabled.
func (m *Module) Promoter() PromoteService {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.PromoteService()
}

// Links returns the inbound link resolver.
func (m *Module) Links() LinkResolver {
	return m.container.LinkResolver()
}

// Reports returns the audit report store, nil when reports are disabled.
func (m *Module) Reports() ReportStore {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.ReportStore()
}

// Graph returns the client bound to the configured environment.
func (m *Module) Graph() GraphClient {
	return m.container.GraphClient()
}

// Rules returns the compiled deletion policy.
func (m *Module) Rules() *RuleSet {
	return m.container.Rules()
}

// RegisterCommands builds the module's command handlers and registers them
// with the supplied registry, dispatcher, and cron integrations.
func (m *Module) RegisterCommands(opts RegistrationOptions) (*RegistrationResult, error) {
	if m == nil || m.container == nil {
		return &RegistrationResult{}, nil
	}
	return di.RegisterContainerCommands(m.container, opts)
}

// Close releases resources owned by the module, such as a report database
// opened from configuration.
func (m *Module) Close() error {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Close()
}
