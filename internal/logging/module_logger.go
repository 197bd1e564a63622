package logging

import (
	"context"
	"strings"

	"github.com/goliatone/go-sweep/pkg/interfaces"
)

const (
	rootModule    = "sweep"
	graphModule   = "sweep.graph"
	policyModule  = "sweep.policy"
	linksModule   = "sweep.links"
	cleanupModule = "sweep.cleanup"
	publishModule = "sweep.publish"
	promoteModule = "sweep.promote"
	reportModule  = "sweep.report"
	remoteModule  = "sweep.remote"
)

const (
	fieldEnvironment = "environment"
	fieldRunID       = "run_id"
	fieldNodeID      = "node_id"
	fieldContentType = "content_type"
)

// ModuleLogger returns a module-scoped logger, defaulting to a no-op
// implementation when no provider is supplied. The returned logger attaches
// the module identifier as structured context so downstream entries can be
// filtered predictably.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	if fieldsLogger, ok := logger.(interfaces.FieldsLogger); ok {
		return fieldsLogger.WithFields(map[string]any{
			"module": module,
		})
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// GraphLogger returns the logger namespace reserved for graph clients.
func GraphLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, graphModule)
}

// PolicyLogger returns the logger namespace reserved for rule evaluation.
func PolicyLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, policyModule)
}

// LinksLogger returns the logger namespace reserved for link resolution.
func LinksLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, linksModule)
}

// CleanupLogger returns the logger namespace reserved for deletion runs.
func CleanupLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, cleanupModule)
}

// PublishLogger returns the logger namespace reserved for publish batches.
func PublishLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, publishModule)
}

// PromoteLogger returns the logger namespace reserved for promotions.
func PromoteLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, promoteModule)
}

// ReportLogger returns the logger namespace reserved for report persistence.
func ReportLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, reportModule)
}

// RemoteLogger returns the logger namespace reserved for the HTTP transport.
func RemoteLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, remoteModule)
}

// WithRunContext enriches the provided logger with common run fields such as
// environment and run identifier. Empty values are ignored.
func WithRunContext(logger interfaces.Logger, environment, runID string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(environment); trimmed != "" {
		fields[fieldEnvironment] = trimmed
	}
	if trimmed := strings.TrimSpace(runID); trimmed != "" {
		fields[fieldRunID] = trimmed
	}
	return WithFields(logger, fields)
}

// WithNodeContext enriches the provided logger with the node identifier and
// content type being processed. Empty values are ignored.
func WithNodeContext(logger interfaces.Logger, nodeID, contentType string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(nodeID); trimmed != "" {
		fields[fieldNodeID] = trimmed
	}
	if trimmed := strings.TrimSpace(contentType); trimmed != "" {
		fields[fieldContentType] = trimmed
	}
	return WithFields(logger, fields)
}

// NoOp returns a logger that drops every log entry. It satisfies the Logger
// contract so services can safely operate when logging is disabled.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger {
	return n
}

func (n noopLogger) WithContext(context.Context) interfaces.Logger {
	return n
}
