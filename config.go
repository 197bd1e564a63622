package sweep

import "github.com/goliatone/go-sweep/internal/runtimeconfig"

var (
	ErrGraphKindUnknown             = runtimeconfig.ErrGraphKindUnknown
	ErrGraphSpaceRequired           = runtimeconfig.ErrGraphSpaceRequired
	ErrGraphTokenRequired           = runtimeconfig.ErrGraphTokenRequired
	ErrMaxDeletionsInvalid          = runtimeconfig.ErrMaxDeletionsInvalid
	ErrBatchSizeInvalid             = runtimeconfig.ErrBatchSizeInvalid
	ErrPageSizeInvalid              = runtimeconfig.ErrPageSizeInvalid
	ErrRetryBoundsInvalid           = runtimeconfig.ErrRetryBoundsInvalid
	ErrRulesSourceConflict          = runtimeconfig.ErrRulesSourceConflict
	ErrReportDriverUnknown          = runtimeconfig.ErrReportDriverUnknown
	ErrReportDSNRequired            = runtimeconfig.ErrReportDSNRequired
	ErrReportRetentionInvalid       = runtimeconfig.ErrReportRetentionInvalid
	ErrReportsFeatureRequired       = runtimeconfig.ErrReportsFeatureRequired
	ErrPromotionRequiresPublishing  = runtimeconfig.ErrPromotionRequiresPublishing
	ErrCommandsCronRequiresCommands = runtimeconfig.ErrCommandsCronRequiresCommands
	ErrLoggingProviderRequired      = runtimeconfig.ErrLoggingProviderRequired
	ErrLoggingProviderUnknown       = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid          = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid         = runtimeconfig.ErrLoggingFormatInvalid
)

type (
	Config         = runtimeconfig.Config
	GraphConfig    = runtimeconfig.GraphConfig
	RetryConfig    = runtimeconfig.RetryConfig
	CleanupConfig  = runtimeconfig.CleanupConfig
	RulesConfig    = runtimeconfig.RulesConfig
	ReportConfig   = runtimeconfig.ReportConfig
	LoggingConfig  = runtimeconfig.LoggingConfig
	CommandsConfig = runtimeconfig.CommandsConfig
	Features       = runtimeconfig.Features
)

// Graph backend kinds accepted by Config.Graph.Kind.
const (
	GraphKindRemote = runtimeconfig.GraphKindRemote
	GraphKindMemory = runtimeconfig.GraphKindMemory
)

// Report store drivers accepted by Config.Report.Driver.
const (
	ReportDriverSQLite   = runtimeconfig.ReportDriverSQLite
	ReportDriverPostgres = runtimeconfig.ReportDriverPostgres
	ReportDriverMemory   = runtimeconfig.ReportDriverMemory
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}
