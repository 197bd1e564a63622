package commands

import (
	"strings"

	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/pkg/interfaces"
)

const commandModuleRoot = "sweep.commands"

// CommandLogger returns a module-scoped logger for command handlers, enriching
// it with structured fields so every command execution carries its module.
func CommandLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	name := strings.TrimSpace(module)
	if name == "" {
		name = "core"
	}
	logger := logging.ModuleLogger(provider, commandModuleRoot+"."+name)
	return logging.WithFields(logger, map[string]any{
		"component":      "command",
		"command_module": name,
	})
}
