package di

import (
	"testing"

	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/internal/logging/gologger"
	"github.com/goliatone/go-sweep/internal/runtimeconfig"
	"github.com/goliatone/go-sweep/pkg/interfaces"
)

type stubProvider struct{}

func (stubProvider) GetLogger(string) interfaces.Logger {
	return logging.NoOp()
}

func loggingConfig(provider string) runtimeconfig.Config {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Graph.Kind = runtimeconfig.GraphKindMemory
	cfg.Features.Logger = true
	cfg.Logging.Provider = provider
	return cfg
}

func TestContainerBuildsGologgerProvider(t *testing.T) {
	cfg := loggingConfig("gologger")
	cfg.Logging.Format = "json"

	container, err := NewContainer(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := container.loggerProvider.(*gologger.Provider); !ok {
		t.Fatalf("expected gologger provider, got %T", container.loggerProvider)
	}
}

func TestContainerConsoleProviderUsesGologger(t *testing.T) {
	container, err := NewContainer(loggingConfig("console"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := container.loggerProvider.(*gologger.Provider); !ok {
		t.Fatalf("expected gologger provider, got %T", container.loggerProvider)
	}
}

func TestContainerLoggerFeatureOff(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Graph.Kind = runtimeconfig.GraphKindMemory

	container, err := NewContainer(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if container.loggerProvider != nil {
		t.Fatalf("expected nil provider, got %T", container.loggerProvider)
	}
}

func TestContainerLoggerProviderOverride(t *testing.T) {
	override := stubProvider{}

	container, err := NewContainer(loggingConfig("gologger"), WithLoggerProvider(override))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if container.loggerProvider != interfaces.LoggerProvider(override) {
		t.Fatal("expected provider override to be kept")
	}
}
