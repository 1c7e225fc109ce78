package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/eyevinn-osaas/strom-sub001/internal/config"
	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *Config
	registry *registry.Registry
	model    *config.Model
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Configuration errors are fatal and panic.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, converter, err := loader.Load(ctx, cfg.FlowPaths...)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration loaded and translated into unified model.",
		"elements", len(model.Elements), "blocks", len(model.Blocks), "links", len(model.Links))

	reg := registry.New(converter)
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All block modules registered.", "count", len(modules), "types", reg.Types())

	if err := reg.Validate(ctx); err != nil {
		// A mismatch between module code and its parameter struct is a
		// programmer error.
		panic(err)
	}

	return &App{
		outW:     outW,
		logger:   logger,
		cfg:      cfg,
		registry: reg,
		model:    model,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded flow model.
func (a *App) Model() *config.Model {
	return a.model
}
