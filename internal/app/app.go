package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/conformgo/internal/ctxlog"
	"github.com/vk/conformgo/internal/manifest"
	"github.com/vk/conformgo/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	config   *Config
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and registry,
// manifests loaded and validated. Results are written to outW, logs to
// logW.
func NewApp(outW, logW io.Writer, config *Config) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if err := manifest.Load(ctx, reg, config.SpecsPath); err != nil {
		// A failure to load the manifest set is a fatal startup error.
		panic(fmt.Errorf("failed to load spec manifests: %w", err))
	}
	logger.Debug("Spec manifests loaded into registry.", "specs", len(reg.SpecNames()))

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		config:   config,
	}
}

// Registry returns the application's registry. This is primarily for
// testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Run executes the selected mode based on the provided configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	switch {
	case a.config.List:
		return a.list()
	case a.config.Port > 0:
		return a.serveHTTP(ctx)
	default:
		return a.check(ctx)
	}
}

// list prints the registered spec names, speced functions and builtin
// predicates.
func (a *App) list() error {
	fmt.Fprintln(a.outW, "specs:")
	for _, name := range a.registry.SpecNames() {
		fmt.Fprintf(a.outW, "  %s\n", name)
	}
	if fns := a.registry.SpecedFnNames(); len(fns) > 0 {
		fmt.Fprintln(a.outW, "fn specs:")
		for _, name := range fns {
			fmt.Fprintf(a.outW, "  %s\n", name)
		}
	}
	fmt.Fprintln(a.outW, "builtin predicates:")
	for _, name := range manifest.Builtins() {
		fmt.Fprintf(a.outW, "  %s\n", name)
	}
	return nil
}
