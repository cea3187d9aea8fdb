// Package app wires hotcalc's components together and runs them.
package app

import (
	"context"
	"errors"
	"io"
	"os"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/hotcalc/internal/command"
	"github.com/dshills/hotcalc/internal/config"
	"github.com/dshills/hotcalc/internal/logging"
	"github.com/dshills/hotcalc/internal/metrics"
	"github.com/dshills/hotcalc/internal/plugin"
	"github.com/dshills/hotcalc/internal/repl"
	"github.com/dshills/hotcalc/internal/watcher"
)

// Options configures the application.
type Options struct {
	// Config holds the resolved settings. Nil means config.Default().
	Config *config.Config

	// Stdin feeds the REPL. Nil means os.Stdin.
	Stdin io.Reader

	// Stdout receives calculator output. Nil means os.Stdout.
	Stdout io.Writer

	// LogOutput receives logs. Nil means os.Stderr.
	LogOutput io.Writer
}

// Application owns the command registry, the plugin manager and the REPL.
type Application struct {
	cfg *config.Config
	log *logrus.Logger

	registry   *command.Registry
	loader     *plugin.Loader
	manager    *plugin.Manager
	controller *repl.Controller

	promRegistry *prometheus.Registry
	metrics      *metrics.Metrics

	stdin  io.Reader
	stdout io.Writer

	running atomic.Bool
}

// New builds every component. Nothing touches the plugin directory until
// Run.
func New(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}

	log, err := logging.New(cfg.Logging, opts.LogOutput)
	if err != nil {
		return nil, &InitError{Component: "logging", Err: err}
	}

	app := &Application{
		cfg:          cfg,
		log:          log,
		registry:     command.NewDefaultRegistry(),
		promRegistry: prometheus.NewRegistry(),
		stdin:        opts.Stdin,
		stdout:       opts.Stdout,
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}

	cache, err := plugin.NewChunkCache(cfg.Plugins.CacheSize)
	if err != nil {
		return nil, &InitError{Component: "chunk cache", Err: err}
	}

	app.loader = plugin.NewLoader(cfg.Plugins.Dir, plugin.WithExtension(cfg.Plugins.Extension))
	validator := plugin.NewValidator(app.loader,
		plugin.WithChunkCache(cache),
		plugin.WithCallTimeout(cfg.Plugins.ExecTimeout.Std()),
		plugin.WithValidatorLogger(log),
	)
	app.manager = plugin.NewManager(app.registry, validator, plugin.ManagerConfig{
		AllowShadowing: cfg.Plugins.AllowShadowing,
	}, log)

	app.metrics = metrics.NewMetrics(app.promRegistry)
	app.manager.Subscribe(app.metrics.ObservePluginEvent)
	app.registry.OnChange(func() {
		app.metrics.ObserveRegistry(app.registry.List())
	})
	app.metrics.ObserveRegistry(app.registry.List())

	app.controller = repl.NewController(app.registry,
		repl.WithLogger(log),
		repl.WithObserver(app.metrics),
	)

	return app, nil
}

// Registry returns the command registry.
func (app *Application) Registry() *command.Registry {
	return app.registry
}

// Manager returns the plugin manager.
func (app *Application) Manager() *plugin.Manager {
	return app.manager
}

// Logger returns the application logger.
func (app *Application) Logger() *logrus.Logger {
	return app.log
}

// PrometheusRegistry returns the registry metrics are collected in.
func (app *Application) PrometheusRegistry() *prometheus.Registry {
	return app.promRegistry
}

// Run loads the plugin directory, starts hot reloading and runs the REPL
// until it ends or ctx is cancelled. The watcher is released before Run
// returns. A loader fault during the initial scan or while reloading is
// returned; ending the REPL is not an error.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if err := os.MkdirAll(app.cfg.Plugins.Dir, 0o755); err != nil {
		return &InitError{Component: "plugin directory", Err: err}
	}

	// Watch before the initial scan so no change is missed in between.
	w, err := app.acquireWatcher()
	if err != nil {
		return &InitError{Component: "watcher", Err: err}
	}
	defer func() {
		if err := w.Close(); err != nil {
			app.log.WithError(err).Warn("Closing watcher")
		}
	}()

	if err := app.manager.LoadAll(ctx); err != nil {
		return err
	}
	app.log.Infof("Watching %s for plugins", app.loader.Dir())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	dispatcher := watcher.NewDispatcher()
	dispatcher.OnEvent(app.manager.WatchHandler(gctx))
	dispatcher.OnError(func(err error) {
		app.log.WithError(err).Warn("Watcher error")
	})
	g.Go(func() error {
		return dispatcher.Run(gctx, w)
	})

	if addr := app.cfg.Metrics.Addr; addr != "" {
		server := metrics.NewServer(addr, app.promRegistry, app.log)
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	replErr := app.controller.Run(gctx, app.stdin, app.stdout)
	cancel()
	return errors.Join(replErr, g.Wait())
}

// acquireWatcher starts watching the plugin directory recursively.
func (app *Application) acquireWatcher() (watcher.Watcher, error) {
	fsw, err := watcher.NewFSNotifyWatcher(
		watcher.WithPatterns(app.loader.Pattern()),
	)
	if err != nil {
		return nil, err
	}

	var w watcher.Watcher = fsw
	if d := app.cfg.Plugins.Debounce.Std(); d > 0 {
		w = watcher.NewDebouncedWatcher(fsw, d)
	}

	if err := w.WatchRecursive(app.cfg.Plugins.Dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

// Close releases every plugin's Lua state.
func (app *Application) Close() error {
	return app.manager.Close()
}
