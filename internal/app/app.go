// Package app implements the application layer for mono.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/mono/internal/adapters/cache"
	"go.trai.ch/mono/internal/adapters/config"
	"go.trai.ch/mono/internal/adapters/detector"
	"go.trai.ch/mono/internal/adapters/linear"
	"go.trai.ch/mono/internal/adapters/telemetry"
	"go.trai.ch/mono/internal/adapters/tui"
	"go.trai.ch/mono/internal/adapters/watcher"
	"go.trai.ch/mono/internal/core/domain"
	"go.trai.ch/mono/internal/core/ports"
	"go.trai.ch/mono/internal/engine/planner"
	"go.trai.ch/mono/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	loader        ports.WorkspaceLoader
	executor      ports.Executor
	logger        ports.Logger
	fingerprinter ports.Fingerprinter
	resolver      ports.InputResolver
	watcher       ports.Watcher

	out         io.Writer
	teaOptions  []tea.ProgramOption
	disableTick bool
}

// New creates a new App instance.
func New(
	loader ports.WorkspaceLoader,
	executor ports.Executor,
	log ports.Logger,
	fingerprinter ports.Fingerprinter,
	resolver ports.InputResolver,
	watch ports.Watcher,
) *App {
	return &App{
		loader:        loader,
		executor:      executor,
		logger:        log,
		fingerprinter: fingerprinter,
		resolver:      resolver,
		watcher:       watch,
		out:           os.Stdout,
	}
}

// WithTeaOptions adds bubbletea program options to the App.
// This is primarily used for testing to disable input/output.
func (a *App) WithTeaOptions(opts ...tea.ProgramOption) *App {
	a.teaOptions = append(a.teaOptions, opts...)
	return a
}

// WithDisableTick disables the TUI tick loop.
// This is primarily used for testing with synctest to avoid goroutine deadlocks.
func (a *App) WithDisableTick() *App {
	a.disableTick = true
	return a
}

// WithOutput redirects the run summary, for tests.
func (a *App) WithOutput(w io.Writer) *App {
	a.out = w
	return a
}

// RunOptions configuration for the Run method.
type RunOptions struct {
	Filter          []string
	Parallelism     int
	NoCache         bool
	ContinueOnError bool
	OutputMode      string
	Watch           bool
}

// Run executes the requested tasks across the workspace. In watch mode it
// keeps rerunning them on debounced file changes until the context is
// cancelled.
func (a *App) Run(ctx context.Context, taskNames []string, opts RunOptions) error {
	if len(taskNames) == 0 {
		return domain.ErrNoTasksRequested
	}

	if opts.Watch {
		return a.watch(ctx, taskNames, opts)
	}

	return a.runOnce(ctx, taskNames, opts)
}

//nolint:cyclop // orchestration function
func (a *App) runOnce(ctx context.Context, taskNames []string, opts RunOptions) error {
	started := time.Now()

	// 1. Load the workspace and plan the graph
	ws, err := a.loader.Load(".")
	if err != nil {
		return zerr.Wrap(err, "failed to load workspace")
	}

	graph, err := planner.New(a.logger).Plan(ws, taskNames, opts.Filter)
	if err != nil {
		return err
	}

	// 2. Initialize Renderer
	// Detect environment and resolve output mode
	autoMode := detector.DetectEnvironment()
	mode := detector.ResolveMode(autoMode, opts.OutputMode)

	var renderer ports.Renderer
	if mode == detector.ModeTUI {
		model := tui.NewModel(os.Stderr)
		if a.disableTick {
			model = model.WithDisableTick()
		}
		optsTea := append([]tea.ProgramOption{tea.WithContext(ctx)}, a.teaOptions...)
		renderer = tui.NewRenderer(model, optsTea...)
	} else {
		renderer = linear.NewRenderer(os.Stdout, os.Stderr)
	}

	// 3. Initialize Telemetry
	// Create a bridge that sends OTel spans to the renderer.
	bridge := telemetry.NewBridge(renderer)

	// Configure the global OTel SDK to use our bridge for spans.
	// This ensures that when OTelTracer uses otel.Tracer(), it uses a
	// provider that forwards events to our bridge.
	setupOTel(bridge)

	// Create and configure the OTel Tracer adapter.
	// We inject the renderer so it can stream logs directly via the batcher.
	tracer := telemetry.NewOTelTracer("mono").WithRenderer(renderer)

	// 4. Build the cache store from the workspace configuration
	store, err := a.buildStore(ws.Root())
	if err != nil {
		return err
	}

	// 5. Initialize Scheduler
	sched := scheduler.NewScheduler(
		a.executor,
		store,
		a.fingerprinter,
		a.resolver,
		tracer,
		a.logger,
	)

	// 6. Run Renderer and Scheduler concurrently
	g, gctx := errgroup.WithContext(ctx)

	// Renderer Routine
	g.Go(func() error {
		if err := renderer.Start(gctx); err != nil {
			return err
		}
		// Wait blocks until the renderer has terminated.
		return renderer.Wait()
	})

	// Scheduler Routine
	var result *domain.RunResult
	g.Go(func() error {
		defer func() {
			// Handle panic recovery for the scheduler goroutine
			if r := recover(); r != nil {
				// Print panic info before renderer shutdown
				fmt.Fprintf(os.Stderr, "Scheduler panic: %v\n", r)
			}
			// Ensure renderer stops when scheduler finishes.
			_ = renderer.Stop()
		}()

		var runErr error
		result, runErr = sched.Run(gctx, graph, scheduler.Options{
			Targets:         taskNames,
			Parallelism:     opts.Parallelism,
			NoCache:         opts.NoCache,
			ContinueOnError: opts.ContinueOnError,
		})
		return runErr
	})

	if err := g.Wait(); err != nil {
		return err
	}

	// 7. Report
	writeSummary(a.out, result, time.Since(started))
	if !result.OK() {
		return domain.ErrRunFailed
	}
	return nil
}

// watch runs the targets once, then reruns them whenever the workspace
// changes. Watch reruns share stdout, so the interactive renderer is not
// used here.
func (a *App) watch(ctx context.Context, taskNames []string, opts RunOptions) error {
	opts.Watch = false
	opts.OutputMode = "linear"

	root, err := a.loader.DiscoverRoot(".")
	if err != nil {
		return zerr.Wrap(err, "failed to locate workspace")
	}

	if err := a.runOnce(ctx, taskNames, opts); err != nil && !errors.Is(err, domain.ErrRunFailed) {
		return err
	}

	if err := a.watcher.Start(ctx, root); err != nil {
		return zerr.Wrap(err, "failed to start file watcher")
	}
	defer func() {
		_ = a.watcher.Stop()
	}()

	// The reruns channel holds at most one pending rerun; changes arriving
	// while a run is active collapse into it.
	reruns := make(chan int, 1)
	debouncer := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func(paths []string) {
		a.logger.Info(fmt.Sprintf("%d path(s) changed", len(paths)))
		select {
		case reruns <- len(paths):
		default:
		}
	})
	defer debouncer.Flush()

	go func() {
		for event := range a.watcher.Events() {
			debouncer.Add(event.Path)
		}
	}()

	a.logger.Info("watching for changes, press ctrl+c to exit")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reruns:
			if err := a.runOnce(ctx, taskNames, opts); err != nil && !errors.Is(err, domain.ErrRunFailed) {
				return err
			}
		}
	}
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	// All also removes the rest of the state directory, not just the cache.
	All bool
}

// Clean removes the local cache store for the current workspace.
func (a *App) Clean(_ context.Context, options CleanOptions) error {
	root, err := a.loader.DiscoverRoot(".")
	if err != nil {
		return zerr.Wrap(err, "failed to locate workspace")
	}

	path := domain.DefaultCachePath(root)
	if options.All {
		path = domain.DefaultStatePath(root)
	}

	a.logger.Info(fmt.Sprintf("removing %s...", path))
	if err := os.RemoveAll(path); err != nil {
		return zerr.Wrap(err, "failed to remove cache store")
	}
	a.logger.Info("clean complete")
	return nil
}

// buildStore assembles the cache store for the workspace: always the local
// filesystem store, tiered with the remote HTTP store when the workspace
// file configures one.
func (a *App) buildStore(root string) (ports.CacheStore, error) {
	local := cache.NewLocalStore(domain.DefaultCachePath(root))

	wf, err := config.ReadWorkfile(root)
	if err != nil {
		return nil, err
	}
	if wf.RemoteCache.URL == "" {
		return local, nil
	}

	token := wf.RemoteCache.Token
	if wf.RemoteCache.TokenEnv != "" {
		token = os.Getenv(wf.RemoteCache.TokenEnv)
	}

	remote := cache.NewRemoteStore(wf.RemoteCache.URL, token)
	return cache.NewTieredStore(local, remote, a.logger), nil
}

// setupOTel configures the OpenTelemetry SDK with the renderer bridge.
func setupOTel(bridge *telemetry.Bridge) {
	// Create a new TracerProvider with the bridge as a SpanProcessor.
	// This ensures that all started spans are reported to the renderer.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(bridge),
	)

	// Register it as the global provider.
	otel.SetTracerProvider(tp)
}
