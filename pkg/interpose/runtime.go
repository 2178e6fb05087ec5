package interpose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/interpose/pkg/config"
	"mercator-hq/interpose/pkg/dispatch"
	"mercator-hq/interpose/pkg/maintenance"
	"mercator-hq/interpose/pkg/manifest"
	"mercator-hq/interpose/pkg/manifest/gitsource"
	"mercator-hq/interpose/pkg/recipe"
	"mercator-hq/interpose/pkg/state/sqlstate"
	"mercator-hq/interpose/pkg/stub"
	"mercator-hq/interpose/pkg/telemetry/health"
	"mercator-hq/interpose/pkg/telemetry/logging"
	"mercator-hq/interpose/pkg/telemetry/metrics"
	"mercator-hq/interpose/pkg/telemetry/tracing"
)

// ClearSourceManual labels cache clears requested through the Runtime.
const ClearSourceManual = "manual"

// Health check names registered by the Runtime.
const (
	CheckManifest = "manifest"
	CheckState    = "state"
	CheckGit      = "git"
)

// Runtime is the composition root. It owns the process-wide dispatch cache
// and the telemetry every dispatcher reports to, and builds receivers from
// manifest recipes.
type Runtime struct {
	config    *config.Config
	logger    *slog.Logger
	cache     *dispatch.Cache
	catalog   *manifest.Catalog
	stubs     *stub.Catalog
	collector *metrics.Collector
	tracer    *tracing.Tracer
	health    *health.Checker

	mu         sync.Mutex
	manager    *manifest.Manager
	store      *sqlstate.Store
	repo       *gitsource.Repository
	poller     *gitsource.Poller
	stopPoller context.CancelFunc
}

type options struct {
	logger        *slog.Logger
	registry      *prometheus.Registry
	tracerOptions []tracing.Option
}

// Option configures New.
type Option func(*options)

// WithLogger uses logger instead of building one from the logging config.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegistry registers metrics into registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithTracerOptions passes options to the tracer provider setup.
func WithTracerOptions(opts ...tracing.Option) Option {
	return func(o *options) { o.tracerOptions = append(o.tracerOptions, opts...) }
}

// New builds a Runtime from cfg. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:      cfg.Telemetry.Logging.Level,
			Format:     cfg.Telemetry.Logging.Format,
			AddSource:  cfg.Telemetry.Logging.AddSource,
			RedactKeys: cfg.Telemetry.Logging.RedactKeys,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, o.tracerOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, o.registry)
	var observer dispatch.Observer
	if cfg.Dispatch.CacheMetrics {
		observer = collector
	}

	catalog := manifest.NewCatalog()
	if err := manifest.RegisterStandardFeatures(catalog, logger, tracer.Provider()); err != nil {
		return nil, err
	}

	rt := &Runtime{
		config:    cfg,
		logger:    logger,
		cache:     dispatch.NewCache(observer),
		catalog:   catalog,
		stubs:     stub.NewCatalog(),
		collector: collector,
		tracer:    tracer,
		health:    health.New(0),
	}
	logger.Debug("runtime created",
		"builtins", cfg.Dispatch.Builtins,
		"metrics", cfg.Telemetry.Metrics.Enabled,
		"tracing", tracer.Enabled(),
	)
	return rt, nil
}

// RegisterContract makes contract available to manifests under name.
func (rt *Runtime) RegisterContract(name string, contract reflect.Type) error {
	return rt.catalog.RegisterContract(name, contract)
}

// RegisterDefault registers a default method body for stubs.
func (rt *Runtime) RegisterDefault(contract reflect.Type, method string, fn stub.DefaultFunc) error {
	return rt.stubs.RegisterDefault(contract, method, fn)
}

// LoadManifest loads the configured manifest and registers its readiness
// check. With a Git source the repository is cloned first and the manifest
// is read from the clone. Later calls reload it.
func (rt *Runtime) LoadManifest() error {
	rt.mu.Lock()
	m := rt.manager
	if m == nil {
		var err error
		m, err = rt.newManager()
		if err != nil {
			rt.mu.Unlock()
			return err
		}
		rt.manager = m
		rt.health.RegisterCheck(CheckManifest, m.Ready)
	}
	rt.mu.Unlock()
	return m.Reload()
}

// newManager must be called with rt.mu held.
func (rt *Runtime) newManager() (*manifest.Manager, error) {
	mc := rt.config.Manifest
	path := mc.Path
	if mc.Git.Repository != "" {
		repo, err := gitsource.NewRepository(&mc.Git)
		if err != nil {
			return nil, fmt.Errorf("manifest git source: %w", err)
		}
		if err := repo.Clone(context.Background()); err != nil {
			return nil, fmt.Errorf("manifest git source: %w", err)
		}
		head, err := repo.Head()
		if err != nil {
			return nil, fmt.Errorf("manifest git source: %w", err)
		}
		rt.logger.Info("manifest repository cloned",
			"repository", repo.URL(),
			"branch", mc.Git.Branch,
			"commit", head.SHA,
		)
		rt.repo = repo
		rt.health.RegisterCheck(CheckGit, func(context.Context) error {
			_, err := repo.Head()
			return err
		})
		path = repo.ManifestPath()
	}
	if path == "" {
		return nil, errors.New("no manifest path configured")
	}

	return manifest.NewManager(&manifest.ManagerConfig{
		Path:             path,
		Watch:            mc.Watch && rt.repo == nil,
		DebounceInterval: mc.DebounceInterval,
		Cache:            rt.cache,
		Observer:         rt.collector,
		RecipeOptions: []recipe.Option{
			recipe.WithObserver(rt.collector),
			recipe.WithLogger(rt.logger),
		},
	}, rt.catalog, rt.logger)
}

// OpenState opens the configured SQLite state store and registers its
// readiness check. Later calls return the same store.
func (rt *Runtime) OpenState() (*sqlstate.Store, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.store != nil {
		return rt.store, nil
	}
	if rt.config.State.Path == "" {
		return nil, errors.New("no state path configured")
	}
	store, err := sqlstate.Open(sqlstate.Config{
		Path:        rt.config.State.Path,
		Driver:      rt.config.State.Driver,
		BusyTimeout: rt.config.State.BusyTimeout,
		WALMode:     rt.config.State.WALMode,
		Logger:      rt.logger,
	})
	if err != nil {
		return nil, err
	}
	rt.store = store
	rt.health.RegisterCheck(CheckState, store.Ping)
	return store, nil
}

// Recipe returns a recipe from the loaded manifest.
func (rt *Runtime) Recipe(name string) (*recipe.Recipe, error) {
	rt.mu.Lock()
	m := rt.manager
	rt.mu.Unlock()
	if m == nil {
		return nil, manifest.ErrNotLoaded
	}
	return m.Recipe(name)
}

// Manifest returns the loaded manifest set, or nil before LoadManifest
// succeeds.
func (rt *Runtime) Manifest() *manifest.Set {
	rt.mu.Lock()
	m := rt.manager
	rt.mu.Unlock()
	if m == nil {
		return nil
	}
	return m.Current()
}

// DispatcherConfig returns a dispatcher configuration sharing the runtime's
// cache and logger.
func (rt *Runtime) DispatcherConfig() *dispatch.DispatcherConfig {
	return dispatch.DefaultDispatcherConfig().
		WithCache(rt.cache).
		WithBuiltins(rt.config.Dispatch.Builtins).
		WithLogger(rt.logger)
}

// NewDispatcher verifies state against r and builds a dispatcher on the
// shared cache.
func (rt *Runtime) NewDispatcher(r *recipe.Recipe, state any) (*dispatch.Dispatcher, error) {
	return r.NewDispatcher(state, rt.DispatcherConfig())
}

// ClearDispatchCache empties the dispatch cache and returns the number of
// entries removed.
func (rt *Runtime) ClearDispatchCache() int {
	removed := rt.cache.Clear()
	rt.collector.RecordCacheClear(ClearSourceManual, removed)
	rt.logger.Debug("dispatch cache cleared", "removed", removed)
	return removed
}

// ClearTypeCache forgets verified state types of the loaded recipes and the
// stub descriptor cache.
func (rt *Runtime) ClearTypeCache() {
	rt.mu.Lock()
	m := rt.manager
	rt.mu.Unlock()
	if m != nil {
		if set := m.Current(); set != nil {
			set.ClearTypeCache()
		}
	}
	rt.stubs.ClearTypeCache()
	rt.logger.Debug("type caches cleared")
}

// Maintenance returns a scheduler for the configured clear schedule. It
// clears the dispatch cache and, when a state store is open, checkpoints it
// and prunes expired properties.
func (rt *Runtime) Maintenance() *maintenance.Scheduler {
	jobs := []maintenance.Job{maintenance.ClearDispatchCache(rt.cache, rt.collector)}
	rt.mu.Lock()
	if rt.store != nil {
		jobs = append(jobs, maintenance.CheckpointState(rt.store))
		if rt.config.State.Retention > 0 {
			jobs = append(jobs, maintenance.PruneState(rt.store, rt.config.State.Retention))
		}
	}
	rt.mu.Unlock()
	return maintenance.NewScheduler(rt.config.Dispatch.ClearSchedule, rt.logger, jobs...)
}

// Watch reloads the manifest on file changes until ctx is cancelled. With
// a Git source it polls the repository instead.
func (rt *Runtime) Watch(ctx context.Context) error {
	rt.mu.Lock()
	m, repo := rt.manager, rt.repo
	if m == nil {
		rt.mu.Unlock()
		return manifest.ErrNotLoaded
	}
	if repo == nil {
		rt.mu.Unlock()
		return m.Watch(ctx)
	}
	if !rt.config.Manifest.Watch {
		rt.mu.Unlock()
		return errors.New("manifest watching is not enabled in configuration")
	}
	if rt.stopPoller != nil {
		rt.mu.Unlock()
		return errors.New("watch already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	poller := gitsource.NewPoller(repo, rt.config.Manifest.Git.PollInterval, m.Reload, rt.logger)
	rt.poller, rt.stopPoller = poller, cancel
	rt.mu.Unlock()

	defer func() {
		rt.mu.Lock()
		rt.stopPoller = nil
		rt.mu.Unlock()
		cancel()
	}()
	return poller.Run(ctx)
}

// GitStats returns the counters of the manifest repository poller. ok is
// false until Watch has started polling a Git source.
func (rt *Runtime) GitStats() (stats gitsource.PollerStats, ok bool) {
	rt.mu.Lock()
	p := rt.poller
	rt.mu.Unlock()
	if p == nil {
		return gitsource.PollerStats{}, false
	}
	return p.Stats(), true
}

// Config returns the runtime configuration.
func (rt *Runtime) Config() *config.Config { return rt.config }

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// Cache returns the shared dispatch cache.
func (rt *Runtime) Cache() *dispatch.Cache { return rt.cache }

// Catalog returns the manifest catalog.
func (rt *Runtime) Catalog() *manifest.Catalog { return rt.catalog }

// Stubs returns the stub catalog.
func (rt *Runtime) Stubs() *stub.Catalog { return rt.stubs }

// Metrics returns the metrics collector.
func (rt *Runtime) Metrics() *metrics.Collector { return rt.collector }

// Tracer returns the tracer.
func (rt *Runtime) Tracer() *tracing.Tracer { return rt.tracer }

// Health returns the readiness checker.
func (rt *Runtime) Health() *health.Checker { return rt.health }

// Close stops watching, closes the state store and flushes traces.
func (rt *Runtime) Close(ctx context.Context) error {
	rt.mu.Lock()
	m, store := rt.manager, rt.store
	if rt.stopPoller != nil {
		rt.stopPoller()
	}
	rt.mu.Unlock()

	var errs []error
	if m != nil {
		errs = append(errs, m.Close())
	}
	if store != nil {
		errs = append(errs, store.Close())
	}
	errs = append(errs, rt.tracer.Shutdown(ctx))
	return errors.Join(errs...)
}
