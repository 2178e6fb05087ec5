package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/interpose/pkg/dispatch"
	"mercator-hq/interpose/pkg/recipe"
)

// ClearSource labels cache clears caused by a manifest reload.
const ClearSource = "manifest"

// Observer receives reload events. metrics.Collector implements it.
type Observer interface {
	RecordManifestReload(err error, recipes int)
	RecordCacheClear(source string, removed int)
}

type nopObserver struct{}

func (nopObserver) RecordManifestReload(error, int) {}
func (nopObserver) RecordCacheClear(string, int)    {}

// ManagerConfig contains configuration for a Manager.
type ManagerConfig struct {
	// Path is the manifest file.
	Path string

	// Watch enables Watch.
	Watch bool

	// DebounceInterval is passed to the file watcher.
	DebounceInterval time.Duration

	// Cache is cleared after every successful reload. May be nil.
	Cache *dispatch.Cache

	// Observer receives reload and clear events. May be nil.
	Observer Observer

	// RecipeOptions are applied to every recipe built from the manifest.
	RecipeOptions []recipe.Option
}

// DefaultManagerConfig returns a configuration for path with watching off.
func DefaultManagerConfig(path string) *ManagerConfig {
	return &ManagerConfig{
		Path:             path,
		DebounceInterval: DefaultDebounceInterval,
	}
}

// Manager owns the current recipe set and swaps it atomically on reload.
// Readers never block on a reload.
type Manager struct {
	config   *ManagerConfig
	catalog  *Catalog
	logger   *slog.Logger
	observer Observer

	current  atomic.Pointer[Set]
	reloadMu sync.Mutex

	watchMu     sync.Mutex
	watchCancel context.CancelFunc
}

// NewManager creates a manager. Call Reload to load the manifest.
func NewManager(config *ManagerConfig, catalog *Catalog, logger *slog.Logger) (*Manager, error) {
	if config == nil || config.Path == "" {
		return nil, errors.New("manifest: path is required")
	}
	if catalog == nil {
		return nil, errors.New("manifest: catalog is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	var observer Observer = nopObserver{}
	if config.Observer != nil {
		observer = config.Observer
	}
	return &Manager{
		config:   config,
		catalog:  catalog,
		logger:   logger,
		observer: observer,
	}, nil
}

// Reload loads the manifest and swaps it in. On failure the previous set
// stays current. After a successful swap the previous recipes' type caches
// and the shared dispatch cache are cleared.
func (m *Manager) Reload() error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	start := time.Now()
	set, err := Load(m.config.Path, m.catalog, m.config.RecipeOptions...)
	if err != nil {
		m.observer.RecordManifestReload(err, 0)
		m.logger.Error("manifest reload failed", "path", m.config.Path, "error", err)
		return err
	}
	m.observer.RecordManifestReload(nil, set.Len())

	old := m.current.Swap(set)
	removed := 0
	if old != nil {
		old.ClearTypeCache()
		if m.config.Cache != nil {
			removed = m.config.Cache.Clear()
			m.observer.RecordCacheClear(ClearSource, removed)
		}
	}

	m.logger.Info("manifest loaded",
		"path", m.config.Path,
		"version", set.Version(),
		"recipes", set.Len(),
		"cleared_entries", removed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Current returns the current set, or nil before the first load.
func (m *Manager) Current() *Set { return m.current.Load() }

// Recipe returns the named recipe from the current set.
func (m *Manager) Recipe(name string) (*recipe.Recipe, error) {
	set := m.current.Load()
	if set == nil {
		return nil, ErrNotLoaded
	}
	return set.Recipe(name)
}

// Ready reports ErrNotLoaded until a manifest has loaded. It has the
// signature of a health check.
func (m *Manager) Ready(context.Context) error {
	if m.current.Load() == nil {
		return ErrNotLoaded
	}
	return nil
}

// Watch reloads the manifest whenever the file changes. It blocks until ctx
// is cancelled or Close is called.
func (m *Manager) Watch(ctx context.Context) error {
	if !m.config.Watch {
		return errors.New("manifest watching is not enabled in configuration")
	}

	m.watchMu.Lock()
	if m.watchCancel != nil {
		m.watchMu.Unlock()
		return errors.New("watch already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	m.watchCancel = cancel
	m.watchMu.Unlock()
	defer func() {
		m.watchMu.Lock()
		m.watchCancel = nil
		m.watchMu.Unlock()
		cancel()
	}()

	wcfg := DefaultFileWatcherConfig(m.config.Path)
	wcfg.DebounceInterval = m.config.DebounceInterval
	watcher, err := NewFileWatcher(wcfg, m.logger)
	if err != nil {
		return err
	}

	werr := watcher.Watch(ctx, m.Reload)
	if err := watcher.Stop(); err != nil {
		m.logger.Error("failed to stop manifest watcher", "error", err)
	}
	if werr != nil {
		return fmt.Errorf("manifest watch: %w", werr)
	}
	return nil
}

// Close stops a running Watch.
func (m *Manager) Close() error {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watchCancel != nil {
		m.watchCancel()
		m.watchCancel = nil
	}
	return nil
}
