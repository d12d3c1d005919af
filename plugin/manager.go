package plugin

import (
	"context"
	"slices"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/rs/zerolog"

	ac "github.com/darkhz/blueapplet/api/appfeatures"
	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/api/errorkinds"
)

// Manager holds the known plugins, and tracks which of them are loaded.
type Manager struct {
	registry *Registry
	logger   zerolog.Logger

	plugins []Plugin
	loaded  []string
	errors  ac.Errors

	mu sync.RWMutex
}

// NewManager returns a new plugin manager which registers plugin handlers
// with the provided registry.
func NewManager(registry *Registry, logger zerolog.Logger) *Manager {
	return &Manager{
		registry: registry,
		logger:   logger.With().Str("component", "plugins").Logger(),
	}
}

// Registry returns the registry that plugins register their handlers with.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Register adds plugins to the list of known plugins. Plugins are loaded
// in the order they were registered.
func (m *Manager) Register(plugins ...Plugin) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range plugins {
		if m.known(p.Name()) != nil {
			continue
		}

		m.plugins = append(m.plugins, p)
	}
}

// LoadAll loads every known plugin that is enabled. The overrides map a
// plugin name to its enabled state, and take precedence over the plugin's
// default. Plugins that fail to load are recorded in the capability
// snapshot's errors.
func (m *Manager) LoadAll(overrides map[string]bool) ac.FeatureSet {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.plugins {
		enabled, ok := overrides[p.Name()]
		if !ok {
			enabled = enabledByDefault(p)
		}

		if !enabled && canUnload(p) {
			continue
		}

		if err := m.load(p.Name(), nil); err != nil {
			m.errors.Append(ac.NewError(p.Name(), err))
			m.logger.Warn().Err(err).Str("plugin", p.Name()).Msg("Plugin could not be loaded")
		}
	}

	return m.capabilities()
}

// UnloadAll unloads every loaded plugin, in the reverse order of loading.
func (m *Manager) UnloadAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range slices.Backward(slices.Clone(m.loaded)) {
		m.unloadPlugin(m.known(name))
	}
}

// SetConfig loads or unloads the named plugin.
func (m *Manager) SetConfig(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.known(name) == nil {
		return fault.Wrap(errorkinds.ErrPluginNotFound,
			fctx.With(context.Background(),
				"error_at", "plugin-setconfig-find",
				"plugin", name,
			),
			ftag.With(ftag.NotFound),
			fmsg.With("No such plugin: "+name),
		)
	}

	if enabled {
		return m.load(name, nil)
	}

	return m.unload(name)
}

// Loaded returns the names of the loaded plugins, in load order.
func (m *Manager) Loaded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.loaded)
}

// Available returns the names of all known plugins.
func (m *Manager) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.plugins))
	for _, p := range m.plugins {
		names = append(names, p.Name())
	}

	return names
}

// Lookup returns the named plugin if it is loaded.
func (m *Manager) Lookup(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !slices.Contains(m.loaded, name) {
		return nil, false
	}

	return m.known(name), true
}

// Capabilities returns a snapshot of the features provided by the loaded plugins.
func (m *Manager) Capabilities() ac.FeatureSet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.capabilities()
}

func (m *Manager) capabilities() ac.FeatureSet {
	return ac.NewFeatureSet(ac.FromPlugins(m.loaded), m.errors)
}

// load loads the named plugin after its dependencies. The chain holds the
// plugins whose loading led here, to detect dependency cycles.
func (m *Manager) load(name string, chain []string) error {
	if slices.Contains(m.loaded, name) {
		return nil
	}

	p := m.known(name)
	if p == nil {
		return fault.Wrap(errorkinds.ErrPluginNotFound,
			fctx.With(context.Background(),
				"error_at", "plugin-load-find",
				"plugin", name,
			),
			ftag.With(ftag.NotFound),
			fmsg.With("No such plugin: "+name),
		)
	}

	if slices.Contains(chain, name) {
		return fault.Wrap(errorkinds.ErrPluginDependency,
			fctx.With(context.Background(),
				"error_at", "plugin-load-cycle",
				"plugin", name,
			),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("Circular plugin dependency on "+name),
		)
	}

	for _, dep := range dependencies(p) {
		if err := m.load(dep, append(chain, name)); err != nil {
			return fault.Wrap(err,
				fctx.With(context.Background(),
					"error_at", "plugin-load-dependency",
					"plugin", name,
					"dependency", dep,
				),
				fmsg.With("Cannot load dependency of "+name),
			)
		}
	}

	if err := p.Load(m.registry); err != nil {
		m.registry.RemoveAll(name)

		return fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "plugin-load",
				"plugin", name,
			),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot load plugin "+name),
		)
	}

	m.loaded = append(m.loaded, name)
	m.logger.Info().Str("plugin", name).Msg("Plugin loaded")
	bluetooth.PluginEvents().PublishAdded(bluetooth.PluginEventData{Name: name})

	return nil
}

// unload unloads the named plugin, if no loaded plugin depends on it.
func (m *Manager) unload(name string) error {
	if !slices.Contains(m.loaded, name) {
		return nil
	}

	p := m.known(name)
	if !canUnload(p) {
		return fault.Wrap(errorkinds.ErrPluginNotUnloadable,
			fctx.With(context.Background(),
				"error_at", "plugin-unload-check",
				"plugin", name,
			),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("Plugin "+name+" cannot be unloaded"),
		)
	}

	for _, loaded := range m.loaded {
		if slices.Contains(dependencies(m.known(loaded)), name) {
			return fault.Wrap(errorkinds.ErrPluginDependency,
				fctx.With(context.Background(),
					"error_at", "plugin-unload-dependent",
					"plugin", name,
					"dependent", loaded,
				),
				ftag.With(ftag.InvalidArgument),
				fmsg.With("Plugin "+loaded+" depends on "+name),
			)
		}
	}

	m.unloadPlugin(p)

	return nil
}

// unloadPlugin removes the plugin's handlers and marks it as unloaded.
func (m *Manager) unloadPlugin(p Plugin) {
	name := p.Name()

	m.registry.RemoveAll(name)
	if err := p.Unload(); err != nil {
		m.logger.Warn().Err(err).Str("plugin", name).Msg("Error while unloading plugin")
	}

	m.loaded = slices.DeleteFunc(m.loaded, func(n string) bool { return n == name })
	m.logger.Info().Str("plugin", name).Msg("Plugin unloaded")
	bluetooth.PluginEvents().PublishRemoved(bluetooth.PluginEventData{Name: name})
}

// known returns the named plugin, or nil if it was never registered.
func (m *Manager) known(name string) Plugin {
	for _, p := range m.plugins {
		if p.Name() == name {
			return p
		}
	}

	return nil
}
