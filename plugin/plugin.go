// Package plugin holds the extension points that optional plugins register
// their handlers with, and the manager that loads and unloads plugins.
package plugin

// Plugin describes an extension of the applet.
type Plugin interface {
	// Name returns the unique name of the plugin.
	Name() string

	// Description returns a short description of the plugin.
	Description() string

	// Load registers the plugin's handlers with the registry.
	Load(registry *Registry) error

	// Unload releases any resources held by the plugin. Its handlers are
	// removed from the registry by the manager.
	Unload() error
}

// Unloadable is implemented by plugins that decide whether they can be unloaded.
// Plugins that do not implement it can be unloaded.
type Unloadable interface {
	Unloadable() bool
}

// Dependent is implemented by plugins that require other plugins to be loaded first.
type Dependent interface {
	Depends() []string
}

// Defaulter is implemented by plugins that decide whether they are loaded
// when the configuration does not mention them. Plugins that do not
// implement it are loaded by default.
type Defaulter interface {
	DefaultEnabled() bool
}

// canUnload returns whether the plugin can be unloaded.
func canUnload(p Plugin) bool {
	u, ok := p.(Unloadable)

	return !ok || u.Unloadable()
}

// dependencies returns the plugins that p depends on.
func dependencies(p Plugin) []string {
	if d, ok := p.(Dependent); ok {
		return d.Depends()
	}

	return nil
}

// enabledByDefault returns whether the plugin is loaded by default.
func enabledByDefault(p Plugin) bool {
	d, ok := p.(Defaulter)

	return !ok || d.DefaultEnabled()
}
