package dispatch

import (
	ac "github.com/darkhz/blueapplet/api/appfeatures"
	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/plugin"
)

// CoreName is the name of the core plugin.
const CoreName = "DBusService"

// Core is the plugin that provides the IPC service. It registers the default
// handler of every extension point, which never claims a request.
type Core struct{}

// Name returns the name of the plugin.
func (Core) Name() string { return CoreName }

// Description returns a short description of the plugin.
func (Core) Description() string {
	return "Provides the applet service that connects devices and their services"
}

// Unloadable returns false, the applet service is always available.
func (Core) Unloadable() bool { return false }

// Load registers the default handlers.
func (Core) Load(r *plugin.Registry) error {
	r.ServiceConnect.Add(CoreName, func(bluetooth.Service, bluetooth.Reply, bluetooth.ErrorReply) bool {
		return false
	})
	r.ServiceDisconnect.Add(CoreName, func(bluetooth.Service, bluetooth.Reply, bluetooth.ErrorReply) bool {
		return false
	})
	r.RFCOMMConnect.Add(CoreName, func(*bluetooth.SerialService, bluetooth.PortReply, bluetooth.ErrorReply) bool {
		return false
	})
	r.RFCOMMConnected.Add(CoreName, func(*bluetooth.SerialService, int) {})
	r.RFCOMMDisconnect.Add(CoreName, func(int) {})

	return nil
}

// Unload does nothing.
func (Core) Unload() error { return nil }

// ManagerHost provides the dispatcher with the state of a plugin manager.
type ManagerHost struct {
	Manager *plugin.Manager
}

// Capabilities returns the capability snapshot of the loaded plugins.
func (h ManagerHost) Capabilities() ac.FeatureSet {
	return h.Manager.Capabilities()
}

// RecentConnections returns the recent connections plugin, if it is loaded.
func (h ManagerHost) RecentConnections() (RecentConnections, bool) {
	p, ok := h.Manager.Lookup(ac.FeatureRecentConns.Plugin())
	if !ok {
		return nil, false
	}

	recent, ok := p.(RecentConnections)

	return recent, ok
}

// Registry returns the manager's registry.
func (h ManagerHost) Registry() *plugin.Registry {
	return h.Manager.Registry()
}
