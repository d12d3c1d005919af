package plugin

import (
	"sync"

	"github.com/darkhz/blueapplet/api/bluetooth"
)

// The names of the extension points.
const (
	PointServiceConnect    = "service_connect_handler"
	PointServiceDisconnect = "service_disconnect_handler"
	PointRFCOMMConnect     = "rfcomm_connect_handler"
	PointRFCOMMConnected   = "on_rfcomm_connected"
	PointRFCOMMDisconnect  = "on_rfcomm_disconnect"
)

// ServiceHandler attempts to connect or disconnect a service. It returns
// whether it claimed the request; a claiming handler owns the outcome and
// must eventually call exactly one of ok or fail.
type ServiceHandler func(svc bluetooth.Service, ok bluetooth.Reply, fail bluetooth.ErrorReply) bool

// RFCOMMConnectHandler attempts to open a serial tunnel for a service. It
// returns whether it claimed the request; a claiming handler eventually
// calls either reply with the port of the tunnel, or fail.
type RFCOMMConnectHandler func(svc *bluetooth.SerialService, reply bluetooth.PortReply, fail bluetooth.ErrorReply) bool

// RFCOMMConnectedHandler is notified after a serial tunnel was opened.
type RFCOMMConnectedHandler func(svc *bluetooth.SerialService, port int)

// RFCOMMDisconnectHandler is notified after a serial tunnel was asked to close.
type RFCOMMDisconnectHandler func(port int)

// entry holds a handler and the plugin that registered it.
type entry[H any] struct {
	owner   string
	handler H
}

// Point is a named extension point, holding an ordered list of handlers.
type Point[H any] struct {
	name    string
	entries []entry[H]

	mu sync.RWMutex
}

// NewPoint returns a new extension point.
func NewPoint[H any](name string) *Point[H] {
	return &Point[H]{name: name}
}

// Name returns the name of the extension point.
func (p *Point[H]) Name() string {
	return p.name
}

// Add appends a handler owned by the named plugin.
func (p *Point[H]) Add(owner string, handler H) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = append(p.entries, entry[H]{owner: owner, handler: handler})
}

// Remove removes all handlers owned by the named plugin.
func (p *Point[H]) Remove(owner string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.entries[:0]
	for _, e := range p.entries {
		if e.owner != owner {
			entries = append(entries, e)
		}
	}

	clear(p.entries[len(entries):])
	p.entries = entries
}

// Handlers returns a snapshot of the handlers in registration order.
func (p *Point[H]) Handlers() []H {
	p.mu.RLock()
	defer p.mu.RUnlock()

	handlers := make([]H, 0, len(p.entries))
	for _, e := range p.entries {
		handlers = append(handlers, e.handler)
	}

	return handlers
}

// Run calls every handler in order, and returns their individual results.
func Run[H any](p *Point[H], call func(H) bool) []bool {
	handlers := p.Handlers()

	results := make([]bool, 0, len(handlers))
	for _, h := range handlers {
		results = append(results, call(h))
	}

	return results
}

// Any calls every handler in order, and returns whether any of them
// claimed the request.
func Any[H any](p *Point[H], call func(H) bool) bool {
	var claimed bool

	for _, result := range Run(p, call) {
		claimed = claimed || result
	}

	return claimed
}

// Until calls the handlers in order until one of them claims the request.
// The remaining handlers are not called.
func Until[H any](p *Point[H], call func(H) bool) bool {
	for _, h := range p.Handlers() {
		if call(h) {
			return true
		}
	}

	return false
}

// Notify calls every handler in order.
func Notify[H any](p *Point[H], call func(H)) {
	for _, h := range p.Handlers() {
		call(h)
	}
}

// Registry holds the extension points that plugins register handlers with.
type Registry struct {
	ServiceConnect    *Point[ServiceHandler]
	ServiceDisconnect *Point[ServiceHandler]
	RFCOMMConnect     *Point[RFCOMMConnectHandler]
	RFCOMMConnected   *Point[RFCOMMConnectedHandler]
	RFCOMMDisconnect  *Point[RFCOMMDisconnectHandler]
}

// NewRegistry returns a registry with empty extension points.
func NewRegistry() *Registry {
	return &Registry{
		ServiceConnect:    NewPoint[ServiceHandler](PointServiceConnect),
		ServiceDisconnect: NewPoint[ServiceHandler](PointServiceDisconnect),
		RFCOMMConnect:     NewPoint[RFCOMMConnectHandler](PointRFCOMMConnect),
		RFCOMMConnected:   NewPoint[RFCOMMConnectedHandler](PointRFCOMMConnected),
		RFCOMMDisconnect:  NewPoint[RFCOMMDisconnectHandler](PointRFCOMMDisconnect),
	}
}

// RemoveAll removes every handler owned by the named plugin.
func (r *Registry) RemoveAll(owner string) {
	r.ServiceConnect.Remove(owner)
	r.ServiceDisconnect.Remove(owner)
	r.RFCOMMConnect.Remove(owner)
	r.RFCOMMConnected.Remove(owner)
	r.RFCOMMDisconnect.Remove(owner)
}
