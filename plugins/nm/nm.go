// Package nm bridges dialup and personal area network services to
// NetworkManager.
package nm

import (
	"github.com/rs/zerolog"

	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/loop"
	"github.com/darkhz/blueapplet/plugin"
)

// The names of the plugins.
const (
	DUNName = "NMDUNSupport"
	PANName = "NMPANSupport"
)

// OpenFunc opens a session with the network manager.
type OpenFunc func() (bluetooth.Network, error)

// Bridge claims the connect and disconnect requests of one kind of network
// service, and hands them to the network manager.
type Bridge struct {
	name        string
	description string
	networkType bluetooth.NetworkType
	claims      func(bluetooth.Service) bool

	open    OpenFunc
	network bluetooth.Network

	loop   *loop.Loop
	logger zerolog.Logger
}

// NewDUNSupport returns the plugin which connects dialup services through
// the network manager.
func NewDUNSupport(l *loop.Loop, open OpenFunc, logger zerolog.Logger) *Bridge {
	return newBridge(DUNName, "Dialup networking support through NetworkManager",
		bluetooth.NetworkDun, isDialup, l, open, logger,
	)
}

// NewPANSupport returns the plugin which connects network access point
// services through the network manager.
func NewPANSupport(l *loop.Loop, open OpenFunc, logger zerolog.Logger) *Bridge {
	return newBridge(PANName, "Personal area networking support through NetworkManager",
		bluetooth.NetworkPanu, isNetwork, l, open, logger,
	)
}

func newBridge(
	name, description string,
	nt bluetooth.NetworkType, claims func(bluetooth.Service) bool,
	l *loop.Loop, open OpenFunc, logger zerolog.Logger,
) *Bridge {
	return &Bridge{
		name:        name,
		description: description,
		networkType: nt,
		claims:      claims,
		open:        open,
		loop:        l,
		logger:      logger.With().Str("plugin", name).Logger(),
	}
}

// Name returns the name of the plugin.
func (b *Bridge) Name() string { return b.name }

// Description returns a short description of the plugin.
func (b *Bridge) Description() string { return b.description }

// Load opens the network manager session and registers the service handlers.
func (b *Bridge) Load(r *plugin.Registry) error {
	network, err := b.open()
	if err != nil {
		return err
	}

	b.network = network

	r.ServiceConnect.Add(b.name, b.connect)
	r.ServiceDisconnect.Add(b.name, b.disconnect)

	return nil
}

// Unload drops the network manager session.
func (b *Bridge) Unload() error {
	b.network = nil

	return nil
}

func (b *Bridge) connect(svc bluetooth.Service, ok bluetooth.Reply, fail bluetooth.ErrorReply) bool {
	network := b.network
	if network == nil || !b.claims(svc) {
		return false
	}

	info := svc.Info()
	b.logger.Info().
		Str("address", info.Address.String()).
		Str("type", b.networkType.String()).
		Msg("Connecting network")

	b.loop.Go(func() error {
		return network.Connect(info, b.networkType)
	}, ok, fail)

	return true
}

func (b *Bridge) disconnect(svc bluetooth.Service, ok bluetooth.Reply, fail bluetooth.ErrorReply) bool {
	network := b.network
	if network == nil || !b.claims(svc) {
		return false
	}

	info := svc.Info()
	b.logger.Info().
		Str("address", info.Address.String()).
		Str("type", b.networkType.String()).
		Msg("Disconnecting network")

	b.loop.Go(func() error {
		return network.Disconnect(info.Address)
	}, ok, fail)

	return true
}

func isDialup(svc bluetooth.Service) bool {
	serial, ok := svc.(*bluetooth.SerialService)

	return ok && serial.IsDialup()
}

func isNetwork(svc bluetooth.Service) bool {
	_, ok := svc.(*bluetooth.NetworkService)

	return ok
}
