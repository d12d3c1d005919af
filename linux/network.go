//go:build linux

package linux

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/godbus/dbus/v5"

	"github.com/darkhz/blueapplet/api/bluetooth"
	dbh "github.com/darkhz/blueapplet/linux/dbushelper"
)

// networkTransport connects and disconnects network services through
// the BlueZ Network1 interface.
type networkTransport struct {
	b *BluezSession
}

// ConnectNetwork connects to the network service of the device.
func (n *networkTransport) ConnectNetwork(info bluetooth.ServiceInfo, ok bluetooth.Reply, fail bluetooth.ErrorReply) {
	n.b.loop.Go(func() error {
		var iface string

		if err := n.callNetwork(info, "Connect", info.UUID.String()).Store(&iface); err != nil {
			return fault.Wrap(err,
				fctx.With(context.Background(),
					"error_at", "network-connect",
					"address", info.Address.String(),
					"uuid", info.UUID.String(),
				),
				ftag.With(ftag.Internal),
				fmsg.With("Cannot connect to network service"),
			)
		}

		n.b.logger.Info().
			Str("address", info.Address.String()).
			Str("service", info.Name).
			Str("interface", iface).
			Msg("Network connected")

		return nil
	}, ok, fail)
}

// DisconnectNetwork disconnects from the network service of the device.
func (n *networkTransport) DisconnectNetwork(info bluetooth.ServiceInfo, ok bluetooth.Reply, fail bluetooth.ErrorReply) {
	n.b.loop.Go(func() error {
		if err := n.callNetwork(info, "Disconnect").Store(); err != nil {
			return fault.Wrap(err,
				fctx.With(context.Background(),
					"error_at", "network-disconnect",
					"address", info.Address.String(),
					"uuid", info.UUID.String(),
				),
				ftag.With(ftag.Internal),
				fmsg.With("Cannot disconnect from network service"),
			)
		}

		return nil
	}, ok, fail)
}

// callNetwork is used to interact with the bluez Network dbus interface.
// https://git.kernel.org/pub/scm/bluetooth/bluez.git/tree/doc/org.bluez.Network.rst
func (n *networkTransport) callNetwork(info bluetooth.ServiceInfo, method string, args ...any) *dbus.Call {
	return n.b.systemBus.Object(dbh.BluezBusName, dbus.ObjectPath(info.Device)).
		Call(dbh.BluezNetworkIface+"."+method, 0, args...)
}
