//go:build linux

// Package networkmanager manages the dialup and personal area network
// connections established with Bluetooth devices through NetworkManager.
package networkmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	nm "github.com/Wifx/gonetworkmanager"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/api/errorkinds"
)

// NetManager holds the network manager session and the active connections.
type NetManager struct {
	activeConnections *xsync.MapOf[bluetooth.MacAddress, nm.ActiveConnection]
	dunSettings       bluetooth.NetworkDunSettings

	nm.NetworkManager
}

// connectionSettings holds a device's network connection settings.
type connectionSettings struct {
	Name    string
	Address bluetooth.MacAddress

	ConnectionType bluetooth.NetworkType
	ConnectionUUID uuid.UUID

	bluetooth.NetworkDunSettings
}

// Initialize initializes and returns a new NetManager.
func Initialize(dunSettings bluetooth.NetworkDunSettings) (*NetManager, error) {
	manager, err := nm.NewNetworkManager()
	if err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "network-initialize"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot connect to NetworkManager"),
		)
	}

	return &NetManager{
		NetworkManager:    manager,
		activeConnections: xsync.NewMapOf[bluetooth.MacAddress, nm.ActiveConnection](),
		dunSettings:       dunSettings,
	}, nil
}

// Connect connects to the device's network interface. It blocks until the
// connection is activated, or fails to activate.
func (n *NetManager) Connect(info bluetooth.ServiceInfo, nt bluetooth.NetworkType) error {
	if err := n.check(info.Address); err != nil {
		return err
	}

	active, err := n.isConnectionActive(info.Address, nt)
	if err != nil {
		return fault.Wrap(
			err,
			fctx.With(context.Background(),
				"error_at", "network-connect-active",
				"address", info.Address.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot verify connection status"),
		)
	}

	if active {
		return fault.Wrap(errorkinds.ErrNetworkAlreadyActive,
			fctx.With(context.Background(),
				"error_at", "network-connect-active",
				"address", info.Address.String(),
			),
			ftag.With(ftag.AlreadyExists),
			fmsg.With("Connection is already active"),
		)
	}

	activated, err := n.activateExistingConnection(info.Address, nt)
	if err != nil {
		return fault.Wrap(
			err,
			fctx.With(context.Background(),
				"error_at", "network-connect-activated",
				"address", info.Address.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot activate existing connection"),
		)
	}

	if activated {
		return nil
	}

	if err := n.createConnection(info, nt); err != nil {
		return fault.Wrap(
			err,
			fctx.With(context.Background(),
				"error_at", "network-connect-create",
				"address", info.Address.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot create connection"),
		)
	}

	return nil
}

// Disconnect deactivates the connection established with the device.
func (n *NetManager) Disconnect(address bluetooth.MacAddress) error {
	if err := n.check(address); err != nil {
		return err
	}

	activeConn, ok := n.activeConnections.LoadAndDelete(address)
	if !ok || activeConn == nil {
		return nil
	}

	if err := n.DeactivateConnection(activeConn); err != nil {
		return fault.Wrap(
			err,
			fctx.With(context.Background(),
				"error_at", "network-disconnect-deactivated",
				"address", address.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot deactivate connection"),
		)
	}

	return nil
}

// isConnectionActive checks if the device's connection is active.
func (n *NetManager) isConnectionActive(address bluetooth.MacAddress, nt bluetooth.NetworkType) (bool, error) {
	activeConnections, err := n.GetPropertyActiveConnections()
	if err != nil {
		return false, err
	}

	for _, activeConn := range activeConnections {
		ctype, err := activeConn.GetPropertyType()
		if err != nil {
			return false, err
		}

		if ctype != "bluetooth" {
			continue
		}

		conn, err := activeConn.GetPropertyConnection()
		if err != nil {
			return false, err
		}

		settings, err := conn.GetSettings()
		if err != nil {
			return false, err
		}

		if addrExist(settings, address, nt) {
			return true, nil
		}
	}

	return false, nil
}

// activateExistingConnection activates an existing device connection profile.
func (n *NetManager) activateExistingConnection(address bluetooth.MacAddress, nt bluetooth.NetworkType) (bool, error) {
	devices, err := n.GetPropertyDevices()
	if err != nil {
		return false, err
	}

	for _, device := range devices {
		dtype, err := device.GetPropertyDeviceType()
		if err != nil {
			return false, err
		}

		if dtype != nm.NmDeviceTypeBt {
			continue
		}

		conns, err := device.GetPropertyAvailableConnections()
		if err != nil {
			return false, err
		}

		for _, conn := range conns {
			settings, err := conn.GetSettings()
			if err != nil {
				return false, err
			}

			if !addrExist(settings, address, nt) {
				continue
			}

			if nt == bluetooth.NetworkDun {
				if err := applyDunSettings(settings, n.dunSettings); err != nil {
					return false, err
				}

				if err := conn.Update(settings); err != nil {
					return false, err
				}
			}

			return true, n.activateConnection(address, conn, device)
		}
	}

	return false, nil
}

// createConnection creates a new connection.
func (n *NetManager) createConnection(info bluetooth.ServiceInfo, nt bluetooth.NetworkType) error {
	newUUID, err := uuid.NewUUID()
	if err != nil {
		return err
	}

	connectionSettings := connectionSettings{
		Address:            info.Address,
		Name:               info.DeviceName,
		ConnectionType:     nt,
		ConnectionUUID:     newUUID,
		NetworkDunSettings: n.dunSettings,
	}.toMap()

	settings, err := nm.NewSettings()
	if err != nil {
		return err
	}

	conn, err := settings.AddConnection(connectionSettings)
	if err != nil {
		return err
	}

	device, err := n.GetDeviceByIpIface(info.Address.String())
	if err != nil {
		return err
	}

	return n.activateConnection(info.Address, conn, device)
}

// activateConnection activates the connection, and waits for it to leave
// the activating state.
func (n *NetManager) activateConnection(address bluetooth.MacAddress, conn nm.Connection, device nm.Device) error {
	activeConn, err := n.ActivateConnection(conn, device, nil)
	if err != nil {
		return err
	}

	exit := make(chan struct{})
	activeState := make(chan nm.StateChange)

	err = activeConn.SubscribeState(activeState, exit)
	if err != nil {
		return err
	}

	n.activeConnections.Store(address, activeConn)

	var state nm.StateChange
	for state = range activeState {
		if state.State == nm.NmActiveConnectionStateActivating {
			continue
		}

		close(exit)

		break
	}

	if state.State != nm.NmActiveConnectionStateActivated {
		n.activeConnections.Delete(address)

		return errorkinds.ErrNetworkEstablishError
	}

	return nil
}

// check checks whether the network manager was initialized.
func (n *NetManager) check(address bluetooth.MacAddress) error {
	if n == nil || n.NetworkManager == nil {
		return fault.Wrap(
			errorkinds.ErrNetworkInitSession,
			fctx.With(context.Background(),
				"error_at", "network-check-manager",
				"address", address.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot call network manager method"),
		)
	}

	if address.IsNil() {
		return fault.Wrap(errorkinds.ErrInvalidAddress,
			fctx.With(context.Background(),
				"error_at", "network-check-address",
			),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("Device has no address"),
		)
	}

	return nil
}

// addrExist checks if the device's address is present in the connection's settings.
func addrExist(settings nm.ConnectionSettings, address bluetooth.MacAddress, nt bluetooth.NetworkType) bool {
	addr, ok := settings["bluetooth"]["bdaddr"].([]byte)
	if !ok || len(addr) != len(address) {
		return false
	}

	bdtype, ok := settings["bluetooth"]["type"].(string)

	return ok && bluetooth.MacAddress(addr) == address && bdtype == nt.String()
}

// applyDunSettings modifies the dialup settings of a device connection's settings.
func applyDunSettings(settings nm.ConnectionSettings, dun bluetooth.NetworkDunSettings) error {
	gsmSettings, ok := settings["gsm"]
	if !ok {
		return errors.New("GSM setting not found in connection details")
	}

	if dun.APN != gsmSettings["apn"] {
		gsmSettings["apn"] = dun.APN
	}

	if dun.Number != gsmSettings["number"] {
		gsmSettings["number"] = dun.Number
	}

	delete(settings, "ipv6")

	return nil
}

// toMap returns a connection setting as a map.
func (n connectionSettings) toMap() map[string]map[string]any {
	connType := n.ConnectionType.String()
	name := fmt.Sprintf("%s Access Point (%s)",
		n.Name, strings.ToUpper(connType),
	)

	settings := map[string]map[string]any{
		"connection": {
			"id":          name,
			"type":        "bluetooth",
			"uuid":        n.ConnectionUUID.String(),
			"autoconnect": false,
		},
		"bluetooth": {
			"bdaddr": n.Address[:],
			"type":   connType,
		},
	}

	if n.ConnectionType == bluetooth.NetworkDun {
		settings["gsm"] = map[string]any{
			"apn":    n.APN,
			"number": n.Number,
		}
	}

	return settings
}
