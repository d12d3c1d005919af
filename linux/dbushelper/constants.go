//go:build linux

package dbushelper

import (
	"github.com/godbus/dbus/v5"
	"github.com/rs/xid"
)

// The DBus specific bus and property names.
const (
	DbusObjectManagerIface  = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
	DbusIntrospectableIface = "org.freedesktop.DBus.Introspectable"

	DbusSignalAddMatchIface          = "org.freedesktop.DBus.AddMatch"
	DbusSignalPropertyChangedIface   = "org.freedesktop.DBus.Properties.PropertiesChanged"
	DbusSignalInterfacesAddedIface   = "org.freedesktop.DBus.ObjectManager.InterfacesAdded"
	DbusSignalInterfacesRemovedIface = "org.freedesktop.DBus.ObjectManager.InterfacesRemoved"

	BluezBusName      = "org.bluez"
	BluezDeviceIface  = "org.bluez.Device1"
	BluezNetworkIface = "org.bluez.Network1"

	BluezProfileIface        = "org.bluez.Profile1"
	BluezProfileManagerIface = "org.bluez.ProfileManager1"
	BluezProfileManagerPath  = dbus.ObjectPath("/org/bluez")

	AppletBusName = "org.darkhz.BlueApplet"
	AppletIface   = "org.darkhz.BlueApplet1"
	AppletPath    = dbus.ObjectPath("/org/darkhz/BlueApplet")
)

// NewProfilePath returns a randomized path for registering a Bluez Profile.
func NewProfilePath() dbus.ObjectPath {
	return dbus.ObjectPath("/org/darkhz/BlueApplet/profile/serial" + xid.New().String())
}
