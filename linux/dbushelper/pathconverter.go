//go:build linux

package dbushelper

import (
	"github.com/godbus/dbus/v5"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/darkhz/blueapplet/api/bluetooth"
)

// DbusPathType represents the type of DBus path that is mapped to a device address.
// Device paths are owned by BlueZ (/org/bluez/hci0/dev_XX => DbusPathDevice),
// while profile paths are the randomized paths of the serial profiles
// registered by the applet for a device.
type DbusPathType int

// The different DBus path types.
const (
	DbusPathDevice DbusPathType = iota
	DbusPathProfile
)

// dbusPath holds the DBus path and its type.
type dbusPath struct {
	pathType DbusPathType
	path     dbus.ObjectPath
}

// DbusPathConverter holds a list of DBus paths and maps them
// to their respective Bluetooth device addresses.
type DbusPathConverter struct {
	paths *xsync.MapOf[dbusPath, bluetooth.MacAddress]
}

// NewPathConverter returns a new path converter.
func NewPathConverter() *DbusPathConverter {
	return &DbusPathConverter{paths: xsync.NewMapOf[dbusPath, bluetooth.MacAddress]()}
}

// AddDbusPath adds a mapping of a DBus path and a Bluetooth address to the path converter.
func (d *DbusPathConverter) AddDbusPath(pathType DbusPathType, path dbus.ObjectPath, address bluetooth.MacAddress) {
	d.paths.Store(dbusPath{pathType: pathType, path: path}, address)
}

// RemoveDbusPath removes a mapping of a DBus path and a Bluetooth address from the path converter.
func (d *DbusPathConverter) RemoveDbusPath(pathType DbusPathType, path dbus.ObjectPath) {
	d.paths.Delete(dbusPath{pathType: pathType, path: path})
}

// RemoveDevice removes the mapping of a device path, and of all profile
// paths registered for the same device.
func (d *DbusPathConverter) RemoveDevice(path dbus.ObjectPath) {
	address, ok := d.Address(DbusPathDevice, path)
	if !ok {
		return
	}

	d.RemoveDbusPath(DbusPathDevice, path)
	d.paths.Range(func(p dbusPath, addr bluetooth.MacAddress) bool {
		if p.pathType == DbusPathProfile && addr == address {
			d.RemoveDbusPath(DbusPathProfile, p.path)
		}

		return true
	})
}

// Address returns a Bluetooth address that is mapped to the provided DBus path.
func (d *DbusPathConverter) Address(pathType DbusPathType, path dbus.ObjectPath) (bluetooth.MacAddress, bool) {
	return d.paths.Load(dbusPath{pathType: pathType, path: path})
}

