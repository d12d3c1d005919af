//go:build linux

package dbushelper

import (
	"slices"

	"github.com/godbus/dbus/v5"
)

// ListActivatableBusNames returns a list of bus names from the provided DBus connection.
func ListActivatableBusNames(conn *dbus.Conn) ([]string, error) {
	var names []string

	if err := conn.Object("org.freedesktop.DBus", "/org/freedesktop/DBus").
		Call("org.freedesktop.DBus.ListActivatableNames", 0).
		Store(&names); err != nil {
		return nil, err
	}

	return names, nil
}

// BusNameAvailable returns if the bus name is either owned, or can be activated
// on the provided DBus connection.
func BusNameAvailable(conn *dbus.Conn, name string) (bool, error) {
	var owned bool

	if err := conn.BusObject().
		Call("org.freedesktop.DBus.NameHasOwner", 0, name).
		Store(&owned); err != nil {
		return false, err
	}

	if owned {
		return true, nil
	}

	names, err := ListActivatableBusNames(conn)
	if err != nil {
		return false, err
	}

	return slices.Contains(names, name), nil
}
