// Package sessionstore holds the devices known to a session, keyed by
// their object path.
package sessionstore

import (
	"fmt"
	"slices"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/api/errorkinds"
)

// MergeDeviceDataFunc describes a function to merge old device data
// with updated device data.
type MergeDeviceDataFunc func(*bluetooth.DeviceData) error

// SessionStore describes a store of devices.
type SessionStore struct {
	devices *xsync.MapOf[string, bluetooth.DeviceData]
}

// NewSessionStore returns a new SessionStore.
func NewSessionStore() SessionStore {
	return SessionStore{
		devices: xsync.NewMapOf[string, bluetooth.DeviceData](),
	}
}

// Devices returns a list of devices from the store, sorted by their path.
func (s *SessionStore) Devices() []bluetooth.DeviceData {
	devices := make([]bluetooth.DeviceData, 0, s.devices.Size())

	s.devices.Range(func(_ string, device bluetooth.DeviceData) bool {
		devices = append(devices, device)

		return true
	})

	slices.SortFunc(devices, func(a, b bluetooth.DeviceData) int {
		return strings.Compare(a.Path, b.Path)
	})

	return devices
}

// Device returns a device which matches the provided path.
func (s *SessionStore) Device(path string) (bluetooth.DeviceData, error) {
	device, ok := s.devices.Load(path)
	if !ok {
		return bluetooth.DeviceData{},
			fmt.Errorf("get %q: %w", path, errorkinds.ErrDeviceNotFound)
	}

	return device, nil
}

// AddDevice adds a device to the store.
func (s *SessionStore) AddDevice(device bluetooth.DeviceData) {
	s.devices.Store(device.Path, device)
}

// RemoveDevice removes a device from the store.
func (s *SessionStore) RemoveDevice(path string) {
	s.devices.Delete(path)
}

// UpdateDevice updates the properties of the device in the store.
func (s *SessionStore) UpdateDevice(path string, mergefn MergeDeviceDataFunc) (bluetooth.DeviceData, error) {
	device, ok := s.devices.Load(path)
	if !ok {
		return bluetooth.DeviceData{},
			fmt.Errorf("update %q: %w", path, errorkinds.ErrDeviceNotFound)
	}

	if err := mergefn(&device); err != nil {
		return bluetooth.DeviceData{}, err
	}

	device.Path = path
	s.devices.Store(path, device)

	return device, nil
}
