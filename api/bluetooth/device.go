package bluetooth

import (
	"github.com/google/uuid"
)

// Target identifies what a connect or disconnect request is aimed at.
type Target struct {
	// Path holds the object path of the device.
	Path string

	// UUID holds the service identifier. The all-zero UUID denotes
	// the device itself rather than one of its services.
	UUID uuid.UUID
}

// NewTarget returns a new target after parsing the service identifier.
func NewTarget(path, serviceUUID string) (Target, error) {
	id, err := uuid.Parse(serviceUUID)
	if err != nil {
		return Target{}, err
	}

	return Target{Path: path, UUID: id}, nil
}

// IsDevice returns if the target is the device itself.
func (t Target) IsDevice() bool {
	return t.UUID == uuid.Nil
}

// Device describes a function call interface to invoke device level
// connection functions. Both calls return immediately, and the outcome
// is delivered through exactly one of the callbacks.
type Device interface {
	// Connect connects all auto-connectable profiles of the device.
	Connect(ok Reply, fail ErrorReply)

	// Disconnect disconnects the device.
	Disconnect(ok Reply, fail ErrorReply)
}

// DeviceData holds the bluetooth device information needed to resolve services.
type DeviceData struct {
	// Path holds the object path of the device.
	Path string `json:"path,omitempty" codec:"-"`

	// Name holds the name of the device.
	Name string `json:"name,omitempty" codec:"Name,omitempty"`

	// Alias holds the optional or user-assigned name for the device.
	Alias string `json:"alias,omitempty" codec:"Alias,omitempty"`

	// Address holds the Bluetooth MAC address of the device.
	Address MacAddress `json:"address,omitempty" codec:"Address,omitempty"`

	// Paired indicates if the device is paired.
	Paired bool `json:"paired,omitempty" codec:"Paired,omitempty"`

	// Connected indicates if the device is connected.
	Connected bool `json:"connected,omitempty" codec:"Connected,omitempty"`

	// UUIDs holds the device-supported Bluetooth profile UUIDs.
	UUIDs []string `json:"uuids,omitempty" codec:"UUIDs,omitempty"`
}

// Advertises returns if the device advertises the service UUID.
func (d *DeviceData) Advertises(id uuid.UUID) bool {
	for _, u := range d.UUIDs {
		parsed, err := uuid.Parse(u)
		if err != nil {
			continue
		}

		if parsed == id {
			return true
		}
	}

	return false
}
