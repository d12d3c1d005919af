//go:build linux

package linux

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"github.com/darkhz/blueapplet/api/bluetooth"
	dbh "github.com/darkhz/blueapplet/linux/dbushelper"
)

// device describes a function call interface to invoke device related functions.
type device struct {
	b    *BluezSession
	path dbus.ObjectPath

	Address bluetooth.MacAddress
}

// Connect will attempt to connect an already paired bluetooth device
// to an adapter.
func (d *device) Connect(ok bluetooth.Reply, fail bluetooth.ErrorReply) {
	d.b.loop.Go(func() error {
		if err := d.callDevice("Connect", 0).Store(); err != nil {
			return fault.Wrap(err,
				fctx.With(context.Background(),
					"error_at", "device-connect",
					"address", d.Address.String(),
				),
				ftag.With(ftag.Internal),
				fmsg.With("Cannot connect to device"),
			)
		}

		return nil
	}, ok, fail)
}

// Disconnect will disconnect the bluetooth device from the adapter.
func (d *device) Disconnect(ok bluetooth.Reply, fail bluetooth.ErrorReply) {
	d.b.loop.Go(func() error {
		if err := d.callDevice("Disconnect", 0).Store(); err != nil {
			return fault.Wrap(err,
				fctx.With(context.Background(),
					"error_at", "device-disconnect",
					"address", d.Address.String(),
				),
				ftag.With(ftag.Internal),
				fmsg.With("Cannot disconnect from device"),
			)
		}

		return nil
	}, ok, fail)
}

// connectProfile will attempt to connect the device using a specific
// Bluetooth profile UUID. It blocks until BlueZ replies.
func (d *device) connectProfile(profileUUID uuid.UUID) error {
	if err := d.callDevice("ConnectProfile", 0, profileUUID.String()).Store(); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "device-connect-profile",
				"address", d.Address.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot connect to device with profile"),
		)
	}

	return nil
}

// disconnectProfile will attempt to disconnect a specific Bluetooth profile
// of the device. It blocks until BlueZ replies.
func (d *device) disconnectProfile(profileUUID uuid.UUID) error {
	if err := d.callDevice("DisconnectProfile", 0, profileUUID.String()).Store(); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "device-disconnect-profile",
				"address", d.Address.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot disconnect from device with profile"),
		)
	}

	return nil
}

// callDevice is used to interact with the bluez Device dbus interface.
// https://git.kernel.org/pub/scm/bluetooth/bluez.git/tree/doc/device-api.txt
func (d *device) callDevice(method string, flags dbus.Flags, args ...any) *dbus.Call {
	return d.b.systemBus.Object(dbh.BluezBusName, d.path).
		Call(dbh.BluezDeviceIface+"."+method, flags, args...)
}

// convertAndStoreObjects converts a map of dbus objects to a common DeviceData structure,
// and adds it to the session store.
func (d *device) convertAndStoreObjects(values map[string]dbus.Variant) (bluetooth.DeviceData, error) {
	/*
		org.bluez.Device1
			Address => dbus.Variant{sig:dbus.Signature{str:"s"}, value:"2C:41:A1:49:37:CF"}
			Connected => dbus.Variant{sig:dbus.Signature{str:"b"}, value:true}
			Paired => dbus.Variant{sig:dbus.Signature{str:"b"}, value:true}
			Name => dbus.Variant{sig:dbus.Signature{str:"s"}, value:"Pixel 7"}
			Alias => dbus.Variant{sig:dbus.Signature{str:"s"}, value:"Pixel 7"}
			UUIDs => dbus.Variant{sig:dbus.Signature{str:"as"}, value:[]string{"00001103-0000-1000-8000-00805f9b34fb", "00001116-0000-1000-8000-00805f9b34fb"}}
	*/
	var device bluetooth.DeviceData

	if err := dbh.DecodeVariantMap(values, &device, "Name", "Address"); err != nil {
		return device, fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "device-map-decode",
				"path", string(d.path),
			),
			ftag.With(ftag.Internal),
			fmsg.With("Error converting device data"),
		)
	}

	device.Path = string(d.path)
	d.Address = device.Address

	d.b.paths.AddDbusPath(dbh.DbusPathDevice, d.path, device.Address)
	d.b.store.AddDevice(device)

	return device, nil
}
