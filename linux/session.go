//go:build linux

package linux

import (
	"context"
	"maps"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/api/errorkinds"
	sstore "github.com/darkhz/blueapplet/api/helpers/sessionstore"
	dbh "github.com/darkhz/blueapplet/linux/dbushelper"
	"github.com/darkhz/blueapplet/loop"
)

// BluezSession describes a Linux Bluez DBus session.
type BluezSession struct {
	systemBus  *dbus.Conn
	sessionBus *dbus.Conn

	loop   *loop.Loop
	logger zerolog.Logger

	serial  *serialTransport
	network *networkTransport

	paths *dbh.DbusPathConverter
	store sstore.SessionStore
}

// Start attempts to initialize and start interfacing with the Bluez daemon via DBus.
// Results of asynchronous calls are delivered on the provided loop.
func (b *BluezSession) Start(l *loop.Loop, logger zerolog.Logger) error {
	systemBus, err := dbus.SystemBus()
	if err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "start-systembus"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot initialize system DBus"),
		)
	}

	sessionBus, err := dbus.SessionBus()
	if err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "start-sessionbus"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot start session DBus"),
		)
	}

	*b = BluezSession{
		systemBus:  systemBus,
		sessionBus: sessionBus,
		loop:       l,
		logger:     logger.With().Str("component", "bluez").Logger(),
		paths:      dbh.NewPathConverter(),
		store:      sstore.NewSessionStore(),
	}

	b.serial = newSerialTransport(b)
	b.network = &networkTransport{b: b}

	if err := b.refreshStore(); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "refresh-sessionstore"),
			ftag.With(ftag.Internal),
			fmsg.With("Error while initializing object cache"),
		)
	}

	go b.watchBluezSystemBus()

	return nil
}

// Stop attempts to stop interfacing with the Bluez daemon.
// All open serial ports are closed.
func (b *BluezSession) Stop() error {
	if b.systemBus == nil {
		return fault.Wrap(errorkinds.ErrSessionNotExist,
			fctx.With(context.Background(), "error_at", "stop-session"),
			ftag.With(ftag.Internal),
			fmsg.With("Session was not started"),
		)
	}

	b.serial.closeAll()

	if err := b.sessionBus.Close(); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "stop-sessionbus"),
			ftag.With(ftag.Internal),
			fmsg.With("Error while closing session bus"),
		)
	}

	if err := b.systemBus.Close(); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "stop-systembus"),
			ftag.With(ftag.Internal),
			fmsg.With("Error while closing system bus"),
		)
	}

	return nil
}

// SessionBus returns the session bus connection.
func (b *BluezSession) SessionBus() *dbus.Conn {
	return b.sessionBus
}

// Device returns a function call interface to invoke device related functions.
func (b *BluezSession) Device(path string) (bluetooth.Device, error) {
	data, err := b.store.Device(path)
	if err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "session-device-store",
				"path", path,
			),
			ftag.With(ftag.NotFound),
			fmsg.With("Device does not exist"),
		)
	}

	return &device{b: b, path: dbus.ObjectPath(path), Address: data.Address}, nil
}

// Service resolves a service advertised by the device at the provided path.
func (b *BluezSession) Service(path string, id uuid.UUID) (bluetooth.Service, error) {
	data, err := b.store.Device(path)
	if err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "session-service-device",
				"path", path,
				"uuid", id.String(),
			),
			ftag.With(ftag.NotFound),
			fmsg.With("Device does not exist"),
		)
	}

	if !data.Advertises(id) {
		return nil, fault.Wrap(errorkinds.ErrUnknownService,
			fctx.With(context.Background(),
				"error_at", "session-service-uuid",
				"path", path,
				"uuid", id.String(),
			),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("Device does not advertise the service"),
		)
	}

	return bluetooth.NewService(bluetooth.NewServiceInfo(data, id), b.serial, b.network), nil
}

// SerialPorts returns the serial ports opened by this session.
func (b *BluezSession) SerialPorts() SerialPorts {
	return b.serial
}

// deviceInternal returns a device-related function call interface for internal use.
func (b *BluezSession) deviceInternal(path dbus.ObjectPath) *device {
	return &device{b: b, path: path}
}

// refreshStore refreshes the session store with device objects
// that are retrieved from the Bluez DBus interface (system bus).
func (b *BluezSession) refreshStore() error {
	objects := make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant)
	if err := b.systemBus.Object(dbh.BluezBusName, "/").
		Call(dbh.DbusObjectManagerIface, 0).
		Store(&objects); err != nil {
		return err
	}

	for path, object := range objects {
		values, ok := object[dbh.BluezDeviceIface]
		if !ok {
			continue
		}

		if _, err := b.deviceInternal(path).convertAndStoreObjects(values); err != nil {
			return err
		}
	}

	for _, device := range b.store.Devices() {
		b.logger.Debug().
			Str("path", device.Path).
			Str("address", device.Address.String()).
			Bool("connected", device.Connected).
			Msg("Device loaded")
	}

	return nil
}

// watchBluezSystemBus will register a signal to receive events from the bluez dbus interface.
func (b *BluezSession) watchBluezSystemBus() {
	signalMatch := "type='signal', sender='org.bluez'"
	b.systemBus.BusObject().Call(dbh.DbusSignalAddMatchIface, 0, signalMatch)

	ch := make(chan *dbus.Signal, 1)
	b.systemBus.Signal(ch)

	for signal := range ch {
		b.parseSignalData(signal)
	}
}

// parseSignalData parses bluez DBus signal data.
func (b *BluezSession) parseSignalData(signal *dbus.Signal) {
	switch signal.Name {
	case dbh.DbusSignalPropertyChangedIface:
		if len(signal.Body) < 2 {
			return
		}

		objectInterfaceName, ok := signal.Body[0].(string)
		if !ok || objectInterfaceName != dbh.BluezDeviceIface {
			return
		}

		propertyMap, ok := signal.Body[1].(map[string]dbus.Variant)
		if !ok {
			return
		}

		if _, err := b.store.UpdateDevice(string(signal.Path), dbh.DecodeDeviceFunc(propertyMap)); err != nil {
			dbh.PublishSignalError(err, signal,
				"Bluez event handler error",
				"error_at", "pchanged-device-update",
			)
		}

	case dbh.DbusSignalInterfacesAddedIface:
		if len(signal.Body) < 2 {
			return
		}

		objectPath, ok := signal.Body[0].(dbus.ObjectPath)
		if !ok {
			return
		}

		nestedPropertyMap, ok := signal.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return
		}

		propertyMap, ok := nestedPropertyMap[dbh.BluezDeviceIface]
		if !ok {
			return
		}

		merged := maps.Clone(propertyMap)
		for iftype, values := range nestedPropertyMap {
			if iftype == dbh.BluezDeviceIface {
				continue
			}

			for key, value := range values {
				if _, exists := merged[key]; !exists {
					merged[key] = value
				}
			}
		}

		if _, err := b.deviceInternal(objectPath).convertAndStoreObjects(merged); err != nil {
			dbh.PublishSignalError(err, signal,
				"Bluez event handler error",
				"error_at", "padded-device-decode",
			)
		}

	case dbh.DbusSignalInterfacesRemovedIface:
		if len(signal.Body) < 2 {
			return
		}

		objectPath, ok := signal.Body[0].(dbus.ObjectPath)
		if !ok {
			return
		}

		ifaceNames, ok := signal.Body[1].([]string)
		if !ok {
			return
		}

		for _, ifaceName := range ifaceNames {
			if ifaceName != dbh.BluezDeviceIface {
				continue
			}

			if _, ok := b.paths.Address(dbh.DbusPathDevice, objectPath); !ok {
				dbh.PublishSignalError(errorkinds.ErrDeviceNotFound, signal,
					"Bluez event handler error",
					"error_at", "premoved-device-address",
				)

				return
			}

			b.serial.closeDevice(objectPath)
			b.store.RemoveDevice(string(objectPath))
			b.paths.RemoveDevice(objectPath)
		}
	}
}
