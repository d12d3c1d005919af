//go:build linux

package linux

import (
	"context"
	"errors"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"

	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/api/errorkinds"
	dbh "github.com/darkhz/blueapplet/linux/dbushelper"
)

// newConnectionTimeout is the maximum time to wait for BlueZ to hand over
// the RFCOMM socket after the profile was connected.
const newConnectionTimeout = 10 * time.Second

// SerialPorts gives access to the serial ports opened by a session.
type SerialPorts interface {
	// PortFile returns the RFCOMM socket of an open serial port.
	PortFile(port int) (*os.File, error)

	// Ports returns the open serial ports, ordered by port number.
	Ports() []bluetooth.SerialPortData
}

// serialPort is an open serial port.
type serialPort struct {
	info    bluetooth.ServiceInfo
	profile *serialProfile
	file    *os.File
}

// serialTransport opens and closes serial ports by registering a client
// profile with BlueZ for each connection.
type serialTransport struct {
	b *BluezSession

	ports *xsync.MapOf[int, serialPort]
	next  atomic.Int64
}

// serialProfile describes a BlueZ Profile1 object.
// Note that, all public methods are exported to the Bluez Profile Manager
// via the system bus, and hence is called by the Profile Manager only.
type serialProfile struct {
	t    *serialTransport
	path dbus.ObjectPath
	info bluetooth.ServiceInfo

	conn chan *os.File
	port atomic.Int64
}

func newSerialTransport(b *BluezSession) *serialTransport {
	return &serialTransport{
		b:     b,
		ports: xsync.NewMapOf[int, serialPort](),
	}
}

// ConnectSerial opens a serial port to the service, and replies with its port number.
func (t *serialTransport) ConnectSerial(info bluetooth.ServiceInfo, reply bluetooth.PortReply, fail bluetooth.ErrorReply) {
	var port int

	t.b.loop.Go(func() error {
		var err error

		port, err = t.connect(info)

		return err
	}, func() { reply(port) }, fail)
}

// DisconnectSerial closes a serial port opened to the service.
func (t *serialTransport) DisconnectSerial(info bluetooth.ServiceInfo, port int, ok bluetooth.Reply, fail bluetooth.ErrorReply) {
	t.b.loop.Go(func() error {
		return t.disconnect(info, port)
	}, ok, fail)
}

// PortFile returns the RFCOMM socket of an open serial port.
func (t *serialTransport) PortFile(port int) (*os.File, error) {
	sp, ok := t.ports.Load(port)
	if !ok {
		return nil, fault.Wrap(errorkinds.ErrPortNotFound,
			fctx.With(context.Background(),
				"error_at", "serial-portfile-load",
			),
			ftag.With(ftag.NotFound),
			fmsg.With("Serial port is not open"),
		)
	}

	return sp.file, nil
}

// Ports returns the open serial ports, ordered by port number.
func (t *serialTransport) Ports() []bluetooth.SerialPortData {
	ports := make([]bluetooth.SerialPortData, 0, t.ports.Size())

	t.ports.Range(func(port int, sp serialPort) bool {
		ports = append(ports, bluetooth.SerialPortData{ServiceInfo: sp.info, Port: port})

		return true
	})

	slices.SortFunc(ports, func(a, b bluetooth.SerialPortData) int {
		return a.Port - b.Port
	})

	return ports
}

// connect registers a profile for the service, connects it and waits for
// BlueZ to hand over the RFCOMM socket.
func (t *serialTransport) connect(info bluetooth.ServiceInfo) (int, error) {
	profile := &serialProfile{
		t:    t,
		path: dbh.NewProfilePath(),
		info: info,
		conn: make(chan *os.File, 1),
	}
	profile.port.Store(-1)

	if err := profile.register(); err != nil {
		return -1, fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "serial-connect-register",
				"address", info.Address.String(),
				"uuid", info.UUID.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot register serial profile"),
		)
	}

	d := &device{b: t.b, path: dbus.ObjectPath(info.Device), Address: info.Address}
	if err := d.connectProfile(info.UUID); err != nil {
		profile.unregister()
		drainConnection(profile.conn)

		return -1, err
	}

	var file *os.File

	select {
	case file = <-profile.conn:
	case <-time.After(newConnectionTimeout):
		profile.unregister()
		drainConnection(profile.conn)

		return -1, fault.Wrap(errorkinds.ErrNoReply,
			fctx.With(context.Background(),
				"error_at", "serial-connect-newconnection",
				"address", info.Address.String(),
				"uuid", info.UUID.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("BlueZ did not hand over the serial connection"),
		)
	}

	port := int(t.next.Inc() - 1)
	profile.port.Store(int64(port))

	t.ports.Store(port, serialPort{info: info, profile: profile, file: file})
	t.b.paths.AddDbusPath(dbh.DbusPathProfile, profile.path, info.Address)

	t.b.logger.Info().
		Str("address", info.Address.String()).
		Str("service", info.Name).
		Int("port", port).
		Msg("Serial port opened")
	bluetooth.SerialPortEvents().PublishAdded(bluetooth.SerialPortData{ServiceInfo: info, Port: port})

	return port, nil
}

// disconnect closes the serial port, and disconnects the profile.
func (t *serialTransport) disconnect(info bluetooth.ServiceInfo, port int) error {
	sp, ok := t.ports.Load(port)
	if !ok || sp.info.Device != info.Device || sp.info.UUID != info.UUID {
		return fault.Wrap(errorkinds.ErrPortNotFound,
			fctx.With(context.Background(),
				"error_at", "serial-disconnect-port",
				"address", info.Address.String(),
				"uuid", info.UUID.String(),
			),
			ftag.With(ftag.NotFound),
			fmsg.With("Serial port is not open for this service"),
		)
	}

	if err := t.release(port); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "serial-disconnect-release",
				"address", info.Address.String(),
				"port", strconv.Itoa(port),
			),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot close serial port"),
		)
	}

	d := &device{b: t.b, path: dbus.ObjectPath(info.Device), Address: info.Address}

	return d.disconnectProfile(info.UUID)
}

// release closes the serial port and unregisters its profile.
// The port is removed even if closing its socket fails.
func (t *serialTransport) release(port int) error {
	sp, ok := t.ports.LoadAndDelete(port)
	if !ok {
		return nil
	}

	var closeErr error
	if err := sp.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		closeErr = err
	}

	if sp.profile != nil {
		sp.profile.unregister()
		t.b.paths.RemoveDbusPath(dbh.DbusPathProfile, sp.profile.path)
	}

	t.b.logger.Info().
		Str("address", sp.info.Address.String()).
		Str("service", sp.info.Name).
		Int("port", port).
		Msg("Serial port closed")
	bluetooth.SerialPortEvents().PublishRemoved(bluetooth.SerialPortData{ServiceInfo: sp.info, Port: port})

	return closeErr
}

// releaseUnattended releases a port closed without a caller waiting on the
// result, and publishes any error to the error event stream.
func (t *serialTransport) releaseUnattended(port int, cause string) {
	if err := t.release(port); err != nil {
		dbh.PublishError(err, "Cannot close serial port",
			"error_at", "serial-"+cause+"-release",
			"port", strconv.Itoa(port),
		)
	}
}

// closeDevice releases all serial ports opened to the device.
func (t *serialTransport) closeDevice(path dbus.ObjectPath) {
	t.ports.Range(func(port int, sp serialPort) bool {
		if sp.info.Device == string(path) {
			t.releaseUnattended(port, "device-removed")
		}

		return true
	})
}

// closeAll releases all serial ports.
func (t *serialTransport) closeAll() {
	t.ports.Range(func(port int, _ serialPort) bool {
		t.releaseUnattended(port, "session-stop")

		return true
	})
}

// drainConnection closes a socket that was handed over after the
// wait for it was abandoned.
func drainConnection(conn chan *os.File) {
	select {
	case file := <-conn:
		file.Close()

	default:
	}
}

// register exports the profile and registers it with the Bluez Profile Manager.
func (p *serialProfile) register() error {
	bus := p.t.b.systemBus

	if err := bus.Export(p, p.path, dbh.BluezProfileIface); err != nil {
		return err
	}

	node := &introspect.Node{
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    dbh.BluezProfileIface,
				Methods: introspect.Methods(p),
			},
		},
	}

	if err := bus.Export(introspect.NewIntrospectable(node), p.path, dbh.DbusIntrospectableIface); err != nil {
		return err
	}

	options := map[string]dbus.Variant{
		"Name":        dbus.MakeVariant(p.info.Name),
		"Role":        dbus.MakeVariant("client"),
		"AutoConnect": dbus.MakeVariant(false),
	}

	return p.callProfileManager("RegisterProfile", p.path, p.info.UUID.String(), options).Store()
}

// unregister unregisters the profile, and removes its exported objects.
func (p *serialProfile) unregister() {
	bus := p.t.b.systemBus

	if err := p.callProfileManager("UnregisterProfile", p.path).Store(); err != nil {
		p.t.b.logger.Debug().Err(err).Str("profile", string(p.path)).Msg("Cannot unregister serial profile")
	}

	_ = bus.Export(nil, p.path, dbh.BluezProfileIface)
	_ = bus.Export(nil, p.path, dbh.DbusIntrospectableIface)
}

// callProfileManager is used to interact with the bluez ProfileManager dbus interface.
// https://git.kernel.org/pub/scm/bluetooth/bluez.git/tree/doc/org.bluez.ProfileManager.rst
func (p *serialProfile) callProfileManager(method string, args ...any) *dbus.Call {
	return p.t.b.systemBus.Object(dbh.BluezBusName, dbh.BluezProfileManagerPath).
		Call(dbh.BluezProfileManagerIface+"."+method, 0, args...)
}

// Release is called when the profile is unregistered by BlueZ.
func (p *serialProfile) Release() *dbus.Error {
	return nil
}

// NewConnection is called by BlueZ once the RFCOMM socket for the profile is connected.
func (p *serialProfile) NewConnection(device dbus.ObjectPath, fd dbus.UnixFD, _ map[string]dbus.Variant) *dbus.Error {
	file := os.NewFile(uintptr(fd), string(device))

	select {
	case p.conn <- file:
		return nil

	default:
		file.Close()

		return dbus.MakeFailedError(errors.New("connection already established"))
	}
}

// RequestDisconnection is called by BlueZ when the remote device closes the connection.
func (p *serialProfile) RequestDisconnection(_ dbus.ObjectPath) *dbus.Error {
	port := int(p.port.Load())
	if port < 0 {
		return nil
	}

	p.t.b.loop.Post(func() {
		p.t.releaseUnattended(port, "requestdisconnection")
	})

	return nil
}
