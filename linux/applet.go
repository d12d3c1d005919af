//go:build linux

package linux

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/rs/zerolog"

	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/api/errorkinds"
	dbh "github.com/darkhz/blueapplet/linux/dbushelper"
	"github.com/darkhz/blueapplet/loop"
)

// The names of the signals emitted by the applet.
const (
	SignalRfcommConnected       = "RfcommConnected"
	SignalRfcommDisconnected    = "RfcommDisconnected"
	SignalPluginDialogRequested = "PluginDialogRequested"
)

// The names of the errors returned by the applet.
const (
	ErrorFailed          = dbh.AppletIface + ".Error.Failed"
	ErrorNotFound        = dbh.AppletIface + ".Error.NotFound"
	ErrorInvalidArgument = dbh.AppletIface + ".Error.InvalidArgument"
	ErrorNoReply         = dbh.AppletIface + ".Error.NoReply"
)

// PluginHost provides the plugin state exposed by the applet.
type PluginHost interface {
	Loaded() []string
	Available() []string
	SetConfig(name string, enabled bool) error
}

// Dispatcher connects and disconnects devices and their services.
type Dispatcher interface {
	Connect(target bluetooth.Target, ok bluetooth.Reply, fail bluetooth.ErrorReply) error
	Disconnect(target bluetooth.Target, port int, ok bluetooth.Reply, fail bluetooth.ErrorReply) error
}

// Applet is the applet service exported on the session bus.
type Applet struct {
	conn *dbus.Conn

	loop       *loop.Loop
	plugins    PluginHost
	dispatcher Dispatcher

	timeout time.Duration
	logger  zerolog.Logger

	service *appletService
	sub     *bluetooth.Subscriber[bluetooth.SerialPortData]
}

// appletService holds the methods exported on the applet interface.
// Note that, all public methods are called by DBus clients only.
type appletService struct {
	a *Applet
}

// NewApplet returns a new applet service. Requests are run on the loop, and
// each method call waits for at most the timeout for the request outcome.
func NewApplet(
	conn *dbus.Conn,
	l *loop.Loop,
	plugins PluginHost,
	dispatcher Dispatcher,
	timeout time.Duration,
	logger zerolog.Logger,
) *Applet {
	a := &Applet{
		conn:       conn,
		loop:       l,
		plugins:    plugins,
		dispatcher: dispatcher,
		timeout:    timeout,
		logger:     logger.With().Str("component", "applet").Logger(),
	}
	a.service = &appletService{a: a}

	return a
}

// Export exports the applet service on the bus, and claims the applet bus name.
func (a *Applet) Export() error {
	if err := a.conn.Export(a.service, dbh.AppletPath, dbh.AppletIface); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "applet-export"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot export applet service"),
		)
	}

	node := &introspect.Node{
		Name: string(dbh.AppletPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    dbh.AppletIface,
				Methods: introspect.Methods(a.service),
				Signals: []introspect.Signal{
					{
						Name: SignalRfcommConnected,
						Args: []introspect.Arg{
							{Name: "device", Type: "o"},
							{Name: "uuid", Type: "s"},
							{Name: "port", Type: "i"},
						},
					},
					{
						Name: SignalRfcommDisconnected,
						Args: []introspect.Arg{
							{Name: "device", Type: "o"},
							{Name: "uuid", Type: "s"},
							{Name: "port", Type: "i"},
						},
					},
					{Name: SignalPluginDialogRequested},
				},
			},
		},
	}

	if err := a.conn.Export(introspect.NewIntrospectable(node), dbh.AppletPath, dbh.DbusIntrospectableIface); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "applet-export-introspect"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot export applet introspection data"),
		)
	}

	reply, err := a.conn.RequestName(dbh.AppletBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "applet-request-name"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot request applet bus name"),
		)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fault.Wrap(errorkinds.ErrSessionStart,
			fctx.With(context.Background(), "error_at", "applet-request-name-owner"),
			ftag.With(ftag.AlreadyExists),
			fmsg.With("Another applet instance owns "+dbh.AppletBusName),
		)
	}

	if sub, ok := bluetooth.SerialPortEvents().Subscribe(); ok {
		a.sub = sub
		go a.forwardSerialPortEvents(sub)
	}

	return nil
}

// Close releases the applet bus name and removes the exported service.
func (a *Applet) Close() error {
	if a.sub != nil {
		a.sub.Unsubscribe()
	}

	_ = a.conn.Export(nil, dbh.AppletPath, dbh.AppletIface)
	_ = a.conn.Export(nil, dbh.AppletPath, dbh.DbusIntrospectableIface)

	if _, err := a.conn.ReleaseName(dbh.AppletBusName); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "applet-release-name"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot release applet bus name"),
		)
	}

	return nil
}

// forwardSerialPortEvents emits a signal for every serial port opened or closed.
func (a *Applet) forwardSerialPortEvents(sub *bluetooth.Subscriber[bluetooth.SerialPortData]) {
	for ev := range sub.C {
		var name string

		switch ev.Action {
		case bluetooth.EventActionAdded:
			name = SignalRfcommConnected

		case bluetooth.EventActionRemoved:
			name = SignalRfcommDisconnected

		default:
			continue
		}

		if err := a.conn.Emit(dbh.AppletPath, dbh.AppletIface+"."+name,
			dbus.ObjectPath(ev.Data.Device), ev.Data.UUID.String(), int32(ev.Data.Port),
		); err != nil {
			a.logger.Warn().Err(err).Str("signal", name).Msg("Cannot emit signal")
		}
	}
}

// request starts a request on the loop, and waits for its outcome.
func (a *Applet) request(start func(ok bluetooth.Reply, fail bluetooth.ErrorReply) error) error {
	result := make(chan error, 1)
	reply := func(err error) {
		select {
		case result <- err:
		default:
		}
	}

	posted := a.loop.Post(func() {
		if err := start(func() { reply(nil) }, reply); err != nil {
			reply(err)
		}
	})
	if !posted {
		return fault.Wrap(errorkinds.ErrSessionNotExist,
			fctx.With(context.Background(), "error_at", "applet-request-post"),
			ftag.With(ftag.Internal),
			fmsg.With("Applet is shutting down"),
		)
	}

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	select {
	case err := <-result:
		return err

	case <-timer.C:
		return fault.Wrap(errorkinds.ErrNoReply,
			fctx.With(context.Background(),
				"error_at", "applet-request-timeout",
				"timeout", a.timeout.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("No reply was received for the request"),
		)
	}
}

// call runs a synchronous function on the loop, and waits for it to return.
func (a *Applet) call(fn func() error) error {
	return a.request(func(ok bluetooth.Reply, _ bluetooth.ErrorReply) error {
		if err := fn(); err != nil {
			return err
		}

		ok()

		return nil
	})
}

// target parses the device path and service UUID into a target.
func (a *Applet) target(path dbus.ObjectPath, serviceUUID string) (bluetooth.Target, error) {
	if !path.IsValid() {
		return bluetooth.Target{}, fault.Wrap(errorkinds.ErrDeviceNotFound,
			fctx.With(context.Background(),
				"error_at", "applet-target-path",
				"path", string(path),
			),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("Invalid device path"),
		)
	}

	target, err := bluetooth.NewTarget(string(path), serviceUUID)
	if err != nil {
		return target, fault.Wrap(errorkinds.ErrInvalidUUID,
			fctx.With(context.Background(),
				"error_at", "applet-target-uuid",
				"path", string(path),
				"uuid", serviceUUID,
			),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("Invalid service UUID: "+err.Error()),
		)
	}

	return target, nil
}

// dbusError converts an error to a DBus error. Errors returned by other
// DBus services are returned as is.
func dbusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}

	var derr dbus.Error
	if errors.As(err, &derr) {
		return &dbus.Error{Name: derr.Name, Body: derr.Body}
	}

	var derrp *dbus.Error
	if errors.As(err, &derrp) && derrp != nil {
		return &dbus.Error{Name: derrp.Name, Body: derrp.Body}
	}

	name := ErrorFailed

	switch {
	case errors.Is(err, errorkinds.ErrNoReply):
		name = ErrorNoReply

	case ftag.Get(err) == ftag.NotFound:
		name = ErrorNotFound

	case ftag.Get(err) == ftag.InvalidArgument:
		name = ErrorInvalidArgument
	}

	return dbus.NewError(name, []any{err.Error()})
}

// QueryPlugins returns the names of the loaded plugins.
func (s *appletService) QueryPlugins() ([]string, *dbus.Error) {
	return s.a.plugins.Loaded(), nil
}

// QueryAvailablePlugins returns the names of all known plugins.
func (s *appletService) QueryAvailablePlugins() ([]string, *dbus.Error) {
	return s.a.plugins.Available(), nil
}

// SetPluginConfig loads or unloads a plugin.
func (s *appletService) SetPluginConfig(name string, enabled bool) *dbus.Error {
	err := s.a.call(func() error {
		return s.a.plugins.SetConfig(name, enabled)
	})
	if err != nil {
		s.a.logger.Error().Err(err).Str("plugin", name).Bool("enabled", enabled).Msg("SetPluginConfig failed")
	}

	return dbusError(err)
}

// ConnectService connects a device, or one of its services.
func (s *appletService) ConnectService(path dbus.ObjectPath, serviceUUID string) *dbus.Error {
	target, err := s.a.target(path, serviceUUID)
	if err != nil {
		return dbusError(err)
	}

	err = s.a.request(func(ok bluetooth.Reply, fail bluetooth.ErrorReply) error {
		return s.a.dispatcher.Connect(target, ok, fail)
	})
	if err != nil {
		s.a.logger.Debug().Err(err).Str("path", target.Path).Str("uuid", serviceUUID).Msg("ConnectService failed")
	}

	return dbusError(err)
}

// DisconnectService disconnects a device, or one of its services.
// The port identifies the serial port opened for the service, if any.
func (s *appletService) DisconnectService(path dbus.ObjectPath, serviceUUID string, port float64) *dbus.Error {
	target, err := s.a.target(path, serviceUUID)
	if err != nil {
		return dbusError(err)
	}

	if math.IsNaN(port) || math.IsInf(port, 0) || port < 0 || port > math.MaxInt32 {
		return dbusError(fault.Wrap(errorkinds.ErrPortNotFound,
			fctx.With(context.Background(),
				"error_at", "applet-disconnect-port",
				"path", target.Path,
			),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("Invalid port"),
		))
	}

	err = s.a.request(func(ok bluetooth.Reply, fail bluetooth.ErrorReply) error {
		return s.a.dispatcher.Disconnect(target, int(port), ok, fail)
	})
	if err != nil {
		s.a.logger.Debug().Err(err).Str("path", target.Path).Str("uuid", serviceUUID).Msg("DisconnectService failed")
	}

	return dbusError(err)
}

// OpenPluginDialog asks the user interface to show the plugin dialog.
func (s *appletService) OpenPluginDialog() *dbus.Error {
	bluetooth.PluginDialogEvents().PublishAdded(bluetooth.PluginDialogData{})

	if err := s.a.conn.Emit(dbh.AppletPath, dbh.AppletIface+"."+SignalPluginDialogRequested); err != nil {
		return dbusError(fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "applet-plugindialog-emit"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot request plugin dialog"),
		))
	}

	return nil
}
