//go:build linux

package cmd

import (
	"context"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/godbus/dbus/v5"

	"github.com/darkhz/blueapplet/api/errorkinds"
	"github.com/darkhz/blueapplet/config"
	dbh "github.com/darkhz/blueapplet/linux/dbushelper"
)

// clientTimeout is the time a client waits for a method call to return.
// It exceeds the default reply timeout of the applet.
const clientTimeout = config.DefaultReplyTimeout + 5*time.Second

// client calls the methods of a running applet over the session bus.
type client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// withClient connects to the running applet, and runs fn with the client.
func withClient(fn func(c *client) error) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "client-sessionbus"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot connect to session DBus"),
		)
	}
	defer conn.Close()

	running, err := dbh.BusNameAvailable(conn, dbh.AppletBusName)
	if err != nil || !running {
		return fault.Wrap(errorkinds.ErrSessionNotExist,
			fctx.With(context.Background(), "error_at", "client-applet-running"),
			ftag.With(ftag.NotFound),
			fmsg.With("The applet is not running"),
		)
	}

	return fn(&client{
		conn: conn,
		obj:  conn.Object(dbh.AppletBusName, dbh.AppletPath),
	})
}

// call calls a method of the applet, and stores its return values in ret.
func (c *client) call(method string, args []any, ret ...any) error {
	ctx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	if err := c.obj.CallWithContext(ctx, dbh.AppletIface+"."+method, 0, args...).Store(ret...); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "client-call", "method", method),
			ftag.With(ftag.Internal),
			fmsg.With("Method call "+method+" failed"),
		)
	}

	return nil
}

func (c *client) plugins(method string) ([]string, error) {
	var plugins []string

	return plugins, c.call(method, nil, &plugins)
}

func (c *client) setPluginConfig(name string, enabled bool) error {
	return c.call("SetPluginConfig", []any{name, enabled})
}

func (c *client) connectService(path, serviceUUID string) error {
	return c.call("ConnectService", []any{dbus.ObjectPath(path), serviceUUID})
}

func (c *client) disconnectService(path, serviceUUID string, port int) error {
	return c.call("DisconnectService", []any{dbus.ObjectPath(path), serviceUUID, float64(port)})
}

func (c *client) openPluginDialog() error {
	return c.call("OpenPluginDialog", nil)
}
