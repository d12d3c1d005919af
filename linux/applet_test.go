//go:build linux

package linux

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/ftag"
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/api/errorkinds"
	"github.com/darkhz/blueapplet/loop"
)

type fakePlugins struct {
	configured map[string]bool
}

func (p *fakePlugins) Loaded() []string { return []string{"DBusService"} }

func (p *fakePlugins) Available() []string { return []string{"DBusService", "RecentConns"} }

func (p *fakePlugins) SetConfig(name string, enabled bool) error {
	if name != "RecentConns" {
		return fault.Wrap(errorkinds.ErrPluginNotFound, ftag.With(ftag.NotFound))
	}

	p.configured[name] = enabled

	return nil
}

type fakeDispatcher struct {
	connect    func(bluetooth.Target, bluetooth.Reply, bluetooth.ErrorReply) error
	disconnect func(bluetooth.Target, int, bluetooth.Reply, bluetooth.ErrorReply) error
}

func (d *fakeDispatcher) Connect(target bluetooth.Target, ok bluetooth.Reply, fail bluetooth.ErrorReply) error {
	return d.connect(target, ok, fail)
}

func (d *fakeDispatcher) Disconnect(target bluetooth.Target, port int, ok bluetooth.Reply, fail bluetooth.ErrorReply) error {
	return d.disconnect(target, port, ok, fail)
}

func newTestApplet(t *testing.T, dispatcher *fakeDispatcher, timeout time.Duration) (*appletService, *fakePlugins) {
	t.Helper()

	l := loop.New(loop.DefaultQueueSize)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)

	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})

	plugins := &fakePlugins{configured: map[string]bool{}}
	a := NewApplet(nil, l, plugins, dispatcher, timeout, zerolog.Nop())

	return a.service, plugins
}

const testDevice = dbus.ObjectPath("/org/bluez/hci0/dev_00_11_22_33_44_55")

func TestAppletQueryPlugins(t *testing.T) {
	s, _ := newTestApplet(t, &fakeDispatcher{}, time.Second)

	loaded, derr := s.QueryPlugins()
	require.Nil(t, derr)
	assert.Equal(t, []string{"DBusService"}, loaded)

	available, derr := s.QueryAvailablePlugins()
	require.Nil(t, derr)
	assert.Equal(t, []string{"DBusService", "RecentConns"}, available)
}

func TestAppletSetPluginConfig(t *testing.T) {
	s, plugins := newTestApplet(t, &fakeDispatcher{}, time.Second)

	require.Nil(t, s.SetPluginConfig("RecentConns", false))
	assert.Equal(t, map[string]bool{"RecentConns": false}, plugins.configured)

	derr := s.SetPluginConfig("Unknown", true)
	require.NotNil(t, derr)
	assert.Equal(t, ErrorNotFound, derr.Name)
}

func TestAppletConnectService(t *testing.T) {
	var received bluetooth.Target

	s, _ := newTestApplet(t, &fakeDispatcher{
		connect: func(target bluetooth.Target, ok bluetooth.Reply, _ bluetooth.ErrorReply) error {
			received = target

			go ok()

			return nil
		},
	}, time.Second)

	id := bluetooth.ServiceClassUUID(bluetooth.NapServiceClass)
	require.Nil(t, s.ConnectService(testDevice, id.String()))
	assert.Equal(t, bluetooth.Target{Path: string(testDevice), UUID: id}, received)
}

func TestAppletConnectServiceErrors(t *testing.T) {
	bluezErr := dbus.Error{Name: "org.bluez.Error.Failed", Body: []any{"br-connection-refused"}}

	tests := []struct {
		name    string
		uuid    string
		connect func(bluetooth.Target, bluetooth.Reply, bluetooth.ErrorReply) error
		errName string
	}{
		{
			name:    "invalid uuid",
			uuid:    "not-a-uuid",
			errName: ErrorInvalidArgument,
		},
		{
			name: "transport error",
			uuid: uuid.Nil.String(),
			connect: func(_ bluetooth.Target, _ bluetooth.Reply, fail bluetooth.ErrorReply) error {
				fail(fault.Wrap(bluezErr, ftag.With(ftag.Internal)))
				return nil
			},
			errName: "org.bluez.Error.Failed",
		},
		{
			name: "unsupported service",
			uuid: uuid.Nil.String(),
			connect: func(_ bluetooth.Target, _ bluetooth.Reply, fail bluetooth.ErrorReply) error {
				fail(errorkinds.ErrServiceNotSupported)
				return nil
			},
			errName: ErrorFailed,
		},
		{
			name: "contract violation",
			uuid: uuid.Nil.String(),
			connect: func(bluetooth.Target, bluetooth.Reply, bluetooth.ErrorReply) error {
				return fault.Wrap(errorkinds.ErrUnknownService, ftag.With(ftag.InvalidArgument))
			},
			errName: ErrorInvalidArgument,
		},
		{
			name: "dropped request",
			uuid: uuid.Nil.String(),
			connect: func(bluetooth.Target, bluetooth.Reply, bluetooth.ErrorReply) error {
				return nil
			},
			errName: ErrorNoReply,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s, _ := newTestApplet(t, &fakeDispatcher{connect: test.connect}, 50*time.Millisecond)

			derr := s.ConnectService(testDevice, test.uuid)
			require.NotNil(t, derr)
			assert.Equal(t, test.errName, derr.Name)
		})
	}
}

func TestAppletDisconnectService(t *testing.T) {
	var port int

	s, _ := newTestApplet(t, &fakeDispatcher{
		disconnect: func(_ bluetooth.Target, p int, ok bluetooth.Reply, _ bluetooth.ErrorReply) error {
			port = p
			ok()

			return nil
		},
	}, time.Second)

	id := bluetooth.ServiceClassUUID(bluetooth.DialupNetServiceClass).String()
	require.Nil(t, s.DisconnectService(testDevice, id, 2))
	assert.Equal(t, 2, port)

	derr := s.DisconnectService(testDevice, id, -1)
	require.NotNil(t, derr)
	assert.Equal(t, ErrorInvalidArgument, derr.Name)
}

func TestDBusError(t *testing.T) {
	assert.Nil(t, dbusError(nil))

	derr := dbusError(fault.Wrap(errorkinds.ErrPortNotFound, ftag.With(ftag.NotFound)))
	assert.Equal(t, ErrorNotFound, derr.Name)

	derr = dbusError(errors.New("failure"))
	assert.Equal(t, ErrorFailed, derr.Name)
	assert.Equal(t, []any{"failure"}, derr.Body)

	derr = dbusError(fault.Wrap(&dbus.Error{Name: "org.bluez.Error.InProgress"}))
	assert.Equal(t, "org.bluez.Error.InProgress", derr.Name)
}
