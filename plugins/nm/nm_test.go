package nm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/loop"
	"github.com/darkhz/blueapplet/plugin"
)

type fakeNetwork struct {
	connected    chan bluetooth.NetworkType
	disconnected chan bluetooth.MacAddress
	err          error
}

func newFakeNetwork(err error) *fakeNetwork {
	return &fakeNetwork{
		connected:    make(chan bluetooth.NetworkType, 1),
		disconnected: make(chan bluetooth.MacAddress, 1),
		err:          err,
	}
}

func (f *fakeNetwork) Connect(_ bluetooth.ServiceInfo, nt bluetooth.NetworkType) error {
	f.connected <- nt
	return f.err
}

func (f *fakeNetwork) Disconnect(address bluetooth.MacAddress) error {
	f.disconnected <- address
	return f.err
}

func newLoop(t *testing.T) *loop.Loop {
	t.Helper()

	l := loop.New(loop.DefaultQueueSize)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)

	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})

	return l
}

func service(t *testing.T, class uint16) bluetooth.Service {
	t.Helper()

	address, err := bluetooth.ParseMAC("00:11:22:33:44:55")
	require.NoError(t, err)

	device := bluetooth.DeviceData{Path: "/org/bluez/hci0/dev_00_11_22_33_44_55", Name: "Phone", Address: address}

	return bluetooth.NewService(bluetooth.NewServiceInfo(device, bluetooth.ServiceClassUUID(class)), nil, nil)
}

func waitResult(t *testing.T, result chan error) error {
	t.Helper()

	select {
	case err := <-result:
		return err

	case <-time.After(time.Second):
		require.FailNow(t, "no outcome was delivered")
	}

	return nil
}

func TestBridgeClaims(t *testing.T) {
	tests := []struct {
		name    string
		bridge  func(*loop.Loop, OpenFunc) *Bridge
		class   uint16
		claimed bool
		nt      bluetooth.NetworkType
	}{
		{"dun claims dialup", dunBridge, bluetooth.DialupNetServiceClass, true, bluetooth.NetworkDun},
		{"dun ignores serial port", dunBridge, bluetooth.SerialPortServiceClass, false, ""},
		{"dun ignores network", dunBridge, bluetooth.NapServiceClass, false, ""},
		{"pan claims network", panBridge, bluetooth.NapServiceClass, true, bluetooth.NetworkPanu},
		{"pan claims group network", panBridge, bluetooth.GnServiceClass, true, bluetooth.NetworkPanu},
		{"pan ignores dialup", panBridge, bluetooth.DialupNetServiceClass, false, ""},
		{"pan ignores audio", panBridge, bluetooth.AudioSinkServiceClass, false, ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			network := newFakeNetwork(nil)
			b := test.bridge(newLoop(t), func() (bluetooth.Network, error) { return network, nil })

			r := plugin.NewRegistry()
			require.NoError(t, b.Load(r))

			result := make(chan error, 1)
			claimed := plugin.Any(r.ServiceConnect, func(h plugin.ServiceHandler) bool {
				return h(service(t, test.class), func() { result <- nil }, func(err error) { result <- err })
			})
			require.Equal(t, test.claimed, claimed)

			if !test.claimed {
				assert.Empty(t, network.connected)
				return
			}

			require.NoError(t, waitResult(t, result))
			assert.Equal(t, test.nt, <-network.connected)
		})
	}
}

func TestBridgeDisconnectFails(t *testing.T) {
	failure := errors.New("deactivate failed")
	network := newFakeNetwork(failure)

	b := NewPANSupport(newLoop(t), func() (bluetooth.Network, error) { return network, nil }, zerolog.Nop())

	r := plugin.NewRegistry()
	require.NoError(t, b.Load(r))

	svc := service(t, bluetooth.NapServiceClass)
	result := make(chan error, 1)
	claimed := plugin.Any(r.ServiceDisconnect, func(h plugin.ServiceHandler) bool {
		return h(svc, func() { result <- nil }, func(err error) { result <- err })
	})
	require.True(t, claimed)

	assert.ErrorIs(t, waitResult(t, result), failure)
	assert.Equal(t, svc.Info().Address, <-network.disconnected)
}

func TestBridgeLoadFails(t *testing.T) {
	failure := errors.New("no network manager")
	b := NewDUNSupport(newLoop(t), func() (bluetooth.Network, error) { return nil, failure }, zerolog.Nop())

	r := plugin.NewRegistry()
	assert.ErrorIs(t, b.Load(r), failure)
	assert.Empty(t, r.ServiceConnect.Handlers())
	assert.Equal(t, DUNName, b.Name())
}

func TestBridgeUnloaded(t *testing.T) {
	network := newFakeNetwork(nil)
	b := NewDUNSupport(newLoop(t), func() (bluetooth.Network, error) { return network, nil }, zerolog.Nop())

	r := plugin.NewRegistry()
	require.NoError(t, b.Load(r))
	require.NoError(t, b.Unload())

	assert.False(t, b.connect(service(t, bluetooth.DialupNetServiceClass), func() {}, func(error) {}))
}

func dunBridge(l *loop.Loop, open OpenFunc) *Bridge {
	return NewDUNSupport(l, open, zerolog.Nop())
}

func panBridge(l *loop.Loop, open OpenFunc) *Bridge {
	return NewPANSupport(l, open, zerolog.Nop())
}
