//go:build linux

package ppp

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/api/errorkinds"
	"github.com/darkhz/blueapplet/loop"
	"github.com/darkhz/blueapplet/plugin"
)

type fakeSerial struct {
	port         int
	err          error
	disconnected chan int
}

func (f *fakeSerial) ConnectSerial(_ bluetooth.ServiceInfo, reply bluetooth.PortReply, fail bluetooth.ErrorReply) {
	if f.err != nil {
		fail(f.err)
		return
	}

	reply(f.port)
}

func (f *fakeSerial) DisconnectSerial(_ bluetooth.ServiceInfo, port int, ok bluetooth.Reply, _ bluetooth.ErrorReply) {
	f.disconnected <- port
	ok()
}

type fakePorts struct{}

func (fakePorts) PortFile(int) (*os.File, error) {
	return nil, errorkinds.ErrPortNotFound
}

func newTestPlugin(t *testing.T) *PPPSupport {
	t.Helper()

	l := loop.New(loop.DefaultQueueSize)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)

	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})

	return New(l, fakePorts{}, Settings{}, zerolog.Nop())
}

func serialService(class uint16, transport *fakeSerial) *bluetooth.SerialService {
	info := bluetooth.NewServiceInfo(bluetooth.DeviceData{Path: "/org/bluez/hci0/dev_00_11_22_33_44_55"}, bluetooth.ServiceClassUUID(class))

	return bluetooth.NewService(info, transport, nil).(*bluetooth.SerialService)
}

func TestConnectIgnoresSerialPort(t *testing.T) {
	p := newTestPlugin(t)
	transport := &fakeSerial{disconnected: make(chan int, 1)}

	claimed := p.connect(serialService(bluetooth.SerialPortServiceClass, transport), func(int) {}, func(error) {})
	assert.False(t, claimed)
}

func TestConnectTunnelFails(t *testing.T) {
	p := newTestPlugin(t)
	failure := errors.New("connection refused")
	transport := &fakeSerial{err: failure, disconnected: make(chan int, 1)}

	var received error
	claimed := p.connect(serialService(bluetooth.DialupNetServiceClass, transport), func(int) {
		t.Error("reply must not be called")
	}, func(err error) {
		received = err
	})

	assert.True(t, claimed)
	assert.ErrorIs(t, received, failure)
}

func TestConnectDaemonFails(t *testing.T) {
	p := newTestPlugin(t)
	transport := &fakeSerial{port: 3, disconnected: make(chan int, 1)}

	result := make(chan error, 1)
	claimed := p.connect(serialService(bluetooth.DialupNetServiceClass, transport), func(int) {
		result <- nil
	}, func(err error) {
		result <- err
	})
	require.True(t, claimed)

	select {
	case err := <-result:
		assert.ErrorIs(t, err, errorkinds.ErrPPPStart)
		assert.ErrorIs(t, err, errorkinds.ErrPortNotFound)

	case <-time.After(time.Second):
		require.FailNow(t, "no outcome was delivered")
	}

	assert.Equal(t, 3, <-transport.disconnected)
	assert.Zero(t, p.daemons.Size())
}

func TestLoadWithoutDaemon(t *testing.T) {
	p := newTestPlugin(t)
	p.settings.Command = "/nonexistent/pppd"

	r := plugin.NewRegistry()
	assert.Error(t, p.Load(r))
	assert.Empty(t, r.RFCOMMConnect.Handlers())
	assert.False(t, p.DefaultEnabled())
}

func TestArgs(t *testing.T) {
	args := Args("*99***1#")

	assert.Contains(t, args, "nodetach")
	assert.Contains(t, args, "notty")
	require.Equal(t, "connect", args[len(args)-2])
	assert.Contains(t, args[len(args)-1], "ATDT*99***1#")
}
