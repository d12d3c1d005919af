//go:build linux

package linux

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/api/errorkinds"
	dbh "github.com/darkhz/blueapplet/linux/dbushelper"
)

const (
	phonePath  = "/org/bluez/hci0/dev_00_11_22_33_44_55"
	tabletPath = "/org/bluez/hci0/dev_66_77_88_99_AA_BB"
)

var (
	serialUUID = bluetooth.ServiceClassUUID(bluetooth.SerialPortServiceClass)
	dialupUUID = bluetooth.ServiceClassUUID(bluetooth.DialupNetServiceClass)
)

func newTestSerialTransport(t *testing.T) *serialTransport {
	t.Helper()

	return newSerialTransport(&BluezSession{
		paths:  dbh.NewPathConverter(),
		logger: zerolog.Nop(),
	})
}

// openTestPort adds an open port backed by a pipe to the transport.
func openTestPort(t *testing.T, st *serialTransport, port int, device string, id uuid.UUID) *os.File {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})

	st.ports.Store(port, serialPort{
		info: bluetooth.ServiceInfo{Device: device, UUID: id, Name: "Serial Port"},
		file: r,
	})

	return r
}

func TestSerialDisconnectMismatch(t *testing.T) {
	st := newTestSerialTransport(t)
	openTestPort(t, st, 0, phonePath, serialUUID)

	for name, info := range map[string]bluetooth.ServiceInfo{
		"unknown port": {Device: phonePath, UUID: serialUUID},
		"other device": {Device: tabletPath, UUID: serialUUID},
		"other uuid":   {Device: phonePath, UUID: dialupUUID},
	} {
		t.Run(name, func(t *testing.T) {
			port := 0
			if name == "unknown port" {
				port = 7
			}

			err := st.disconnect(info, port)
			assert.ErrorIs(t, err, errorkinds.ErrPortNotFound)
		})
	}

	_, ok := st.ports.Load(0)
	assert.True(t, ok, "a mismatched disconnect must not close the port")
}

func TestSerialRelease(t *testing.T) {
	st := newTestSerialTransport(t)
	file := openTestPort(t, st, 2, phonePath, serialUUID)

	sub, active := bluetooth.SerialPortEvents().Subscribe()
	require.True(t, active)
	defer sub.Unsubscribe()

	require.NoError(t, st.release(2))
	require.NoError(t, st.release(2))

	_, err := st.PortFile(2)
	assert.ErrorIs(t, err, errorkinds.ErrPortNotFound)
	assert.ErrorIs(t, file.Close(), os.ErrClosed)

	select {
	case ev := <-sub.C:
		assert.Equal(t, bluetooth.EventActionRemoved, ev.Action)
		assert.Equal(t, 2, ev.Data.Port)

	case <-time.After(time.Second):
		t.Fatal("no serial port event received")
	}

	select {
	case ev := <-sub.C:
		t.Fatalf("port released twice: %+v", ev)

	case <-time.After(50 * time.Millisecond):
	}
}

func TestSerialReleaseClosedFile(t *testing.T) {
	st := newTestSerialTransport(t)
	file := openTestPort(t, st, 0, phonePath, serialUUID)
	require.NoError(t, file.Close())

	assert.NoError(t, st.release(0))
	assert.Zero(t, st.ports.Size())
}

func TestSerialCloseDevice(t *testing.T) {
	st := newTestSerialTransport(t)
	openTestPort(t, st, 0, phonePath, serialUUID)
	openTestPort(t, st, 1, tabletPath, serialUUID)
	openTestPort(t, st, 2, phonePath, dialupUUID)

	st.closeDevice(dbus.ObjectPath(phonePath))

	ports := st.Ports()
	require.Len(t, ports, 1)
	assert.Equal(t, 1, ports[0].Port)
	assert.Equal(t, tabletPath, ports[0].Device)

	st.closeAll()
	assert.Empty(t, st.Ports())
}

func TestSerialPortsOrdered(t *testing.T) {
	st := newTestSerialTransport(t)
	for _, port := range []int{5, 0, 3, 1} {
		openTestPort(t, st, port, phonePath, serialUUID)
	}

	var got []int
	for _, p := range st.Ports() {
		got = append(got, p.Port)
	}

	assert.Equal(t, []int{0, 1, 3, 5}, got)

	file, err := st.PortFile(3)
	require.NoError(t, err)
	assert.NotNil(t, file)
}

func TestDrainConnection(t *testing.T) {
	conn := make(chan *os.File, 1)
	drainConnection(conn)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	conn <- r
	drainConnection(conn)

	assert.Empty(t, conn)
	assert.True(t, errors.Is(r.Close(), os.ErrClosed), "late socket must be closed")
}
