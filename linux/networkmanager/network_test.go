//go:build linux

package networkmanager

import (
	"testing"

	nm "github.com/Wifx/gonetworkmanager"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/api/errorkinds"
)

func testAddress(t *testing.T) bluetooth.MacAddress {
	t.Helper()

	address, err := bluetooth.ParseMAC("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)

	return address
}

func TestConnectionSettings(t *testing.T) {
	address := testAddress(t)
	id := uuid.New()

	settings := connectionSettings{
		Name:               "Pixel",
		Address:            address,
		ConnectionType:     bluetooth.NetworkDun,
		ConnectionUUID:     id,
		NetworkDunSettings: bluetooth.NetworkDunSettings{APN: "internet", Number: "*99#"},
	}.toMap()

	assert.Equal(t, "Pixel Access Point (DUN)", settings["connection"]["id"])
	assert.Equal(t, id.String(), settings["connection"]["uuid"])
	assert.Equal(t, "dun", settings["bluetooth"]["type"])
	assert.Equal(t, address[:], settings["bluetooth"]["bdaddr"])
	assert.Equal(t, map[string]any{"apn": "internet", "number": "*99#"}, settings["gsm"])

	assert.True(t, addrExist(settings, address, bluetooth.NetworkDun))
	assert.False(t, addrExist(settings, address, bluetooth.NetworkPanu))

	panu := connectionSettings{
		Name:           "Pixel",
		Address:        address,
		ConnectionType: bluetooth.NetworkPanu,
	}.toMap()

	assert.NotContains(t, panu, "gsm")
	assert.True(t, addrExist(panu, address, bluetooth.NetworkPanu))
	assert.False(t, addrExist(nm.ConnectionSettings{"bluetooth": {"bdaddr": []byte{1}}}, address, bluetooth.NetworkPanu))
}

func TestApplyDunSettings(t *testing.T) {
	settings := nm.ConnectionSettings{
		"gsm":  {"apn": "old", "number": "*99#"},
		"ipv6": {"method": "auto"},
	}

	require.NoError(t, applyDunSettings(settings, bluetooth.NetworkDunSettings{APN: "internet", Number: "*99***1#"}))
	assert.Equal(t, "internet", settings["gsm"]["apn"])
	assert.Equal(t, "*99***1#", settings["gsm"]["number"])
	assert.NotContains(t, settings, "ipv6")

	assert.Error(t, applyDunSettings(nm.ConnectionSettings{}, bluetooth.NetworkDunSettings{}))
}

func TestUninitializedManager(t *testing.T) {
	var n *NetManager

	assert.ErrorIs(t, n.Disconnect(testAddress(t)), errorkinds.ErrNetworkInitSession)
	assert.ErrorIs(t, n.Connect(bluetooth.ServiceInfo{Address: testAddress(t)}, bluetooth.NetworkPanu), errorkinds.ErrNetworkInitSession)
}
