package bluetooth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkhz/blueapplet/api/errorkinds"
)

func TestParseMAC(t *testing.T) {
	mac, err := ParseMAC("2c:41:A1:49:37:CF")
	require.NoError(t, err)

	assert.Equal(t, MacAddress{0x2c, 0x41, 0xa1, 0x49, 0x37, 0xcf}, mac)
	assert.Equal(t, "2C:41:A1:49:37:CF", mac.String())
	assert.False(t, mac.IsNil())
}

func TestParseMACInvalid(t *testing.T) {
	for _, input := range []string{
		"",
		"2C:41:A1:49:37",
		"2C:41:A1:49:37:CF:00",
		"2C:41:A1:49:37:C",
		"2C:41:A1:49:37:ZZ",
	} {
		_, err := ParseMAC(input)
		assert.ErrorIs(t, err, errorkinds.ErrInvalidAddress, input)
	}
}

func TestMacAddressText(t *testing.T) {
	var mac MacAddress

	require.NoError(t, mac.UnmarshalText([]byte("00:1A:7D:DA:71:13")))

	text, err := mac.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "00:1A:7D:DA:71:13", string(text))
	assert.True(t, MacAddress{}.IsNil())
}
