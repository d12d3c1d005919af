package bluetooth

import (
	"encoding/hex"
	"strings"

	"github.com/darkhz/blueapplet/api/errorkinds"
)

// NumAddressBytes is the total number of bytes in a MacAddress.
const NumAddressBytes = 6

// MacAddress represents a Bluetooth address, stored in display order
// (the first byte is the leftmost octet of "AA:BB:CC:DD:EE:FF").
type MacAddress [NumAddressBytes]byte

// ParseMAC parses the given MAC address, which must be in 11:22:33:AA:BB:CC
// format. If it cannot be parsed, an error is returned.
func ParseMAC(s string) (MacAddress, error) {
	var mac MacAddress

	octets := strings.Split(s, ":")
	if len(octets) != NumAddressBytes {
		return mac, errorkinds.ErrInvalidAddress
	}

	for i, octet := range octets {
		if len(octet) != 2 {
			return mac, errorkinds.ErrInvalidAddress
		}

		if _, err := hex.Decode(mac[i:i+1], []byte(octet)); err != nil {
			return MacAddress{}, errorkinds.ErrInvalidAddress
		}
	}

	return mac, nil
}

// String returns a human-readable version of this MAC address, such as
// 11:22:33:AA:BB:CC.
func (m MacAddress) String() string {
	var sb strings.Builder

	sb.Grow(NumAddressBytes*3 - 1)
	for i, b := range m {
		if i > 0 {
			sb.WriteByte(':')
		}

		sb.WriteString(strings.ToUpper(hex.EncodeToString([]byte{b})))
	}

	return sb.String()
}

// IsNil checks if the MacAddress byte array is empty.
func (m MacAddress) IsNil() bool {
	return m == MacAddress{}
}

// MarshalText implements encoding.TextMarshaler.
func (m MacAddress) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// The variant decoder relies on this to map a Bluetooth address string
// to a MacAddress within a struct.
func (m *MacAddress) UnmarshalText(data []byte) error {
	mac, err := ParseMAC(string(data))
	if err != nil {
		return err
	}

	*m = mac

	return nil
}
