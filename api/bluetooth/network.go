package bluetooth

// Network describes a function call interface to manage the network
// connections established over a device's services.
type Network interface {
	// Connect establishes a connection of the provided type with the device.
	Connect(info ServiceInfo, nt NetworkType) error

	// Disconnect deactivates the connection established with the device.
	Disconnect(address MacAddress) error
}

// NetworkDunSettings holds the DUN-specific connection settings.
type NetworkDunSettings struct {
	APN    string
	Number string
}

// NetworkType specifies the network type.
type NetworkType string

// The different Bluetooth supported network types.
const (
	NetworkPanu NetworkType = "panu"
	NetworkDun  NetworkType = "dun"
)

// String converts the NetworkType to a string.
func (n NetworkType) String() string {
	return string(n)
}
