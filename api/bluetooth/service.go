package bluetooth

import (
	"github.com/google/uuid"
)

// Bluetooth service class identifiers (16-bit short forms on the base UUID).
const (
	SerialPortServiceClass       uint16 = 0x1101
	DialupNetServiceClass        uint16 = 0x1103
	AudioSourceServiceClass      uint16 = 0x110a
	AudioSinkServiceClass        uint16 = 0x110b
	HeadsetServiceClass          uint16 = 0x1108
	HandsfreeServiceClass        uint16 = 0x111e
	PanuServiceClass             uint16 = 0x1115
	NapServiceClass              uint16 = 0x1116
	GnServiceClass               uint16 = 0x1117
	HumanInterfaceServiceClass   uint16 = 0x1124
	GenericAudioServiceClass     uint16 = 0x1203
	AudioVideoRemoteServiceClass uint16 = 0x110e
)

// baseUUID is the Bluetooth base UUID that all 16-bit service classes are
// allocated on.
var baseUUID = uuid.MustParse("00000000-0000-1000-8000-00805f9b34fb")

// serviceNames holds the display names of the known service classes.
var serviceNames = map[uint16]string{
	SerialPortServiceClass:       "Serial Port",
	DialupNetServiceClass:        "Dialup Service",
	AudioSourceServiceClass:      "Audio Source",
	AudioSinkServiceClass:        "Audio Sink",
	HeadsetServiceClass:          "Headset Service",
	HandsfreeServiceClass:        "Handsfree Service",
	PanuServiceClass:             "PAN User",
	NapServiceClass:              "Network Access Point",
	GnServiceClass:               "Group Network",
	HumanInterfaceServiceClass:   "Input Service",
	GenericAudioServiceClass:     "Generic Audio",
	AudioVideoRemoteServiceClass: "Remote Control",
}

// ServiceKind is the variant a resolved service belongs to.
type ServiceKind int

// The different service variants.
const (
	ServiceOther ServiceKind = iota
	ServiceSerial
	ServiceNetwork
)

// String returns the name of the service kind.
func (k ServiceKind) String() string {
	switch k {
	case ServiceSerial:
		return "serial"

	case ServiceNetwork:
		return "network"
	}

	return "other"
}

// ServiceClassUUID returns the full UUID of a 16-bit service class.
func ServiceClassUUID(class uint16) uuid.UUID {
	id := baseUUID
	id[2] = byte(class >> 8)
	id[3] = byte(class)

	return id
}

// ServiceClassOf returns the 16-bit service class of a UUID, if the UUID
// is allocated on the Bluetooth base UUID.
func ServiceClassOf(id uuid.UUID) (uint16, bool) {
	if id[0] != 0 || id[1] != 0 {
		return 0, false
	}

	class := uint16(id[2])<<8 | uint16(id[3])
	if ServiceClassUUID(class) != id {
		return 0, false
	}

	return class, true
}

// ServiceName returns a display name for the service UUID.
func ServiceName(id uuid.UUID) string {
	class, ok := ServiceClassOf(id)
	if !ok {
		return "Unknown"
	}

	if name, ok := serviceNames[class]; ok {
		return name
	}

	return "Unknown"
}

// Classify returns the service variant a UUID resolves to.
func Classify(id uuid.UUID) ServiceKind {
	class, ok := ServiceClassOf(id)
	if !ok {
		return ServiceOther
	}

	switch class {
	case SerialPortServiceClass, DialupNetServiceClass:
		return ServiceSerial

	case NapServiceClass, GnServiceClass:
		return ServiceNetwork
	}

	return ServiceOther
}

// Reply is called once a request completed successfully.
type Reply func()

// ErrorReply is called once a request failed.
type ErrorReply func(error)

// PortReply is called once a serial tunnel was established on a port.
type PortReply func(port int)

// SerialTransport establishes and releases serial (RFCOMM) tunnels.
type SerialTransport interface {
	ConnectSerial(info ServiceInfo, reply PortReply, fail ErrorReply)
	DisconnectSerial(info ServiceInfo, port int, ok Reply, fail ErrorReply)
}

// NetworkTransport connects and disconnects network profiles.
type NetworkTransport interface {
	ConnectNetwork(info ServiceInfo, ok Reply, fail ErrorReply)
	DisconnectNetwork(info ServiceInfo, ok Reply, fail ErrorReply)
}

// ServiceInfo holds the identity of a service advertised by a device.
type ServiceInfo struct {
	// Device holds the object path of the device.
	Device string

	// Address holds the Bluetooth address of the device.
	Address MacAddress

	// DeviceName holds the alias or name of the device.
	DeviceName string

	// UUID holds the service identifier.
	UUID uuid.UUID

	// Class holds the 16-bit service class, zero if the UUID is not
	// allocated on the base UUID.
	Class uint16

	// Name holds the display name of the service.
	Name string
}

// NewServiceInfo returns the service information for a device's service UUID.
func NewServiceInfo(device DeviceData, id uuid.UUID) ServiceInfo {
	class, _ := ServiceClassOf(id)

	name := device.Alias
	if name == "" {
		name = device.Name
	}

	return ServiceInfo{
		Device:     device.Path,
		Address:    device.Address,
		DeviceName: name,
		UUID:       id,
		Class:      class,
		Name:       ServiceName(id),
	}
}

// Service is a resolved service. It is one of *SerialService,
// *NetworkService or *OtherService.
type Service interface {
	// Info returns the service identity.
	Info() ServiceInfo

	// Kind returns the service variant.
	Kind() ServiceKind

	isService()
}

// NewService returns the variant of the service matching its UUID.
func NewService(info ServiceInfo, serial SerialTransport, network NetworkTransport) Service {
	switch Classify(info.UUID) {
	case ServiceSerial:
		return &SerialService{ServiceInfo: info, transport: serial}

	case ServiceNetwork:
		return &NetworkService{ServiceInfo: info, transport: network}
	}

	return &OtherService{ServiceInfo: info}
}

// SerialService is a serial port or dialup networking service.
type SerialService struct {
	ServiceInfo

	transport SerialTransport
}

// Info returns the service identity.
func (s *SerialService) Info() ServiceInfo { return s.ServiceInfo }

// Kind returns ServiceSerial.
func (s *SerialService) Kind() ServiceKind { return ServiceSerial }

// IsDialup returns if the service is a dialup networking service.
func (s *SerialService) IsDialup() bool { return s.Class == DialupNetServiceClass }

// Connect opens a serial tunnel, and replies with its port.
func (s *SerialService) Connect(reply PortReply, fail ErrorReply) {
	s.transport.ConnectSerial(s.ServiceInfo, reply, fail)
}

// Disconnect closes the serial tunnel on the port.
func (s *SerialService) Disconnect(port int, ok Reply, fail ErrorReply) {
	s.transport.DisconnectSerial(s.ServiceInfo, port, ok, fail)
}

func (s *SerialService) isService() {}

// NetworkService is a network access point or group network service.
type NetworkService struct {
	ServiceInfo

	transport NetworkTransport
}

// Info returns the service identity.
func (n *NetworkService) Info() ServiceInfo { return n.ServiceInfo }

// Kind returns ServiceNetwork.
func (n *NetworkService) Kind() ServiceKind { return ServiceNetwork }

// Connect connects to the network service.
func (n *NetworkService) Connect(ok Reply, fail ErrorReply) {
	n.transport.ConnectNetwork(n.ServiceInfo, ok, fail)
}

// Disconnect disconnects from the network service.
func (n *NetworkService) Disconnect(ok Reply, fail ErrorReply) {
	n.transport.DisconnectNetwork(n.ServiceInfo, ok, fail)
}

func (n *NetworkService) isService() {}

// OtherService is any service without a generic connect operation.
type OtherService struct {
	ServiceInfo
}

// Info returns the service identity.
func (o *OtherService) Info() ServiceInfo { return o.ServiceInfo }

// Kind returns ServiceOther.
func (o *OtherService) Kind() ServiceKind { return ServiceOther }

func (o *OtherService) isService() {}
