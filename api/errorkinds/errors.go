package errorkinds

import "errors"

// The different general error types.
var (
	ErrSessionStart    = errors.New("cannot start session")
	ErrSessionNotExist = errors.New("session does not exist")
	ErrNoReply         = errors.New("no reply was received for the request")

	ErrInvalidAddress = errors.New("invalid Bluetooth address")
	ErrInvalidUUID    = errors.New("invalid service UUID")
	ErrDeviceNotFound = errors.New("device not found")
	ErrUnknownService = errors.New("service is not advertised by the device")
	ErrPortNotFound   = errors.New("serial port not found")

	ErrServiceNotSupported = errors.New("Service not supported\nPossibly the plugin that handles this service is not loaded")

	ErrPluginNotFound      = errors.New("plugin not found")
	ErrPluginNotUnloadable = errors.New("plugin cannot be unloaded")
	ErrPluginDependency    = errors.New("plugin dependency error")

	ErrNetworkInitSession    = errors.New("network session is not initialized")
	ErrNetworkAlreadyActive  = errors.New("network is already active")
	ErrNetworkEstablishError = errors.New("network connection cannot be established")

	ErrPPPStart = errors.New("cannot start PPP daemon")

	ErrNotSupported = errors.New("this functionality is not supported")
)

// GenericError represents a standard error message.
type GenericError struct {
	// Errors stores all associated errors.
	Errors error `json:"errors,omitempty"`
}

// Error returns the formatted error as string.
func (e GenericError) Error() string {
	return e.Errors.Error()
}

// Unwrap unwraps all errors associated with this error.
func (e GenericError) Unwrap() error {
	return e.Errors
}
