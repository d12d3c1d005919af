// Package dispatch decides how a connect or disconnect request for a device
// or one of its services is carried out, and bridges the outcome of the
// chosen strategy to the caller.
//
// A request is answered through exactly one invocation of either its ok or
// its fail callback. Requests never block: the dispatcher picks a strategy,
// starts it and returns, and the outcome arrives later on the loop the
// backend and plugins deliver their results on.
package dispatch

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	ac "github.com/darkhz/blueapplet/api/appfeatures"
	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/api/errorkinds"
	"github.com/darkhz/blueapplet/plugin"
)

// Backend resolves devices and their services.
type Backend interface {
	// Device returns a device handle for the object path.
	// It returns errorkinds.ErrDeviceNotFound if the device is not known.
	Device(path string) (bluetooth.Device, error)

	// Service resolves a service UUID advertised by the device at the object path.
	// It returns errorkinds.ErrUnknownService if the device does not advertise it.
	Service(path string, id uuid.UUID) (bluetooth.Service, error)
}

// RecentConnections records connection attempts.
type RecentConnections interface {
	Notify(path string, id uuid.UUID)
}

// Host provides the plugin state the dispatcher reads.
type Host interface {
	// Capabilities returns a snapshot of the loaded optional plugins.
	Capabilities() ac.FeatureSet

	// RecentConnections returns the recent connections tracker, if it is loaded.
	RecentConnections() (RecentConnections, bool)

	// Registry returns the extension points to delegate requests to.
	Registry() *plugin.Registry
}

// Dispatcher carries out connect and disconnect requests.
type Dispatcher struct {
	backend Backend
	host    Host
	logger  zerolog.Logger
}

// New returns a new dispatcher.
func New(backend Backend, host Host, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		backend: backend,
		host:    host,
		logger:  logger.With().Str("component", "dispatch").Logger(),
	}
}

// Connect connects the target, and eventually calls exactly one of ok or fail.
//
// A non-nil error is returned only if the request violates the calling
// contract (the device is unknown or does not advertise the service).
// In that case, neither ok nor fail is ever called.
func (d *Dispatcher) Connect(target bluetooth.Target, ok bluetooth.Reply, fail bluetooth.ErrorReply) error {
	logger := d.requestLogger("connect", target)
	ok, fail = guard(logger, ok, fail)

	d.notifyRecent(logger, target)

	if target.IsDevice() {
		device, err := d.device(target, "dispatch-connect-device")
		if err != nil {
			logger.Error().Err(err).Msg("Cannot resolve device")
			return err
		}

		logger.Debug().Msg("Connecting device")
		device.Connect(ok, fail)

		return nil
	}

	service, err := d.resolve(target, "dispatch-connect-resolve")
	if err != nil {
		logger.Error().Err(err).Msg("Cannot resolve service")
		return err
	}

	caps := d.host.Capabilities()
	registry := d.host.Registry()

	serial, isSerial := service.(*bluetooth.SerialService)

	switch {
	case isSerial && caps.Has(ac.FeatureDUNBridge):
		logger.Debug().Msg("Delegating serial service to the dialup bridge")
		plugin.Until(registry.ServiceConnect, func(h plugin.ServiceHandler) bool {
			return h(service, ok, fail)
		})

	case isSerial && caps.Has(ac.FeaturePPPBridge):
		logger.Debug().Msg("Delegating serial service to the PPP bridge")

		reply := func(port int) {
			plugin.Notify(registry.RFCOMMConnected, func(h plugin.RFCOMMConnectedHandler) {
				h(serial, port)
			})
			ok()
		}

		claimed := plugin.Any(registry.RFCOMMConnect, func(h plugin.RFCOMMConnectHandler) bool {
			return h(serial, reply, fail)
		})
		if !claimed {
			logger.Info().Msg("No handler registered")
			fail(errorkinds.ErrServiceNotSupported)
		}

	default:
		claimed := plugin.Any(registry.ServiceConnect, func(h plugin.ServiceHandler) bool {
			return h(service, ok, fail)
		})
		if claimed {
			return nil
		}

		switch svc := service.(type) {
		case *bluetooth.SerialService:
			logger.Debug().Msg("Connecting serial service")
			svc.Connect(func(int) { ok() }, fail)

		case *bluetooth.NetworkService:
			logger.Debug().Msg("Connecting network service")
			svc.Connect(ok, fail)

		case *bluetooth.OtherService:
			logger.Warn().Msg("No handler claimed the service, request dropped")
		}
	}

	return nil
}

// Disconnect disconnects the target, and eventually calls exactly one of ok or fail.
// The port is only used for serial services handled by the PPP bridge.
//
// A non-nil error is returned only if the request violates the calling
// contract; in that case, neither ok nor fail is ever called.
func (d *Dispatcher) Disconnect(target bluetooth.Target, port int, ok bluetooth.Reply, fail bluetooth.ErrorReply) error {
	logger := d.requestLogger("disconnect", target)
	ok, fail = guard(logger, ok, fail)

	if target.IsDevice() {
		device, err := d.device(target, "dispatch-disconnect-device")
		if err != nil {
			logger.Error().Err(err).Msg("Cannot resolve device")
			return err
		}

		logger.Debug().Msg("Disconnecting device")
		device.Disconnect(ok, fail)

		return nil
	}

	service, err := d.resolve(target, "dispatch-disconnect-resolve")
	if err != nil {
		logger.Error().Err(err).Msg("Cannot resolve service")
		return err
	}

	caps := d.host.Capabilities()
	registry := d.host.Registry()

	serial, isSerial := service.(*bluetooth.SerialService)

	switch {
	case isSerial && caps.Has(ac.FeatureDUNBridge):
		logger.Debug().Msg("Delegating serial service to the dialup bridge")
		plugin.Until(registry.ServiceDisconnect, func(h plugin.ServiceHandler) bool {
			return h(service, ok, fail)
		})

	case isSerial && caps.Has(ac.FeaturePPPBridge):
		logger.Info().Int("port", port).Msg("Disconnecting rfcomm device")

		serial.Disconnect(port, ok, fail)
		plugin.Notify(registry.RFCOMMDisconnect, func(h plugin.RFCOMMDisconnectHandler) {
			h(port)
		})

	default:
		claimed := plugin.Any(registry.ServiceDisconnect, func(h plugin.ServiceHandler) bool {
			return h(service, ok, fail)
		})
		if claimed {
			return nil
		}

		switch svc := service.(type) {
		case *bluetooth.NetworkService:
			logger.Debug().Msg("Disconnecting network service")
			svc.Disconnect(ok, fail)

		case *bluetooth.SerialService, *bluetooth.OtherService:
			logger.Warn().Msg("No handler claimed the service, request dropped")
		}
	}

	return nil
}

// notifyRecent records the connection attempt, if the recent connections
// tracker is loaded.
func (d *Dispatcher) notifyRecent(logger zerolog.Logger, target bluetooth.Target) {
	recent, ok := d.host.RecentConnections()
	if !ok {
		logger.Warn().Msg("RecentConns plugin is unavailable")
		return
	}

	recent.Notify(target.Path, target.UUID)
}

// device resolves the target's device.
func (d *Dispatcher) device(target bluetooth.Target, errorAt string) (bluetooth.Device, error) {
	device, err := d.backend.Device(target.Path)
	if err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", errorAt,
				"path", target.Path,
			),
			ftag.With(ftag.NotFound),
			fmsg.With("Cannot resolve device"),
		)
	}

	return device, nil
}

// resolve resolves the target's service.
func (d *Dispatcher) resolve(target bluetooth.Target, errorAt string) (bluetooth.Service, error) {
	service, err := d.backend.Service(target.Path, target.UUID)
	if err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", errorAt,
				"path", target.Path,
				"uuid", target.UUID.String(),
			),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("Cannot resolve service"),
		)
	}

	return service, nil
}

// requestLogger returns a logger annotated with the request.
func (d *Dispatcher) requestLogger(op string, target bluetooth.Target) zerolog.Logger {
	return d.logger.With().
		Str("op", op).
		Str("path", target.Path).
		Str("uuid", target.UUID.String()).
		Logger()
}
