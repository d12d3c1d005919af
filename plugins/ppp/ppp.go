//go:build linux

// Package ppp bridges dialup services to the PPP daemon, over a serial
// tunnel opened to the device.
package ppp

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/api/errorkinds"
	"github.com/darkhz/blueapplet/loop"
	"github.com/darkhz/blueapplet/plugin"
)

// Name is the name of the plugin.
const Name = "PPPSupport"

// DefaultCommand is the default PPP daemon executable.
const DefaultCommand = "pppd"

// Ports provides the files of opened serial tunnels.
type Ports interface {
	PortFile(port int) (*os.File, error)
}

// Settings holds the PPP daemon settings.
type Settings struct {
	Command string
	Number  string
}

// PPPSupport runs a PPP daemon on the serial tunnels opened to dialup services.
type PPPSupport struct {
	settings Settings
	ports    Ports
	daemons  *xsync.MapOf[int, *exec.Cmd]

	loop   *loop.Loop
	logger zerolog.Logger
}

// New returns a new PPP plugin.
func New(l *loop.Loop, ports Ports, settings Settings, logger zerolog.Logger) *PPPSupport {
	if settings.Command == "" {
		settings.Command = DefaultCommand
	}

	if settings.Number == "" {
		settings.Number = "*99#"
	}

	return &PPPSupport{
		settings: settings,
		ports:    ports,
		daemons:  xsync.NewMapOf[int, *exec.Cmd](),
		loop:     l,
		logger:   logger.With().Str("plugin", Name).Logger(),
	}
}

// Name returns the name of the plugin.
func (p *PPPSupport) Name() string { return Name }

// Description returns a short description of the plugin.
func (p *PPPSupport) Description() string {
	return "Dialup networking support through the PPP daemon"
}

// DefaultEnabled returns false, dialup is bridged through NetworkManager by default.
func (p *PPPSupport) DefaultEnabled() bool { return false }

// Load checks that the PPP daemon is installed, and registers the serial handlers.
func (p *PPPSupport) Load(r *plugin.Registry) error {
	if _, err := exec.LookPath(p.settings.Command); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "ppp-load",
				"command", p.settings.Command,
			),
			ftag.With(ftag.NotFound),
			fmsg.With("PPP daemon is not installed"),
		)
	}

	r.RFCOMMConnect.Add(Name, p.connect)
	r.RFCOMMDisconnect.Add(Name, p.disconnect)

	return nil
}

// Unload stops all running PPP daemons.
func (p *PPPSupport) Unload() error {
	p.daemons.Range(func(port int, _ *exec.Cmd) bool {
		p.disconnect(port)
		return true
	})

	return nil
}

// connect opens a serial tunnel to a dialup service, and starts the PPP
// daemon on it. It replies with the port once the daemon has started.
func (p *PPPSupport) connect(svc *bluetooth.SerialService, reply bluetooth.PortReply, fail bluetooth.ErrorReply) bool {
	if !svc.IsDialup() {
		return false
	}

	p.logger.Info().Str("address", svc.Address.String()).Msg("Opening dialup tunnel")

	svc.Connect(func(port int) {
		p.loop.Go(func() error {
			return p.start(port)
		}, func() {
			reply(port)
		}, func(err error) {
			svc.Disconnect(port, func() {}, func(derr error) {
				p.logger.Error().Err(derr).Int("port", port).Msg("Cannot close dialup tunnel")
			})

			fail(err)
		})
	}, fail)

	return true
}

// disconnect stops the PPP daemon running on the port.
func (p *PPPSupport) disconnect(port int) {
	cmd, ok := p.daemons.LoadAndDelete(port)
	if !ok {
		return
	}

	if err := unix.Kill(cmd.Process.Pid, unix.SIGTERM); err != nil {
		p.logger.Error().Err(err).Int("port", port).Msg("Cannot stop PPP daemon")
	}
}

// start starts the PPP daemon with the serial tunnel as its terminal.
func (p *PPPSupport) start(port int) error {
	file, err := p.ports.PortFile(port)
	if err != nil {
		return p.startError(err, port)
	}

	fd, err := unix.Dup(int(file.Fd()))
	if err != nil {
		return p.startError(err, port)
	}

	line := os.NewFile(uintptr(fd), file.Name())
	defer line.Close()

	cmd := exec.Command(p.settings.Command, Args(p.settings.Number)...)
	cmd.Stdin = line
	cmd.Stdout = line

	if err := cmd.Start(); err != nil {
		return p.startError(err, port)
	}

	p.daemons.Store(port, cmd)
	p.logger.Info().Int("port", port).Int("pid", cmd.Process.Pid).Msg("PPP daemon started")

	go func() {
		err := cmd.Wait()
		p.daemons.Compute(port, func(current *exec.Cmd, loaded bool) (*exec.Cmd, bool) {
			return current, !loaded || current == cmd
		})

		p.logger.Info().Err(err).Int("port", port).Msg("PPP daemon exited")
	}()

	return nil
}

func (p *PPPSupport) startError(err error, port int) error {
	return fault.Wrap(fmt.Errorf("%w: %w", errorkinds.ErrPPPStart, err),
		fctx.With(context.Background(),
			"error_at", "ppp-start",
			"port", fmt.Sprint(port),
		),
		ftag.With(ftag.Internal),
		fmsg.With("Cannot start PPP daemon"),
	)
}

// Args returns the PPP daemon arguments which dial the number over the
// daemon's standard input and output.
func Args(number string) []string {
	chat := fmt.Sprintf(
		"chat -v ABORT BUSY ABORT 'NO CARRIER' ABORT ERROR '' ATZ OK ATDT%s CONNECT",
		number,
	)

	return []string{
		"nodetach", "notty", "local", "noauth",
		"noipdefault", "defaultroute", "usepeerdns",
		"connect", chat,
	}
}
