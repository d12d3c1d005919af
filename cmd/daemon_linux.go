//go:build linux

package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/config"
	"github.com/darkhz/blueapplet/dispatch"
	"github.com/darkhz/blueapplet/linux"
	"github.com/darkhz/blueapplet/linux/networkmanager"
	"github.com/darkhz/blueapplet/loop"
	"github.com/darkhz/blueapplet/plugin"
	"github.com/darkhz/blueapplet/plugins/nm"
	"github.com/darkhz/blueapplet/plugins/ppp"
	"github.com/darkhz/blueapplet/plugins/recentconns"
)

// runDaemon starts the applet, and runs it until it is interrupted.
func runDaemon(cfg *config.Config) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(cfg.Values.Level).
		With().Timestamp().
		Logger()

	l := loop.New(loop.DefaultQueueSize)

	var session linux.BluezSession
	if err := session.Start(l, logger); err != nil {
		return err
	}
	defer session.Stop()

	dun := bluetooth.NetworkDunSettings{APN: cfg.Values.GsmApn, Number: cfg.Values.GsmNumber}
	openNetwork := func() (bluetooth.Network, error) {
		manager, err := networkmanager.Initialize(dun)
		if err != nil {
			return nil, err
		}

		return manager, nil
	}

	manager := plugin.NewManager(plugin.NewRegistry(), logger)
	manager.Register(
		dispatch.Core{},
		recentconns.New(cfg.Values.RecentConnections, logger),
		nm.NewDUNSupport(l, openNetwork, logger),
		nm.NewPANSupport(l, openNetwork, logger),
		ppp.New(l, session.SerialPorts(), ppp.Settings{
			Command: cfg.Values.PPPCommand,
			Number:  cfg.Values.GsmNumber,
		}, logger),
	)

	featureSet := manager.LoadAll(cfg.Values.Plugins)
	defer manager.UnloadAll()

	printUnsupportedFeatures(cfg, featureSet)

	dispatcher := dispatch.New(&session, dispatch.ManagerHost{Manager: manager}, logger)
	applet := linux.NewApplet(session.SessionBus(), l, manager, dispatcher, cfg.Values.Timeout, logger)
	if err := applet.Export(); err != nil {
		return err
	}
	defer applet.Close()

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.Run(ctx)
	})
	g.Go(func() error {
		logErrorEvents(ctx, logger)
		return nil
	})

	logger.Info().
		Strs("plugins", manager.Loaded()).
		Dur("reply_timeout", cfg.Values.Timeout).
		Msg("Applet started")

	err := g.Wait()
	logger.Info().Msg("Applet stopped")

	return err
}

// logErrorEvents logs the errors of asynchronous operations that have no caller.
func logErrorEvents(ctx context.Context, logger zerolog.Logger) {
	sub, ok := bluetooth.ErrorEvents().Subscribe()
	if !ok {
		return
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-sub.C:
			if !ok {
				return
			}

			logger.Error().Err(ev.Data).Msg("Background operation failed")
		}
	}
}
