//go:build !linux

package cmd

import (
	"github.com/darkhz/blueapplet/api/errorkinds"
	"github.com/darkhz/blueapplet/config"
)

// client is unavailable on this platform.
type client struct{}

func runDaemon(*config.Config) error {
	return errorkinds.ErrNotSupported
}

func withClient(func(c *client) error) error {
	return errorkinds.ErrNotSupported
}

func (c *client) plugins(string) ([]string, error) { return nil, errorkinds.ErrNotSupported }

func (c *client) setPluginConfig(string, bool) error { return errorkinds.ErrNotSupported }

func (c *client) connectService(string, string) error { return errorkinds.ErrNotSupported }

func (c *client) disconnectService(string, string, int) error { return errorkinds.ErrNotSupported }

func (c *client) openPluginDialog() error { return errorkinds.ErrNotSupported }
