package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// The default configuration values.
const (
	DefaultReplyTimeout      = 90 * time.Second
	DefaultRecentConnections = 6
	DefaultPPPCommand        = "pppd"
	DefaultGsmNumber         = "*99#"
)

// Values describes the possible configuration values that a user can
// modify and supply to the applet.
type Values struct {
	LogLevel          string          `koanf:"log-level"`
	ReplyTimeout      string          `koanf:"reply-timeout"`
	Plugins           map[string]bool `koanf:"plugins"`
	GsmApn            string          `koanf:"gsm-apn"`
	GsmNumber         string          `koanf:"gsm-number"`
	PPPCommand        string          `koanf:"ppp-command"`
	RecentConnections int             `koanf:"recent-connections"`
	NoWarning         bool            `koanf:"no-warning"`

	Level   zerolog.Level
	Timeout time.Duration
}

// validateValues validates all configuration values.
func (v *Values) validateValues() error {
	for _, validate := range []func() error{
		v.validateLogLevel,
		v.validateReplyTimeout,
		v.validatePlugins,
		v.validateGsm,
		v.validatePPPCommand,
		v.validateRecentConnections,
	} {
		if err := validate(); err != nil {
			return err
		}
	}

	return nil
}

// validateLogLevel validates the level of the log messages.
func (v *Values) validateLogLevel() error {
	v.Level = zerolog.InfoLevel
	if v.LogLevel == "" {
		return nil
	}

	level, err := zerolog.ParseLevel(strings.ToLower(v.LogLevel))
	if err != nil {
		return fmt.Errorf("%s: Invalid log level", v.LogLevel)
	}

	v.Level = level

	return nil
}

// validateReplyTimeout validates the time a method waits for a request to complete.
func (v *Values) validateReplyTimeout() error {
	v.Timeout = DefaultReplyTimeout
	if v.ReplyTimeout == "" {
		return nil
	}

	timeout, err := time.ParseDuration(v.ReplyTimeout)
	if err != nil || timeout <= 0 {
		return fmt.Errorf("%s: Invalid reply timeout", v.ReplyTimeout)
	}

	v.Timeout = timeout

	return nil
}

// validatePlugins validates the names of the configured plugins.
func (v *Values) validatePlugins() error {
	if v.Plugins == nil {
		v.Plugins = make(map[string]bool)
	}

	for name := range v.Plugins {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("plugin names cannot be empty")
		}
	}

	return nil
}

// validateGsm validates the GSM number and APN for the DUN network type.
func (v *Values) validateGsm() error {
	if strings.ContainsFunc(v.GsmNumber, func(r rune) bool { return r == '\'' || r == '"' }) {
		return fmt.Errorf("%s: Invalid GSM number", v.GsmNumber)
	}

	if v.GsmNumber == "" {
		v.GsmNumber = DefaultGsmNumber
	}

	return nil
}

// validatePPPCommand validates the PPP daemon executable.
func (v *Values) validatePPPCommand() error {
	if strings.TrimSpace(v.PPPCommand) == "" {
		v.PPPCommand = DefaultPPPCommand
	}

	return nil
}

// validateRecentConnections validates the number of recent connections kept.
func (v *Values) validateRecentConnections() error {
	switch {
	case v.RecentConnections < 0:
		return fmt.Errorf("%d: The number of recent connections cannot be negative", v.RecentConnections)

	case v.RecentConnections == 0:
		v.RecentConnections = DefaultRecentConnections
	}

	return nil
}
