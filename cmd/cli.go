package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"

	ac "github.com/darkhz/blueapplet/api/appfeatures"
	"github.com/darkhz/blueapplet/config"
)

// These values are set at compile-time.
var (
	Version  = ""
	Revision = ""
)

// Run runs the commandline application.
func Run() error {
	return newApp().Run(os.Args)
}

// newApp returns a new commandline application.
func newApp() *cli.App {
	cli.VersionPrinter = func(cCtx *cli.Context) {
		fmt.Fprintf(cCtx.App.Writer, "%s (%s)\n", Version, Revision)
	}

	return &cli.App{
		Name:                   "blueapplet",
		Usage:                  "Bluetooth applet service.",
		Version:                Version + " (" + Revision + ")",
		Description:            "Connects Bluetooth devices and their services on behalf of desktop clients.",
		Copyright:              "(c) darkhz.",
		Compiled:               time.Now(),
		EnableBashCompletion:   true,
		UseShortOptionHandling: true,
		Suggest:                true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				EnvVars: []string{"BLUEAPPLET_LOG_LEVEL"},
				Usage:   "Specify the log level. (For example, debug)",
			},
			&cli.StringFlag{
				Name:    "reply-timeout",
				Aliases: []string{"t"},
				EnvVars: []string{"BLUEAPPLET_REPLY_TIMEOUT"},
				Usage:   "Specify how long a method call waits for its request to complete. (For example, 90s)",
			},
			&cli.StringFlag{
				Name:    "gsm-apn",
				Aliases: []string{"m"},
				EnvVars: []string{"BLUEAPPLET_GSM_APN"},
				Usage:   "Specify GSM APN to connect to. (Required for DUN)",
			},
			&cli.StringFlag{
				Name:    "gsm-number",
				Aliases: []string{"b"},
				EnvVars: []string{"BLUEAPPLET_GSM_NUMBER"},
				Usage:   "Specify GSM number to dial. (Required for DUN)",
			},
			&cli.StringFlag{
				Name:    "ppp-command",
				Aliases: []string{"p"},
				EnvVars: []string{"BLUEAPPLET_PPP_COMMAND"},
				Usage:   "Specify the PPP daemon executable.",
			},
			&cli.IntFlag{
				Name:    "recent-connections",
				Aliases: []string{"r"},
				EnvVars: []string{"BLUEAPPLET_RECENT_CONNECTIONS"},
				Usage:   "Specify the number of recent connections to keep.",
			},
			&cli.BoolFlag{
				Name:    "no-warning",
				Aliases: []string{"w"},
				EnvVars: []string{"BLUEAPPLET_NO_WARNING"},
				Usage:   "Do not display warnings when the applet has initialized.",
			},
			&cli.BoolFlag{
				Name:    "generate",
				Aliases: []string{"g"},
				Usage:   "Generate configuration.",
				Action: func(cliCtx *cli.Context, _ bool) error {
					k := koanf.New(".")

					cliCtx.Command.Name = "global"

					conf := config.NewConfig()
					if err := conf.Load(k, cliCtx); err != nil {
						return err
					}

					return conf.GenerateAndSave(k)
				},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "plugins",
				Usage: "List the loaded plugins.",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "available",
						Aliases: []string{"a"},
						Usage:   "List all available plugins instead.",
					},
				},
				Action: func(cliCtx *cli.Context) error {
					return withClient(func(c *client) error {
						title, method := "loaded plugins", "QueryPlugins"
						if cliCtx.Bool("available") {
							title, method = "available plugins", "QueryAvailablePlugins"
						}

						plugins, err := c.plugins(method)
						if err != nil {
							return err
						}

						printList(title, plugins)

						return nil
					})
				},
			},
			{
				Name:      "set-plugin",
				Usage:     "Enable or disable a plugin.",
				ArgsUsage: "NAME on|off",
				Action: func(cliCtx *cli.Context) error {
					if cliCtx.NArg() != 2 {
						return cli.ShowSubcommandHelp(cliCtx)
					}

					enabled, err := parseState(cliCtx.Args().Get(1))
					if err != nil {
						return err
					}

					return withClient(func(c *client) error {
						return c.setPluginConfig(cliCtx.Args().Get(0), enabled)
					})
				},
			},
			{
				Name:      "connect",
				Usage:     "Connect a device, or one of its services.",
				ArgsUsage: "DEVICE-PATH [UUID]",
				Action: func(cliCtx *cli.Context) error {
					if cliCtx.NArg() < 1 || cliCtx.NArg() > 2 {
						return cli.ShowSubcommandHelp(cliCtx)
					}

					return withClient(func(c *client) error {
						return c.connectService(cliCtx.Args().Get(0), serviceArg(cliCtx.Args().Get(1)))
					})
				},
			},
			{
				Name:      "disconnect",
				Usage:     "Disconnect a device, or one of its services.",
				ArgsUsage: "DEVICE-PATH [UUID [PORT]]",
				Action: func(cliCtx *cli.Context) error {
					if cliCtx.NArg() < 1 || cliCtx.NArg() > 3 {
						return cli.ShowSubcommandHelp(cliCtx)
					}

					port := 0
					if p := cliCtx.Args().Get(2); p != "" {
						parsed, err := strconv.Atoi(p)
						if err != nil || parsed < 0 {
							return fmt.Errorf("%s: Invalid port", p)
						}

						port = parsed
					}

					return withClient(func(c *client) error {
						return c.disconnectService(cliCtx.Args().Get(0), serviceArg(cliCtx.Args().Get(1)), port)
					})
				},
			},
			{
				Name:  "plugin-dialog",
				Usage: "Request the plugin dialog to be shown.",
				Action: func(*cli.Context) error {
					return withClient(func(c *client) error {
						return c.openPluginDialog()
					})
				},
			},
		},
		Action: func(cliCtx *cli.Context) error {
			if cliCtx.Bool("generate") {
				return nil
			}

			// required for koanf to merge all global flags under the root namespace.
			cliCtx.Command.Name = "global"

			k, cfg := koanf.New("."), config.NewConfig()
			if err := cfg.Load(k, cliCtx); err != nil {
				return err
			}
			if err := cfg.ValidateValues(); err != nil {
				return err
			}

			return runDaemon(cfg)
		},
		ExitErrHandler: func(_ *cli.Context, err error) {
			if err == nil {
				return
			}

			printError(err)
		},
	}
}

// serviceArg returns the service UUID argument, or the all-zero UUID
// which denotes the device itself.
func serviceArg(arg string) string {
	if arg == "" {
		return "00000000-0000-0000-0000-000000000000"
	}

	return arg
}

// parseState parses a plugin state argument.
func parseState(state string) (bool, error) {
	switch strings.ToLower(state) {
	case "on", "yes", "y", "true":
		return true, nil

	case "off", "no", "n", "false":
		return false, nil
	}

	return false, fmt.Errorf("provided state '%s' is incorrect.\nValid states are 'on, off'", state)
}

// printUnsupportedFeatures prints all plugins that could not be loaded.
func printUnsupportedFeatures(cfg *config.Config, featureSet ac.FeatureSet) {
	if cfg.Values.NoWarning {
		return
	}

	var warn strings.Builder

	featErrors, exists := featureSet.Errors.Exists()
	if !exists {
		return
	}

	warn.WriteString("The following features are not available:")
	for name, errors := range featErrors {
		warn.WriteString("\n")
		if description, ok := ac.FeatureMap[ac.FeatureOf(name)]; ok {
			warn.WriteString(description)
		} else {
			warn.WriteString(name)
		}
		warn.WriteString(": ")
		warn.WriteString(errors.PluginErrors.Error())
	}

	printWarn(warn.String())
}
