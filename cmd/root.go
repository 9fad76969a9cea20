// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/bitbrick/internal/config"
	"github.com/Thermoquad/bitbrick/internal/logging"
)

var (
	cfgPath string

	// Loaded before every command runs
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "bitbrick",
	Short: "bitBrick toy controller toolkit",
	Long: `bitbrick - drive and monitor bitBrick toy controller boards.

Every command talks to the board through the same block surface a visual
programming host would use: LED, motor and servo commands go out as 40
character command frames, and sensor readings come back as hex sensor frames.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]
  BLE:       --link ble (board selected by link.ble.namePrefix)
  Replay:    --replay capture.cbor
  Mock:      --link mock (frames are logged, never sent)

Settings can also come from a config file (--config, BITBRICK_CONFIG, or
bitbrick.yaml in the working directory or ~/.config/bitbrick) and from
BITBRICK_* environment variables, e.g. BITBRICK_LINK_PORT.

For WebSocket authentication, the password is read from the BITBRICK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "Config file (yaml, toml or json)")
	flags.String("link", "", "Link kind: serial, websocket, ble, replay or mock (default: inferred)")

	// Serial connection flags
	flags.StringP("port", "p", "", "Serial port device")
	flags.IntP("baud", "b", 0, "Baud rate, serial only (default 115200)")

	// WebSocket connection flags
	flags.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.String("username", "", "Username for HTTP Basic auth")
	flags.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	flags.String("replay", "", "Replay sensor frames from a capture file")

	// Logging flags
	flags.String("log-level", "", "Log level: debug, info, warn or error (default warn)")
	flags.String("log-format", "", "Log format: console or json (default console)")
	flags.String("log-file", "", "Also write logs to this file, with rotation")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgPath, cmd.Flags())
	if err != nil {
		return err
	}

	l, err := logging.New(c.Logging)
	if err != nil {
		return err
	}

	cfg = c
	logger = l
	logger.Debug("config loaded", zap.String("link", c.Link.ResolvedKind()))
	return nil
}

// Execute runs the root command
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}
