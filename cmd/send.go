// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
	"github.com/Thermoquad/bitbrick/pkg/blocks"
)

var sendQuiet bool

var sendCmd = &cobra.Command{
	Use:   "send <opcode> [NAME=value ...]",
	Short: "Invoke one block",
	Long: `Invoke a single block by opcode and exit.

Arguments are given as NAME=value pairs; missing arguments take the block's
default. Menu arguments accept the printed label: A-D for motor ports and 1-4
for sensor ports. Values go through the same number coercion and clamping as
in a visual programming host.

The command frame that was sent is printed, and reporter blocks print their
value on the last line.

Examples:
  bitbrick send setLEDColor RED=255 GREEN=0 BLUE=64 --port /dev/ttyUSB0
  bitbrick send motorSetPower PORT=B POWER=-50 --link mock
  bitbrick send getSensorValue PORT=3 --url ws://board.local/ws

Run "bitbrick blocks" for the list of opcodes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().BoolVarP(&sendQuiet, "quiet", "q", false, "Print only the reporter value")
}

// parseAssignments splits NAME=value pairs. Names are case-insensitive.
func parseAssignments(pairs []string) (map[string]string, error) {
	raw := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("argument %q is not NAME=value", pair)
		}
		raw[strings.ToUpper(name)] = value
	}
	return raw, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	opcode := args[0]
	raw, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}

	// Resolve before connecting so typos never reach the board
	info := blocks.Info()
	blockArgs, err := info.ResolveArgs(opcode, raw)
	if err != nil {
		return err
	}

	board, _, err := OpenBoard(cmd.Context(), cfg.Link)
	if err != nil {
		return err
	}
	defer closeBoard(board)

	var observers []bitbrick.Observer
	if !sendQuiet {
		observers = append(observers, &framePrinter{w: os.Stdout, showAll: true})
	}
	device := bitbrick.NewDevice(board, deviceOptions(observers...)...)
	ext := blocks.New(blocks.NewEventBus(), device, blocks.WithLogger(logger.Named("blocks")))

	value, err := ext.Invoke(opcode, blockArgs)
	if err != nil {
		return err
	}
	if value != nil {
		fmt.Println(value)
	}
	return nil
}
