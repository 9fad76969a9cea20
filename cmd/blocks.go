// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/bitbrick/pkg/blocks"
)

var (
	blocksFormat string
	blocksNoIcon bool
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Print the extension's block metadata",
	Long: `Print the metadata a visual programming host needs to render the bitBrick
extension: id, name, icon, the six blocks with their argument slots and
defaults, and the motorPorts and sensorPorts menus.

Formats:
  text  One line per block (default)
  json  The metadata object, as served by "bitbrick serve" at GET /info
  yaml  The same object as YAML

No board connection is needed.`,
	RunE: runBlocks,
}

func init() {
	rootCmd.AddCommand(blocksCmd)
	blocksCmd.Flags().StringVarP(&blocksFormat, "format", "f", "text", "Output format: text, json or yaml")
	blocksCmd.Flags().BoolVar(&blocksNoIcon, "no-icon", false, "Omit the block icon data URI")
}

func runBlocks(cmd *cobra.Command, args []string) error {
	info := blocks.Info()
	if blocksNoIcon {
		info.BlockIconURI = ""
	}
	return writeBlockInfo(os.Stdout, info, blocksFormat)
}

func writeBlockInfo(w io.Writer, info blocks.ExtensionInfo, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(info); err != nil {
			return err
		}
		return enc.Close()

	case "text":
		fmt.Fprintf(w, "%s (%s)\n\n", info.Name, info.ID)
		for _, b := range info.Blocks {
			fmt.Fprintf(w, "  %-16s %-9s %s\n", b.Opcode, b.BlockType, b.Text)
			for _, name := range b.ArgumentNames() {
				arg := b.Arguments[name]
				menu := ""
				if arg.Menu != "" {
					menu = " menu=" + arg.Menu
				}
				fmt.Fprintf(w, "      %-7s %s default=%v%s\n", name, arg.Type, arg.DefaultValue, menu)
			}
		}
		fmt.Fprintf(w, "\nMenus:\n")
		for _, name := range []string{blocks.MenuMotorPorts, blocks.MenuSensorPorts} {
			items := make([]string, len(info.Menus[name]))
			for i, item := range info.Menus[name] {
				items[i] = item.Text + "=" + item.Value
			}
			fmt.Fprintf(w, "  %-12s %s\n", name, strings.Join(items, " "))
		}
		return nil
	}

	return fmt.Errorf("unknown format %q (text, json or yaml)", format)
}
