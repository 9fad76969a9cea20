// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bitbrick/pkg/link"
)

var (
	discoverTimeout int
	discoverPrefix  string
	discoverSerial  bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover boards via Bluetooth LE and serial",
	Long: `Scan for bitBrick boards.

Modes:
  BLE (default): Scan for advertising devices whose name starts with the
                 configured prefix (link.ble.namePrefix, "BitBrick" by
                 default, or --prefix). Each board is listed once with its
                 address and signal strength.

  Serial (--serial): List the serial ports present on this machine.

Examples:
  # Find BLE boards for 5 seconds
  bitbrick discover --timeout 5

  # List serial ports
  bitbrick discover --serial

Exit codes:
  0 - Discovery successful (at least one board or port found)
  1 - Discovery failed (nothing found before timeout)
  2 - Adapter error`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 0, "Scan timeout in seconds (default link.ble.scanTimeout)")
	discoverCmd.Flags().StringVar(&discoverPrefix, "prefix", "", "BLE name prefix (default link.ble.namePrefix)")
	discoverCmd.Flags().BoolVar(&discoverSerial, "serial", false, "List serial ports instead of scanning BLE")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if discoverSerial {
		os.Exit(discoverSerialPorts())
	}

	timeout := cfg.Link.BLE.ScanTimeout
	if discoverTimeout > 0 {
		timeout = time.Duration(discoverTimeout) * time.Second
	}
	prefix := cfg.Link.BLE.NamePrefix
	if discoverPrefix != "" {
		prefix = discoverPrefix
	}

	fmt.Printf("bitbrick - Board Discovery\n")
	fmt.Printf("Mode: BLE (name prefix %q)\n", prefix)
	fmt.Printf("Timeout: %v\n\n", timeout)

	found := 0
	err := link.ScanBLE(cmd.Context(), nil, prefix, timeout, func(d link.BLEDevice) {
		found++
		fmt.Printf("Board found:\n")
		fmt.Printf("  Name: %s\n", d.Name)
		fmt.Printf("  Address: %s\n", d.Address)
		fmt.Printf("  RSSI: %d dBm\n", d.RSSI)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan error: %v\n", err)
		os.Exit(exitConnection)
	}

	// Summary
	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Boards found: %d\n", found)

	if found == 0 {
		fmt.Printf("No boards discovered. Check board power and that it is advertising.\n")
		os.Exit(exitFailed)
	}
	return nil
}

func discoverSerialPorts() int {
	ports, err := link.ListSerialPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Serial error: %v\n", err)
		return exitConnection
	}

	fmt.Printf("Serial ports found: %d\n", len(ports))
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
	if len(ports) == 0 {
		return exitFailed
	}
	return exitOK
}
