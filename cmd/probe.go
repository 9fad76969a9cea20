// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
	"github.com/Thermoquad/bitbrick/pkg/link"
)

// Exit codes shared by probe-style commands
const (
	exitOK         = 0
	exitFailed     = 1
	exitConnection = 2
)

var (
	probeTimeout int
	probeCount   int
	probeWrite   bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for a valid sensor frame",
	Long: `Wait for valid sensor frames on the connection until timeout.

This command connects to the board and reads sensor frames until --count of
them decode cleanly. Frames that fail to decode are reported and skipped.
With --write a stop-all command frame is sent first, which checks the write
path and leaves every output off.

Exit codes:
  0 - Frames received before timeout
  1 - Timeout reached without enough valid frames
  2 - Connection error

Useful for testing connectivity over serial, WebSocket or BLE.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for frames")
	probeCmd.Flags().IntVar(&probeCount, "count", 1, "Number of valid sensor frames to wait for")
	probeCmd.Flags().BoolVar(&probeWrite, "write", false, "Send a stop-all frame before reading")
}

func runProbe(cmd *cobra.Command, args []string) error {
	board, connInfo, err := OpenBoard(cmd.Context(), cfg.Link)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnection)
	}

	fmt.Printf("bitbrick - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for %d valid sensor frame(s)...\n\n", probeCount)

	device := bitbrick.NewDevice(board, deviceOptions()...)
	code := probe(os.Stdout, device, time.Duration(probeTimeout)*time.Second, probeCount, probeWrite)
	closeBoard(board)

	os.Exit(code)
	return nil
}

// probe reads sensor frames until count decode or timeout elapses, and
// returns the exit code
func probe(w io.Writer, device *bitbrick.Device, timeout time.Duration, count int, write bool) int {
	start := time.Now()
	deadline := start.Add(timeout)

	if write {
		if err := device.StopAll(); err != nil {
			fmt.Fprintf(w, "SEND FAILED: %v\n", err)
			return exitConnection
		}
		fmt.Fprintf(w, "Sent %s\n", device.LastFrame())
	}

	valid, invalid := 0, 0
	for time.Now().Before(deadline) {
		values, err := device.ReadSensors()

		var decodeErr *bitbrick.DecodeError
		switch {
		case err == nil:
			valid++
			fmt.Fprintf(w, "Frame %d/%d after %v:", valid, count, time.Since(start).Round(time.Millisecond))
			for i, v := range values {
				fmt.Fprintf(w, " %s=%d", bitbrick.SensorPorts[i], v)
			}
			fmt.Fprintln(w)
			if valid >= count {
				if invalid > 0 {
					fmt.Fprintf(w, "(skipped %d invalid frames)\n", invalid)
				}
				fmt.Fprintf(w, "SUCCESS\n")
				return exitOK
			}

		case errors.As(err, &decodeErr):
			invalid++
			fmt.Fprintf(w, "Invalid frame: %v\n", err)

		case errors.Is(err, link.ErrNoSensorFrame):
			// Keep waiting until the deadline

		default:
			fmt.Fprintf(w, "Read error: %v\n", err)
			return exitConnection
		}

		time.Sleep(50 * time.Millisecond)
	}

	fmt.Fprintf(w, "TIMEOUT: %d of %d valid frames within %v\n", valid, count, timeout)
	return exitFailed
}
