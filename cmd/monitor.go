// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
	"github.com/Thermoquad/bitbrick/pkg/capture"
	"github.com/Thermoquad/bitbrick/pkg/link"
)

var (
	monitorInterval      time.Duration
	monitorStatsInterval int
	monitorShowAll       bool
	monitorRecord        string
	monitorTUI           bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Poll and display sensor readings",
	Long: `Continuously read the board's sensor frames and display the decoded values.

Each poll re-reads the latest sensor frame and decodes all four channels. By
default a frame is printed only when it differs from the previous one; use
--show-all to print every read. Decode errors are always shown.

Statistics (frame counts, decode errors, rates) are printed every
--stats-interval seconds. With --record the session is written to a CBOR
capture that can later be replayed with --replay.

Supports serial, WebSocket, BLE, replay and mock links.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 200*time.Millisecond, "Sensor poll interval")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Statistics print interval in seconds (0 disables)")
	monitorCmd.Flags().BoolVar(&monitorShowAll, "show-all", false, "Print every sensor frame, not just changes")
	monitorCmd.Flags().StringVar(&monitorRecord, "record", "", "Record frames to a CBOR capture file")
	monitorCmd.Flags().BoolVar(&monitorTUI, "tui", false, "Use terminal UI dashboard")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorInterval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	board, connInfo, err := OpenBoard(cmd.Context(), cfg.Link)
	if err != nil {
		return err
	}
	defer closeBoard(board)

	stats := bitbrick.NewStatistics()
	observers := []bitbrick.Observer{stats}

	if monitorRecord != "" {
		rec, err := capture.Create(monitorRecord)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Warn("close capture", zap.Error(err))
			}
			fmt.Fprintf(os.Stderr, "Recorded %d frames to %s\n", rec.Count(), monitorRecord)
		}()
		observers = append(observers, rec)
	}

	if monitorTUI {
		device := bitbrick.NewDevice(board, deviceOptions(observers...)...)
		return runMonitorTUI(device, board, connInfo, stats)
	}

	printer := &framePrinter{w: os.Stdout, showAll: monitorShowAll}
	observers = append(observers, printer)
	device := bitbrick.NewDevice(board, deviceOptions(observers...)...)

	fmt.Printf("bitbrick - Sensor Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	var statsTick <-chan time.Time
	if monitorStatsInterval > 0 {
		t := time.NewTicker(time.Duration(monitorStatsInterval) * time.Second)
		defer t.Stop()
		statsTick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			stats.CalculateRates()
			fmt.Print("\n" + stats.String())
			return nil

		case <-statsTick:
			stats.CalculateRates()
			fmt.Print(stats.String() + "\n")

		case <-ticker.C:
			_, err := device.ReadSensors()
			if err == nil {
				continue
			}

			var decodeErr *bitbrick.DecodeError
			switch {
			case errors.As(err, &decodeErr):
				// Printed by the observer
			case errors.Is(err, link.ErrConnectionClosed):
				fmt.Printf("Connection closed\n")
				return nil
			case errors.Is(err, link.ErrNoSensorFrame):
				logger.Warn("waiting for sensor frames", zap.Error(err))
			default:
				fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			}
		}
	}
}

// framePrinter prints frames as the device sends and decodes them. Repeated
// sensor frames are skipped unless showAll is set.
type framePrinter struct {
	w       io.Writer
	showAll bool
	last    string
}

// CommandSent implements bitbrick.Observer
func (p *framePrinter) CommandSent(frame string, err error) {
	if err != nil {
		fmt.Fprintf(p.w, "[%s] SEND ERROR: %v\n", time.Now().Format("15:04:05.000"), err)
		return
	}
	fmt.Fprint(p.w, bitbrick.FormatCommandFrame(time.Now(), frame))
}

// SensorDecoded implements bitbrick.Observer
func (p *framePrinter) SensorDecoded(frame string, values bitbrick.SensorValues, err error) {
	switch {
	case frame == "":
		// Transport errors are reported by the caller
		return
	case err != nil:
		fmt.Fprintf(p.w, "[%s] DECODE ERROR: %v\n", time.Now().Format("15:04:05.000"), err)
	case p.showAll || frame != p.last:
		fmt.Fprint(p.w, bitbrick.FormatSensorValues(time.Now(), frame, values))
	}
	p.last = frame
}

//////////////////////////////////////////////////////////////
// Dashboard
//////////////////////////////////////////////////////////////

func runMonitorTUI(device *bitbrick.Device, board Board, connInfo string, stats *bitbrick.Statistics) error {
	m := initialMonitorModel(connInfo, monitorInterval, stats)
	p := tea.NewProgram(m, tea.WithAltScreen())

	done := make(chan struct{})
	go pollSensors(device, monitorInterval, done, p.Send)
	go func() {
		select {
		case <-linkDone(board):
			p.Send(connectionLostMsg{})
		case <-done:
		}
	}()

	_, err := p.Run()
	close(done)
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// pollSensors reads the device every interval and forwards each result
// until done is closed
func pollSensors(device *bitbrick.Device, interval time.Duration, done <-chan struct{}, send func(tea.Msg)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			values, err := device.ReadSensors()
			send(sensorReadMsg{values: values, err: err, at: time.Now()})
		}
	}
}
