// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/bitbrick/internal/config"
	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
	"github.com/Thermoquad/bitbrick/pkg/blocks"
)

var controlInterval time.Duration

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for driving a board",
	Long: `Drive a bitBrick board via an interactive terminal UI.

The left panel lists the extension's blocks. Select one, fill in its
arguments and press Enter to invoke it, exactly as a visual programming host
would. Menu arguments accept the printed label (A-D for motors, 1-4 for
sensors).

Features:
  - Block invocation with default arguments
  - Live sensor bars
  - Current output state (LED, motor and servo channels)
  - Statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

Leaving the TUI (q outside an input, or ctrl+c) fires the stop-all event, so
every channel is switched off before the program exits. ctrl+s fires it
without leaving.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().DurationVar(&controlInterval, "interval", 200*time.Millisecond, "Sensor poll interval")
}

// errLinkDown is returned while the connection manager is reconnecting
var errLinkDown = errors.New("link down, reconnecting")

// connectionManager handles connection lifecycle and reconnection. It
// implements bitbrick.Transport by forwarding to the current board, so one
// device survives any number of reconnects.
type connectionManager struct {
	link     config.LinkConfig
	board    Board
	connInfo string
	mu       sync.RWMutex
	send     func(tea.Msg)
	done     chan struct{}
}

func (cm *connectionManager) getBoard() Board {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.board
}

func (cm *connectionManager) setBoard(board Board, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.board = board
	cm.connInfo = connInfo
}

// SendCommand implements bitbrick.Transport
func (cm *connectionManager) SendCommand(frame string) error {
	board := cm.getBoard()
	if board == nil {
		return errLinkDown
	}
	return board.SendCommand(frame)
}

// GetSensorValues implements bitbrick.Transport
func (cm *connectionManager) GetSensorValues() (string, error) {
	board := cm.getBoard()
	if board == nil {
		return "", errLinkDown
	}
	return board.GetSensorValues()
}

// watch waits for the current board to drop, then reconnects. Boards that
// cannot drop are held until shutdown.
func (cm *connectionManager) watch() {
	for {
		board := cm.getBoard()
		select {
		case <-cm.done:
			return
		case <-linkDone(board):
		}

		cm.send(connectionLostMsg{})
		cm.setBoard(nil, "")
		closeBoard(board)

		if !cm.reconnect() {
			return // Shutdown requested during reconnect
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		board, connInfo, err := OpenBoard(context.Background(), cm.link)
		if err == nil {
			cm.setBoard(board, connInfo)
			cm.send(reconnectedMsg{connInfo: connInfo})
			return true
		}
		logger.Debug("reconnect failed", zap.Error(err), zap.Duration("backoff", backoff))

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (cm *connectionManager) close() {
	close(cm.done)
	if board := cm.getBoard(); board != nil {
		closeBoard(board)
	}
}

func runControl(cmd *cobra.Command, args []string) error {
	if controlInterval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	// Open initial connection
	board, connInfo, err := OpenBoard(cmd.Context(), cfg.Link)
	if err != nil {
		return err
	}

	cm := &connectionManager{
		link:     cfg.Link,
		board:    board,
		connInfo: connInfo,
		done:     make(chan struct{}),
	}

	stats := bitbrick.NewStatistics()
	device := bitbrick.NewDevice(cm, deviceOptions(stats)...)
	bus := blocks.NewEventBus()
	ext := blocks.New(bus, device, blocks.WithLogger(logger.Named("blocks")))

	m := initialControlModel(ext, bus, device, stats, connInfo)

	// Create TUI program with alt screen and mouse support
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.send = p.Send

	go cm.watch()
	go pollSensors(device, controlInterval, cm.done, p.Send)

	_, runErr := p.Run()

	// Leave the board quiet whichever way the TUI ended
	bus.Emit(blocks.ProjectStopAll)
	cm.close()

	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}
