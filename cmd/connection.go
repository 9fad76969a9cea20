// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/bitbrick/internal/config"
	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
	"github.com/Thermoquad/bitbrick/pkg/capture"
	"github.com/Thermoquad/bitbrick/pkg/link"
)

// Board is an open transport to a board
type Board interface {
	bitbrick.Transport
	io.Closer
}

// errNoLink is returned when no connection mode was selected
var errNoLink = errors.New("either --port, --url, --replay or --link must be specified")

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("BITBRICK_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenBoard opens the transport selected by the link configuration and
// returns it with a one-line description
func OpenBoard(ctx context.Context, lc config.LinkConfig) (Board, string, error) {
	switch lc.ResolvedKind() {
	case config.LinkWebSocket:
		password := ""
		if lc.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := link.OpenWebSocket(ctx, lc.URL, lc.Username, password, lc.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return newFrameLink(conn, lc), fmt.Sprintf("WebSocket: %s", lc.URL), nil

	case config.LinkSerial:
		if lc.Port == "" {
			return nil, "", fmt.Errorf("serial link needs --port")
		}
		conn, err := link.OpenSerial(lc.Port, lc.Baud)
		if err != nil {
			return nil, "", err
		}
		return newFrameLink(conn, lc), fmt.Sprintf("Serial: %s @ %d baud", lc.Port, lc.Baud), nil

	case config.LinkBLE:
		conn, err := link.OpenBLE(ctx, link.BLEOptions{
			NamePrefix:   lc.BLE.NamePrefix,
			ServiceUUID:  lc.BLE.ServiceUUID,
			TxUUID:       lc.BLE.TxUUID,
			RxUUID:       lc.BLE.RxUUID,
			ScanTimeout:  lc.BLE.ScanTimeout,
			PollInterval: lc.BLE.PollInterval,
			Logger:       logger.Named("ble"),
		})
		if err != nil {
			return nil, "", err
		}
		return newFrameLink(conn, lc), fmt.Sprintf("BLE: %s*", lc.BLE.NamePrefix), nil

	case config.LinkReplay:
		if lc.ReplayFile == "" {
			return nil, "", fmt.Errorf("replay link needs --replay")
		}
		t, err := capture.OpenReplay(lc.ReplayFile, logger.Named("replay"))
		if err != nil {
			return nil, "", err
		}
		return t, fmt.Sprintf("Replay: %s (%d sensor frames)", lc.ReplayFile, t.Len()), nil

	case config.LinkMock:
		return link.NewMockTransport(lc.MockSensorFrame, logger.Named("mock")), "Mock", nil
	}

	return nil, "", errNoLink
}

func newFrameLink(conn link.Conn, lc config.LinkConfig) *link.FrameLink {
	return link.NewFrameLink(conn,
		link.WithLogger(logger.Named("link")),
		link.WithRateLimit(rate.Limit(lc.CommandRate), lc.CommandBurst),
		link.WithSensorTimeout(lc.SensorTimeout),
	)
}

// linkDone returns a channel closed when the board link drops, or nil for
// transports that cannot drop
func linkDone(b Board) <-chan struct{} {
	if d, ok := b.(interface{ Done() <-chan struct{} }); ok {
		return d.Done()
	}
	return nil
}

// deviceOptions returns the device options shared by all commands
func deviceOptions(observers ...bitbrick.Observer) []bitbrick.Option {
	opts := []bitbrick.Option{bitbrick.WithLogger(logger.Named("device"))}
	for _, o := range observers {
		if o != nil {
			opts = append(opts, bitbrick.WithObserver(o))
		}
	}
	return opts
}

// closeBoard closes b and logs a failure
func closeBoard(b Board) {
	if err := b.Close(); err != nil {
		logger.Debug("close board", zap.Error(err))
	}
}
