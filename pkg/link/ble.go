// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

// Default BLE identifiers. The board exposes a serial-style service with one
// characteristic used for both directions.
const (
	DefaultBLENamePrefix  = "BitBrick"
	DefaultBLEServiceUUID = "0000ffe0-0000-1000-8000-00805f9b34fb"
	DefaultBLETxUUID      = "0000ffe1-0000-1000-8000-00805f9b34fb"
	DefaultBLERxUUID      = "0000ffe1-0000-1000-8000-00805f9b34fb"
)

var (
	// ErrScanTimeout is returned when no matching board was found before the
	// scan timeout elapsed
	ErrScanTimeout = errors.New("timed out attempting to discover device")
	// ErrServiceNotAvailable is returned when the connected board does not
	// implement the expected service
	ErrServiceNotAvailable = errors.New("device does not implement required service")
	// ErrCharacteristicNotAvailable is returned when a required
	// characteristic is missing from the service
	ErrCharacteristicNotAvailable = errors.New("unable to access required characteristic on device")
)

// BLEOptions selects and configures a Bluetooth LE board
type BLEOptions struct {
	Adapter      *bluetooth.Adapter
	ConnParams   bluetooth.ConnectionParams
	NamePrefix   string
	ServiceUUID  string
	TxUUID       string
	RxUUID       string
	ScanTimeout  time.Duration
	PollInterval time.Duration
	Logger       *zap.Logger
}

func (o *BLEOptions) setDefaults() {
	if o.Adapter == nil {
		o.Adapter = bluetooth.DefaultAdapter
	}
	if o.NamePrefix == "" {
		o.NamePrefix = DefaultBLENamePrefix
	}
	if o.ServiceUUID == "" {
		o.ServiceUUID = DefaultBLEServiceUUID
	}
	if o.TxUUID == "" {
		o.TxUUID = DefaultBLETxUUID
	}
	if o.RxUUID == "" {
		o.RxUUID = DefaultBLERxUUID
	}
	if o.ScanTimeout <= 0 {
		o.ScanTimeout = 10 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 50 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// BLEDevice is a board seen during a scan
type BLEDevice struct {
	Address string
	Name    string
	RSSI    int16
}

// ScanBLE reports every advertising device whose name starts with prefix
// until timeout elapses or ctx is cancelled
func ScanBLE(ctx context.Context, adapter *bluetooth.Adapter, prefix string, timeout time.Duration, found func(BLEDevice)) error {
	if adapter == nil {
		adapter = bluetooth.DefaultAdapter
	}
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable adapter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	seen := make(map[string]bool)
	var mu sync.Mutex

	errCh := make(chan error, 1)
	go func() {
		errCh <- adapter.Scan(func(a *bluetooth.Adapter, res bluetooth.ScanResult) {
			if !strings.HasPrefix(res.LocalName(), prefix) {
				return
			}
			addr := res.Address.String()

			mu.Lock()
			dup := seen[addr]
			seen[addr] = true
			mu.Unlock()

			if !dup {
				found(BLEDevice{Address: addr, Name: res.LocalName(), RSSI: res.RSSI})
			}
		})
	}()

	select {
	case <-ctx.Done():
		adapter.StopScan()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// BLEConn is a connected board. Writes go out as write-without-response on
// the TX characteristic; reads poll the RX characteristic and return each
// value as one line.
type BLEConn struct {
	device *bluetooth.Device
	tx     bluetooth.DeviceCharacteristic
	rx     bluetooth.DeviceCharacteristic
	poll   time.Duration
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	buf       []byte
	bufOffset int
}

// OpenBLE scans for the first board whose name matches the prefix, connects
// and resolves its characteristics
func OpenBLE(ctx context.Context, opts BLEOptions) (*BLEConn, error) {
	opts.setDefaults()
	adapter := opts.Adapter

	serviceUUID, err := bluetooth.ParseUUID(opts.ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid service UUID %q: %w", opts.ServiceUUID, err)
	}
	txUUID, err := bluetooth.ParseUUID(opts.TxUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid TX UUID %q: %w", opts.TxUUID, err)
	}
	rxUUID, err := bluetooth.ParseUUID(opts.RxUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid RX UUID %q: %w", opts.RxUUID, err)
	}

	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable adapter: %w", err)
	}

	devCh := make(chan bluetooth.ScanResult, 1)
	go func() {
		err := adapter.Scan(func(a *bluetooth.Adapter, res bluetooth.ScanResult) {
			if strings.HasPrefix(res.LocalName(), opts.NamePrefix) {
				a.StopScan()
				select {
				case devCh <- res:
				default:
				}
			}
		})
		if err != nil {
			opts.Logger.Warn("BLE scan failed", zap.Error(err))
		}
	}()

	var device *bluetooth.Device
	select {
	case res := <-devCh:
		opts.Logger.Info("board found",
			zap.String("address", res.Address.String()),
			zap.String("name", res.LocalName()),
			zap.Int16("rssi", res.RSSI),
		)
		device, err = adapter.Connect(res.Address, opts.ConnParams)
		if err != nil {
			return nil, fmt.Errorf("failed to connect: %w", err)
		}
	case <-time.After(opts.ScanTimeout):
		adapter.StopScan()
		return nil, ErrScanTimeout
	case <-ctx.Done():
		adapter.StopScan()
		return nil, ctx.Err()
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil {
		device.Disconnect()
		return nil, err
	} else if len(services) == 0 {
		device.Disconnect()
		return nil, ErrServiceNotAvailable
	}

	uuids := []bluetooth.UUID{txUUID}
	if rxUUID != txUUID {
		uuids = append(uuids, rxUUID)
	}
	chars, err := services[0].DiscoverCharacteristics(uuids)
	if err != nil {
		device.Disconnect()
		return nil, err
	}

	c := &BLEConn{device: device, poll: opts.PollInterval, logger: opts.Logger}
	var haveTx, haveRx bool
	for _, ch := range chars {
		if ch.UUID() == txUUID {
			c.tx, haveTx = ch, true
		}
		if ch.UUID() == rxUUID {
			c.rx, haveRx = ch, true
		}
	}
	if !haveTx || !haveRx {
		device.Disconnect()
		return nil, ErrCharacteristicNotAvailable
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

// Read waits one poll interval, then reads the RX characteristic. Empty
// values are skipped.
func (c *BLEConn) Read(p []byte) (int, error) {
	if c.bufOffset < len(c.buf) {
		n := copy(p, c.buf[c.bufOffset:])
		c.bufOffset += n
		return n, nil
	}

	data := make([]byte, 64)
	for {
		select {
		case <-c.ctx.Done():
			return 0, ErrConnectionClosed
		case <-time.After(c.poll):
		}

		n, err := c.rx.Read(data)
		if err != nil {
			return 0, err
		}
		value := bytes.TrimRight(data[:n], "\x00\r\n")
		if len(value) == 0 {
			continue
		}

		c.buf = append(append(c.buf[:0], value...), '\n')
		n = copy(p, c.buf)
		c.bufOffset = n
		return n, nil
	}
}

// Write sends p, without its line terminator, to the TX characteristic
func (c *BLEConn) Write(p []byte) (int, error) {
	if c.ctx.Err() != nil {
		return 0, ErrConnectionClosed
	}
	if _, err := c.tx.WriteWithoutResponse(bytes.TrimRight(p, "\r\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close disconnects from the board
func (c *BLEConn) Close() error {
	c.cancel()
	return c.device.Disconnect()
}
