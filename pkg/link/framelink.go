// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultSensorTimeout bounds how long GetSensorValues waits for the first
// sensor frame
const DefaultSensorTimeout = 2 * time.Second

// ErrNoSensorFrame is returned when no sensor frame arrived in time
var ErrNoSensorFrame = errors.New("no sensor frame received")

// FrameLinkOption configures a FrameLink
type FrameLinkOption func(*FrameLink)

// WithLogger sets the link logger (default: no-op)
func WithLogger(l *zap.Logger) FrameLinkOption {
	return func(f *FrameLink) {
		f.logger = l
	}
}

// WithRateLimit throttles outgoing command frames. A zero limit disables
// throttling.
func WithRateLimit(limit rate.Limit, burst int) FrameLinkOption {
	return func(f *FrameLink) {
		if limit <= 0 {
			f.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithSensorTimeout sets how long GetSensorValues waits for the first frame
func WithSensorTimeout(d time.Duration) FrameLinkOption {
	return func(f *FrameLink) {
		f.sensorTimeout = d
	}
}

// FrameLink implements the device transport over a line-oriented Conn. A
// background reader keeps the most recent non-empty line as the latest
// sensor frame.
type FrameLink struct {
	conn          Conn
	logger        *zap.Logger
	limiter       *rate.Limiter
	sensorTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu        sync.Mutex
	latest    string
	frames    uint64
	readErr   error
	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

// NewFrameLink starts reading conn and returns the link. The link owns conn
// and closes it on Close.
func NewFrameLink(conn Conn, opts ...FrameLinkOption) *FrameLink {
	ctx, cancel := context.WithCancel(context.Background())
	f := &FrameLink{
		conn:          conn,
		logger:        zap.NewNop(),
		sensorTimeout: DefaultSensorTimeout,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}

	go f.readLoop()
	return f
}

func (f *FrameLink) readLoop() {
	defer close(f.done)

	scanner := bufio.NewScanner(f.conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		f.mu.Lock()
		f.latest = line
		f.frames++
		f.mu.Unlock()
		f.readyOnce.Do(func() { close(f.ready) })

		f.logger.Debug("frame received", zap.String("frame", line))
	}

	err := scanner.Err()
	if err == nil || errors.Is(err, io.EOF) {
		err = ErrConnectionClosed
	}

	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()

	if f.ctx.Err() == nil {
		f.logger.Warn("link reader stopped", zap.Error(err))
	}
}

// SendCommand writes frame as one line, waiting for the rate limiter first
func (f *FrameLink) SendCommand(frame string) error {
	if f.limiter != nil {
		if err := f.limiter.Wait(f.ctx); err != nil {
			return ErrConnectionClosed
		}
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if _, err := io.WriteString(f.conn, frame+"\n"); err != nil {
		return err
	}
	return nil
}

// GetSensorValues returns the most recent sensor frame. Before the first
// frame has arrived it waits up to the sensor timeout.
func (f *FrameLink) GetSensorValues() (string, error) {
	timer := time.NewTimer(f.sensorTimeout)
	defer timer.Stop()

	select {
	case <-f.ready:
	case <-f.done:
	case <-timer.C:
		return "", ErrNoSensorFrame
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.latest, nil
}

// Frames returns the number of lines received so far
func (f *FrameLink) Frames() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

// Done is closed when the reader stops
func (f *FrameLink) Done() <-chan struct{} {
	return f.done
}

// Close closes the connection and waits for the reader to stop
func (f *FrameLink) Close() error {
	var err error
	f.closeOnce.Do(func() {
		f.cancel()
		err = f.conn.Close()
		<-f.done
	})
	return err
}
