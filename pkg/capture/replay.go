// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"sync"

	"go.uber.org/zap"
)

// ReplayTransport plays back the sensor frames of a capture, in order and
// wrapping around at the end. Commands are accepted and kept.
type ReplayTransport struct {
	mu     sync.Mutex
	frames []string
	next   int
	sent   []string
	logger *zap.Logger
}

// NewReplayTransport builds a replay from records. Only sensor records are
// replayed.
func NewReplayTransport(records []Record, logger *zap.Logger) (*ReplayTransport, error) {
	var frames []string
	for _, rec := range records {
		if rec.Direction == Sensor {
			frames = append(frames, rec.Frame)
		}
	}
	if len(frames) == 0 {
		return nil, ErrNoSensorFrames
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayTransport{frames: frames, logger: logger}, nil
}

// OpenReplay loads the capture at path as a transport
func OpenReplay(path string, logger *zap.Logger) (*ReplayTransport, error) {
	records, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewReplayTransport(records, logger)
}

// SendCommand records frame
func (t *ReplayTransport) SendCommand(frame string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, frame)
	t.logger.Debug("replay command", zap.String("frame", frame))
	return nil
}

// GetSensorValues returns the next captured sensor frame
func (t *ReplayTransport) GetSensorValues() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	frame := t.frames[t.next]
	t.next = (t.next + 1) % len(t.frames)
	return frame, nil
}

// Len returns the number of sensor frames in the replay
func (t *ReplayTransport) Len() int {
	return len(t.frames)
}

// Sent returns a copy of the commands received so far
func (t *ReplayTransport) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}

// Close implements io.Closer
func (t *ReplayTransport) Close() error {
	return nil
}
