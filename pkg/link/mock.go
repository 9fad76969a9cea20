// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
)

// MockTransport stands in for a board. Command frames are logged and kept;
// every sensor read returns the same configured frame.
type MockTransport struct {
	mu          sync.Mutex
	logger      *zap.Logger
	sensorFrame string
	sent        []string
}

// NewMockTransport creates a mock reporting sensorFrame. An empty frame
// reports all sensors at zero.
func NewMockTransport(sensorFrame string, logger *zap.Logger) *MockTransport {
	if sensorFrame == "" {
		sensorFrame = bitbrick.EncodeSensorFrame(bitbrick.SensorValues{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockTransport{sensorFrame: sensorFrame, logger: logger}
}

// SendCommand logs and records frame
func (m *MockTransport) SendCommand(frame string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, frame)
	m.logger.Info("mock command", zap.String("frame", frame))
	return nil
}

// GetSensorValues returns the configured sensor frame
func (m *MockTransport) GetSensorValues() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sensorFrame, nil
}

// SetSensorFrame changes the frame returned by GetSensorValues
func (m *MockTransport) SetSensorFrame(frame string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sensorFrame = frame
}

// Sent returns a copy of every frame sent so far
func (m *MockTransport) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// Close implements io.Closer
func (m *MockTransport) Close() error {
	return nil
}
