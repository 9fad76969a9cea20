// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
)

// newPipeLink returns a link over one end of an in-memory pipe and the board
// end of it
func newPipeLink(t *testing.T, opts ...FrameLinkOption) (*FrameLink, net.Conn) {
	t.Helper()
	host, board := net.Pipe()
	l := NewFrameLink(host, opts...)
	t.Cleanup(func() {
		board.Close()
		l.Close()
	})
	return l, board
}

func TestFrameLink_SendCommandWritesLine(t *testing.T) {
	l, board := newPipeLink(t)

	frame := bitbrick.NewEncoder().SetLEDColor(255, 0, 0)
	errCh := make(chan error, 1)
	go func() { errCh <- l.SendCommand(frame) }()

	line, err := bufio.NewReader(board).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, frame+"\n", line)
	require.NoError(t, <-errCh)
}

func TestFrameLink_LatestSensorFrame(t *testing.T) {
	l, board := newPipeLink(t, WithSensorTimeout(time.Second))

	_, err := io.WriteString(board, "FFFF0001000200030004\r\n\nFFFF0005000600070008\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return l.Frames() == 2 }, time.Second, 5*time.Millisecond)

	frame, err := l.GetSensorValues()
	require.NoError(t, err)
	assert.Equal(t, "FFFF0005000600070008", frame)

	values, err := bitbrick.DecodeSensorFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, bitbrick.SensorValues{5, 6, 7, 8}, values)
}

func TestFrameLink_NoSensorFrameTimeout(t *testing.T) {
	l, _ := newPipeLink(t, WithSensorTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := l.GetSensorValues()
	assert.ErrorIs(t, err, ErrNoSensorFrame)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFrameLink_ClosedByBoard(t *testing.T) {
	l, board := newPipeLink(t, WithSensorTimeout(time.Second))

	require.NoError(t, board.Close())
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("reader did not stop")
	}

	_, err := l.GetSensorValues()
	assert.Error(t, err)
}

func TestFrameLink_RateLimit(t *testing.T) {
	l, board := newPipeLink(t, WithRateLimit(rate.Limit(50), 1))

	go io.Copy(io.Discard, board)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.SendCommand("FFFF"+strings.Repeat("0000", 8)+"FEFE"))
	}
	// Burst of one, then two waits of 20ms
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestFrameLink_DeviceRoundTrip(t *testing.T) {
	l, board := newPipeLink(t, WithSensorTimeout(time.Second))
	dev := bitbrick.NewDevice(l)

	// Board side: answer every command with a sensor report
	go func() {
		r := bufio.NewReader(board)
		for {
			if _, err := r.ReadString('\n'); err != nil {
				return
			}
			io.WriteString(board, bitbrick.EncodeSensorFrame(bitbrick.SensorValues{1023, 0, 1, 512})+"\n")
		}
	}()

	require.NoError(t, dev.SetMotorPower(bitbrick.PortB, -50))
	require.Eventually(t, func() bool { return l.Frames() > 0 }, time.Second, 5*time.Millisecond)

	v, err := dev.SensorValue(3)
	require.NoError(t, err)
	assert.Equal(t, uint16(512), v)
}

func TestMockTransport(t *testing.T) {
	m := NewMockTransport("", nil)

	frame, err := m.GetSensorValues()
	require.NoError(t, err)
	assert.Equal(t, "FFFF0000000000000000", frame)

	dev := bitbrick.NewDevice(m)
	require.NoError(t, dev.StopAll())
	require.NoError(t, dev.SetLEDColor(1, 1, 1))
	assert.Len(t, m.Sent(), 2)

	m.SetSensorFrame("FFFF03FF03FF03FF03FF")
	values, err := dev.ReadSensors()
	require.NoError(t, err)
	assert.Equal(t, bitbrick.SensorValues{1023, 1023, 1023, 1023}, values)
}
