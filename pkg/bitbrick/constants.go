// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bitbrick implements the BitBrick controller board frame protocol.
//
// The board is driven with a fixed-width hexadecimal command frame carrying the
// complete output state (buzzer, four actuator channels and an RGB LED), and
// reports its four analog sensor ports in a hexadecimal sensor frame. This
// package provides the command state, frame encoding and decoding, and a
// Device that keeps the state and hands frames to a Transport.
package bitbrick

import "fmt"

// Frame sentinels
const (
	FrameHeader = "FFFF"
	FrameFooter = "FEFE"

	// channelPad precedes every channel byte in the command frame
	channelPad = "00"
)

// Frame sizes, in hex characters
const (
	ChannelWidth     = 4                                               // "00" + value byte
	ChannelCount     = 8                                               // buzzer, A-D, red, green, blue
	CommandFrameLen  = len(FrameHeader) + ChannelCount*ChannelWidth + len(FrameFooter) // 40
	SensorFieldWidth = 4
	SensorOffset     = 4 // first sensor field follows a 4-character header
	SensorCount      = 4
	SensorFrameLen   = SensorOffset + SensorCount*SensorFieldWidth // 20
)

// Value ranges
const (
	SensorMask = 0x03FF // low 10 bits of each sensor field
	SensorMax  = SensorMask

	MotorPowerMin  = -100
	MotorPowerMax  = 100
	MotorPowerBias = 128 // power 0 encodes as 0x80

	ServoDegreeMin = 0
	ServoDegreeMax = 180

	ColorMin = 0
	ColorMax = 255
)

// Port identifies one of the four actuator connectors
type Port int

// Actuator ports
const (
	PortA Port = iota
	PortB
	PortC
	PortD
)

// MotorPorts is the fixed port table, indexed by Port
var MotorPorts = [4]string{"A", "B", "C", "D"}

// SensorPorts names the four sensor connectors as printed on the board
var SensorPorts = [SensorCount]string{"1", "2", "3", "4"}

// ErrInvalidPort is returned for a port outside PortA..PortD
var ErrInvalidPort = fmt.Errorf("invalid port")

// Valid reports whether p names one of the four actuator ports
func (p Port) Valid() bool {
	return p >= PortA && p <= PortD
}

// String returns the port letter
func (p Port) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Port(%d)", int(p))
	}
	return MotorPorts[p]
}

// ParsePort converts a port index to a Port. Only the exact integers 0-3 are
// accepted.
func ParsePort(index float64) (Port, error) {
	p := Port(index)
	if float64(p) != index || !p.Valid() {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPort, index)
	}
	return p, nil
}
