// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitbrick

import "math"

// Encoder keeps the board's output state and renders it into a command
// frame after every mutation. The zero value is ready to use with every
// channel off.
type Encoder struct {
	state CommandState
}

// NewEncoder creates an encoder with every channel at zero
func NewEncoder() *Encoder {
	return &Encoder{}
}

// State returns a copy of the current channel state
func (e *Encoder) State() CommandState {
	return e.state
}

// Frame renders the current state without mutating it
func (e *Encoder) Frame() string {
	return e.state.Frame()
}

// SetLEDColor clamps each component to 0-255 and returns the new frame
func (e *Encoder) SetLEDColor(r, g, b float64) string {
	e.state.Red = EncodeColor(r)
	e.state.Green = EncodeColor(g)
	e.state.Blue = EncodeColor(b)
	return e.Frame()
}

// TurnOffLED zeroes the RGB channels and returns the new frame
func (e *Encoder) TurnOffLED() string {
	e.state.Red = 0
	e.state.Green = 0
	e.state.Blue = 0
	return e.Frame()
}

// SetMotorPower stores a signed power percentage for port and returns the
// new frame. Power 0 is the centered byte 0x80.
func (e *Encoder) SetMotorPower(port Port, power float64) (string, error) {
	ch, err := e.state.actuator(port)
	if err != nil {
		return "", err
	}
	*ch = EncodeMotorPower(power)
	return e.Frame(), nil
}

// SetServoDegree stores a servo angle for port and returns the new frame
func (e *Encoder) SetServoDegree(port Port, degree float64) (string, error) {
	ch, err := e.state.actuator(port)
	if err != nil {
		return "", err
	}
	*ch = EncodeServoDegree(degree)
	return e.Frame(), nil
}

// TurnOffMotor writes a raw zero to all four actuator channels. This is
// "off", not the centered value SetMotorPower(port, 0) writes.
func (e *Encoder) TurnOffMotor() string {
	e.state.A = 0
	e.state.B = 0
	e.state.C = 0
	e.state.D = 0
	return e.Frame()
}

// StopAll zeroes every channel and returns the all-zero frame
func (e *Encoder) StopAll() string {
	e.state = CommandState{}
	return e.Frame()
}

// EncodeColor clamps a color component to 0-255
func EncodeColor(v float64) uint8 {
	return uint8(clamp(roundHalfUp(v), ColorMin, ColorMax))
}

// EncodeMotorPower maps a power percentage in [-100,100] onto a byte
// centered at 128: -100 -> 0x1C, 0 -> 0x80, 100 -> 0xE4.
func EncodeMotorPower(power float64) uint8 {
	return uint8(clamp(roundHalfUp(power), MotorPowerMin, MotorPowerMax) + MotorPowerBias)
}

// EncodeServoDegree maps an angle in [0,180] directly onto a byte
func EncodeServoDegree(degree float64) uint8 {
	return uint8(clamp(roundHalfUp(degree), ServoDegreeMin, ServoDegreeMax))
}

// roundHalfUp rounds half toward positive infinity, so -2.5 becomes -2.
// NaN rounds to 0.
func roundHalfUp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Floor(v + 0.5)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(math.Min(hi, v), lo)
}
