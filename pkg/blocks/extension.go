// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package blocks

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
)

// ErrUnknownOpcode is returned by Invoke for an opcode the extension does not
// define
var ErrUnknownOpcode = errors.New("unknown opcode")

// ErrUnknownArgument is returned when a block is given an argument it does
// not take
var ErrUnknownArgument = errors.New("unknown argument")

// Device is the subset of *bitbrick.Device the blocks drive
type Device interface {
	StopAll() error
	TurnOffLED() error
	SetLEDColor(r, g, b float64) error
	TurnOffMotor() error
	SetMotorPower(port bitbrick.Port, power float64) error
	SetServoDegree(port bitbrick.Port, degree float64) error
	SensorValue(index int) (uint16, error)
}

// Args holds block arguments keyed by argument name (PORT, RED, ...)
type Args map[string]any

// Option configures an Extension
type Option func(*Extension)

// WithLogger sets the extension logger (default: no-op)
func WithLogger(l *zap.Logger) Option {
	return func(e *Extension) {
		e.logger = l
	}
}

// Extension maps block invocations onto a device
type Extension struct {
	device Device
	logger *zap.Logger
}

// New creates the extension and subscribes the device's StopAll to the
// host's stop event
func New(rt Runtime, device Device, opts ...Option) *Extension {
	e := &Extension{
		device: device,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	rt.On(ProjectStopAll, e.stopAll)
	return e
}

func (e *Extension) stopAll() {
	if err := e.device.StopAll(); err != nil {
		e.logger.Warn("stop all failed", zap.Error(err))
	}
}

// GetSensorValue reads the sensor named by PORT (0-3). ok is false, and the
// device is not touched, when PORT is anything else.
func (e *Extension) GetSensorValue(args Args) (value uint16, ok bool, err error) {
	port := ToNumber(args[ArgPort])
	if port != 0 && port != 1 && port != 2 && port != 3 {
		e.logger.Debug("sensor port out of range", zap.Any("port", args[ArgPort]))
		return 0, false, nil
	}

	value, err = e.device.SensorValue(int(port))
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// TurnOffLED turns the LED off
func (e *Extension) TurnOffLED(Args) error {
	return e.device.TurnOffLED()
}

// SetLEDColor sets the LED from RED, GREEN and BLUE. The device clamps.
func (e *Extension) SetLEDColor(args Args) error {
	return e.device.SetLEDColor(
		ToNumber(args[ArgRed]),
		ToNumber(args[ArgGreen]),
		ToNumber(args[ArgBlue]),
	)
}

// TurnOffMotor switches all four actuator channels off
func (e *Extension) TurnOffMotor(Args) error {
	return e.device.TurnOffMotor()
}

// MotorSetPower sets the motor on PORT to POWER percent, clamped to
// [-100,100]
func (e *Extension) MotorSetPower(args Args) error {
	port, err := motorPort(args)
	if err != nil {
		return err
	}
	power := Clamp(ToNumber(args[ArgPower]), bitbrick.MotorPowerMin, bitbrick.MotorPowerMax)
	return e.device.SetMotorPower(port, power)
}

// ServoSetDegree sets the servo on PORT to DEGREE, clamped to [0,180]
func (e *Extension) ServoSetDegree(args Args) error {
	port, err := motorPort(args)
	if err != nil {
		return err
	}
	degree := Clamp(ToNumber(args[ArgDegree]), bitbrick.ServoDegreeMin, bitbrick.ServoDegreeMax)
	return e.device.SetServoDegree(port, degree)
}

func motorPort(args Args) (bitbrick.Port, error) {
	return bitbrick.ParsePort(ToNumber(args[ArgPort]))
}

// Invoke runs the block named by opcode. Reporter blocks return their value;
// command blocks and an out-of-range sensor port return nil.
func (e *Extension) Invoke(opcode string, args Args) (any, error) {
	e.logger.Debug("invoke block", zap.String("opcode", opcode), zap.Any("args", args))

	var err error
	switch opcode {
	case OpGetSensorValue:
		value, ok, err := e.GetSensorValue(args)
		if err != nil || !ok {
			return nil, err
		}
		return value, nil
	case OpTurnOffLED:
		err = e.TurnOffLED(args)
	case OpSetLEDColor:
		err = e.SetLEDColor(args)
	case OpTurnOffMotor:
		err = e.TurnOffMotor(args)
	case OpMotorSetPower:
		err = e.MotorSetPower(args)
	case OpServoSetDegree:
		err = e.ServoSetDegree(args)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOpcode, opcode)
	}
	return nil, err
}
