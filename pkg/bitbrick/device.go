// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitbrick

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Transport delivers command frames to the board and fetches its latest
// sensor frame. Implementations live in pkg/link and pkg/capture.
type Transport interface {
	SendCommand(frame string) error
	GetSensorValues() (string, error)
}

// Observer is notified of every frame the device sends or decodes. err is
// the transport or decode failure, if any.
type Observer interface {
	CommandSent(frame string, err error)
	SensorDecoded(frame string, values SensorValues, err error)
}

// Option configures a Device
type Option func(*Device)

// WithLogger sets the device logger (default: no-op)
func WithLogger(l *zap.Logger) Option {
	return func(d *Device) {
		d.logger = l
	}
}

// WithObserver registers an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(d *Device) {
		d.observers = append(d.observers, o)
	}
}

// Device represents one BitBrick board. Every operation mutates the output
// state, renders the full command frame and hands it to the transport.
// Calls are serialized, so a sensor read never decodes before the frame
// from the previous read has arrived.
type Device struct {
	mu        sync.Mutex
	transport Transport
	encoder   *Encoder
	sensors   SensorValues
	lastFrame string
	logger    *zap.Logger
	observers []Observer
}

// NewDevice creates a device with all channels at zero. No frame is sent
// until the first operation.
func NewDevice(t Transport, opts ...Option) *Device {
	d := &Device{
		transport: t,
		encoder:   NewEncoder(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns a copy of the current output state
func (d *Device) State() CommandState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.encoder.State()
}

// LastFrame returns the most recently emitted command frame, or "" if none
func (d *Device) LastFrame() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastFrame
}

// Sensors returns the most recently decoded readings without touching the
// transport
func (d *Device) Sensors() SensorValues {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sensors
}

// SetLEDColor sets the LED color. Components are clamped to 0-255.
func (d *Device) SetLEDColor(r, g, b float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.send(d.encoder.SetLEDColor(r, g, b))
}

// TurnOffLED turns the LED off
func (d *Device) TurnOffLED() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.send(d.encoder.TurnOffLED())
}

// SetMotorPower sets a motor's power in percent, clamped to [-100,100]
func (d *Device) SetMotorPower(port Port, power float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	frame, err := d.encoder.SetMotorPower(port, power)
	if err != nil {
		return err
	}
	return d.send(frame)
}

// SetServoDegree sets a servo angle in degrees, clamped to [0,180]
func (d *Device) SetServoDegree(port Port, degree float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	frame, err := d.encoder.SetServoDegree(port, degree)
	if err != nil {
		return err
	}
	return d.send(frame)
}

// TurnOffMotor zeroes all four actuator channels
func (d *Device) TurnOffMotor() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.send(d.encoder.TurnOffMotor())
}

// StopAll zeroes every channel and sends the all-zero frame
func (d *Device) StopAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.send(d.encoder.StopAll())
}

// ReadSensors fetches the latest sensor frame from the transport and decodes
// all four channels. On failure the previous readings are kept.
func (d *Device) ReadSensors() (SensorValues, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readSensors()
}

// SensorValue re-reads and decodes the sensor frame, then returns the
// reading for sensor index 0-3
func (d *Device) SensorValue(index int) (uint16, error) {
	if index < 0 || index >= SensorCount {
		return 0, fmt.Errorf("sensor index %d out of range", index)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	values, err := d.readSensors()
	if err != nil {
		return 0, err
	}
	return values[index], nil
}

// send hands a frame to the transport. Transport errors are returned as-is.
func (d *Device) send(frame string) error {
	d.lastFrame = frame
	err := d.transport.SendCommand(frame)
	if err != nil {
		d.logger.Warn("send command failed", zap.String("frame", frame), zap.Error(err))
	} else {
		d.logger.Debug("command sent", zap.String("frame", frame))
	}
	for _, o := range d.observers {
		o.CommandSent(frame, err)
	}
	return err
}

func (d *Device) readSensors() (SensorValues, error) {
	frame, err := d.transport.GetSensorValues()
	if err != nil {
		d.logger.Warn("sensor read failed", zap.Error(err))
		for _, o := range d.observers {
			o.SensorDecoded("", SensorValues{}, err)
		}
		return d.sensors, err
	}

	values, err := DecodeSensorFrame(frame)
	for _, o := range d.observers {
		o.SensorDecoded(frame, values, err)
	}
	if err != nil {
		d.logger.Warn("sensor frame rejected", zap.String("frame", frame), zap.Error(err))
		return d.sensors, err
	}

	d.sensors = values
	d.logger.Debug("sensors decoded",
		zap.String("frame", frame),
		zap.Uint16s("values", values[:]),
	)
	return values, nil
}
