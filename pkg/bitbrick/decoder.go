// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitbrick

import (
	"fmt"
	"strconv"
)

// SensorValues holds one 10-bit reading per sensor port
type SensorValues [SensorCount]uint16

// DecodeError describes a sensor frame that could not be decoded
type DecodeError struct {
	Frame  string
	Offset int // hex-character offset of the failing field, -1 for the frame as a whole
	Reason string
	Err    error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("sensor frame %q: %s", e.Frame, e.Reason)
	}
	return fmt.Sprintf("sensor frame %q at offset %d: %s", e.Frame, e.Offset, e.Reason)
}

// Unwrap returns the underlying parse error, if any
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeSensorFrame extracts the four sensor readings from a sensor frame.
//
// Sensor i occupies the 4 hex characters at offset 4+4*i. Each field is read
// as a 16-bit value and its top 6 bits are dropped, leaving 0-1023. The first
// four characters are not inspected and anything past the last field is
// ignored.
func DecodeSensorFrame(frame string) (SensorValues, error) {
	var values SensorValues

	if len(frame) < SensorFrameLen {
		return values, &DecodeError{
			Frame:  frame,
			Offset: -1,
			Reason: fmt.Sprintf("too short: %d characters (need %d)", len(frame), SensorFrameLen),
		}
	}

	for i := range values {
		offset := SensorOffset + i*SensorFieldWidth
		field := frame[offset : offset+SensorFieldWidth]
		if !isHex(field) {
			return SensorValues{}, &DecodeError{
				Frame:  frame,
				Offset: offset,
				Reason: fmt.Sprintf("sensor %d field %q is not hexadecimal", i+1, field),
			}
		}
		raw, err := strconv.ParseUint(field, 16, 16)
		if err != nil {
			return SensorValues{}, &DecodeError{
				Frame:  frame,
				Offset: offset,
				Reason: fmt.Sprintf("sensor %d field %q", i+1, field),
				Err:    err,
			}
		}
		values[i] = uint16(raw) & SensorMask
	}

	return values, nil
}

// EncodeSensorFrame builds a sensor frame reporting the given values. The
// device side of the protocol; used by the mock transport and tests.
func EncodeSensorFrame(values SensorValues) string {
	frame := FrameHeader
	for _, v := range values {
		frame += fmt.Sprintf("%04x", v&SensorMask)
	}
	return frame
}

// isHex reports whether s consists only of hex digits
func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
