// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitbrick

import (
	"errors"
	"strconv"
	"testing"
)

func TestDecodeSensorFrame_FieldValues(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  uint16
	}{
		{"zero", "0000", 0},
		{"max 10-bit", "03FF", 1023},
		{"all bits set", "FFFF", 1023},
		{"top bits dropped", "FC00", 0},
		{"one", "0001", 1},
		{"mid", "0200", 512},
		{"lowercase", "03ff", 1023},
		{"noise above 10 bits", "A555", 0x155},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := "FFFF" + tt.field + tt.field + tt.field + tt.field
			values, err := DecodeSensorFrame(frame)
			if err != nil {
				t.Fatalf("DecodeSensorFrame(%q) failed: %v", frame, err)
			}
			for i, v := range values {
				if v != tt.want {
					t.Errorf("sensor %d = %d, want %d", i+1, v, tt.want)
				}
			}
		})
	}
}

func TestDecodeSensorFrame_FieldOffsets(t *testing.T) {
	frame := "ABCD" + "0001" + "0002" + "0003" + "0004"
	values, err := DecodeSensorFrame(frame)
	if err != nil {
		t.Fatalf("DecodeSensorFrame failed: %v", err)
	}

	want := SensorValues{1, 2, 3, 4}
	if values != want {
		t.Errorf("DecodeSensorFrame = %v, want %v", values, want)
	}
}

func TestDecodeSensorFrame_MatchesBitSlicing(t *testing.T) {
	// Low 10 bits must equal binary digits 6..15 of the 16-digit rendering
	for raw := 0; raw <= 0xFFFF; raw += 97 {
		field := strconv.FormatUint(uint64(raw), 16)
		for len(field) < 4 {
			field = "0" + field
		}
		bin := strconv.FormatUint(uint64(raw), 2)
		for len(bin) < 16 {
			bin = "0" + bin
		}
		want, _ := strconv.ParseUint(bin[6:16], 2, 16)

		values, err := DecodeSensorFrame("0000" + field + "0000" + "0000" + "0000")
		if err != nil {
			t.Fatalf("DecodeSensorFrame failed for field %q: %v", field, err)
		}
		if uint64(values[0]) != want {
			t.Errorf("field %q: got %d, want %d", field, values[0], want)
		}
	}
}

func TestDecodeSensorFrame_TrailingIgnored(t *testing.T) {
	values, err := DecodeSensorFrame("FFFF0001000200030004FEFE0000")
	if err != nil {
		t.Fatalf("DecodeSensorFrame failed: %v", err)
	}
	if values != (SensorValues{1, 2, 3, 4}) {
		t.Errorf("DecodeSensorFrame = %v, want [1 2 3 4]", values)
	}
}

func TestDecodeSensorFrame_Errors(t *testing.T) {
	tests := []struct {
		name       string
		frame      string
		wantOffset int
	}{
		{"empty", "", -1},
		{"short by one", "FFFF000100020003000", -1},
		{"header only", "FFFF", -1},
		{"non-hex in sensor 1", "FFFF00G1000200030004", 4},
		{"non-hex in sensor 4", "FFFF00010002000300x4", 16},
		{"sign in field", "FFFF+001000200030004", 4},
		{"space in field", "FFFF0001 00200030004", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSensorFrame(tt.frame)
			if err == nil {
				t.Fatalf("DecodeSensorFrame(%q) should fail", tt.frame)
			}

			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("error should be *DecodeError, got %T", err)
			}
			if decodeErr.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", decodeErr.Offset, tt.wantOffset)
			}
			if decodeErr.Frame != tt.frame {
				t.Errorf("Frame = %q, want %q", decodeErr.Frame, tt.frame)
			}
		})
	}
}

func TestDecodeSensorFrame_HeaderNotValidated(t *testing.T) {
	if _, err := DecodeSensorFrame("zzzz0000000000000000"); err != nil {
		t.Errorf("header should not be validated, got %v", err)
	}
}

func TestEncodeSensorFrame_RoundTrip(t *testing.T) {
	values := SensorValues{0, 1023, 512, 77}
	frame := EncodeSensorFrame(values)

	if len(frame) != SensorFrameLen {
		t.Errorf("len(EncodeSensorFrame) = %d, want %d", len(frame), SensorFrameLen)
	}

	decoded, err := DecodeSensorFrame(frame)
	if err != nil {
		t.Fatalf("DecodeSensorFrame failed: %v", err)
	}
	if decoded != values {
		t.Errorf("round trip = %v, want %v", decoded, values)
	}
}
