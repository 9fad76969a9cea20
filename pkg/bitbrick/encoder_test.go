// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitbrick

import (
	"fmt"
	"strings"
	"testing"
)

// channelField returns the 2-digit value of channel i (wire order) in frame
func channelField(frame string, i int) string {
	offset := len(FrameHeader) + i*ChannelWidth + 2
	return frame[offset : offset+2]
}

// Channel indexes in wire order
const (
	chBuzzer = iota
	chA
	chB
	chC
	chD
	chRed
	chGreen
	chBlue
)

// ============================================================
// Frame Layout Tests
// ============================================================

func TestCommandState_Frame_Zero(t *testing.T) {
	frame := CommandState{}.Frame()
	want := "FFFF" + strings.Repeat("0000", 8) + "FEFE"
	if frame != want {
		t.Errorf("Frame() = %q, want %q", frame, want)
	}
}

func TestCommandState_Frame_Layout(t *testing.T) {
	s := CommandState{
		Buzzer: 0x01,
		A:      0x02,
		B:      0x03,
		C:      0x04,
		D:      0x05,
		Red:    0xAA,
		Green:  0xBB,
		Blue:   0xCC,
	}

	frame := s.Frame()
	want := "FFFF0001000200030004000500aa00bb00ccFEFE"
	if frame != want {
		t.Errorf("Frame() = %q, want %q", frame, want)
	}
	if len(frame) != CommandFrameLen {
		t.Errorf("len(Frame()) = %d, want %d", len(frame), CommandFrameLen)
	}
}

func TestCommandState_Frame_PadBytes(t *testing.T) {
	s := CommandState{Buzzer: 0xFF, A: 0xFF, B: 0xFF, C: 0xFF, D: 0xFF, Red: 0xFF, Green: 0xFF, Blue: 0xFF}
	frame := s.Frame()

	for i := 0; i < ChannelCount; i++ {
		offset := len(FrameHeader) + i*ChannelWidth
		if frame[offset:offset+2] != "00" {
			t.Errorf("channel %d pad = %q, want \"00\"", i, frame[offset:offset+2])
		}
	}
}

func TestParseCommandFrame_RoundTrip(t *testing.T) {
	states := []CommandState{
		{},
		{Buzzer: 1, A: 0x80, B: 0x1C, C: 0xE4, D: 0xB4, Red: 255, Green: 128, Blue: 7},
		{Red: 0x0F},
	}

	for _, s := range states {
		t.Run(s.Frame(), func(t *testing.T) {
			parsed, err := ParseCommandFrame(s.Frame())
			if err != nil {
				t.Fatalf("ParseCommandFrame failed: %v", err)
			}
			if parsed != s {
				t.Errorf("ParseCommandFrame = %+v, want %+v", parsed, s)
			}
		})
	}
}

func TestParseCommandFrame_Invalid(t *testing.T) {
	valid := CommandState{}.Frame()

	tests := []struct {
		name  string
		frame string
	}{
		{"empty", ""},
		{"short", valid[:39]},
		{"long", valid + "0"},
		{"bad header", "FFFE" + valid[4:]},
		{"bad footer", valid[:36] + "FEFF"},
		{"bad pad", valid[:4] + "0100" + valid[8:]},
		{"non-hex value", valid[:4] + "00zz" + valid[8:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCommandFrame(tt.frame); err == nil {
				t.Errorf("ParseCommandFrame(%q) should fail", tt.frame)
			}
		})
	}
}

func TestParseCommandFrame_CaseInsensitive(t *testing.T) {
	s, err := ParseCommandFrame("ffff0000000000000000000000FF00ff00FFfefe")
	if err != nil {
		t.Fatalf("ParseCommandFrame failed: %v", err)
	}
	if s.Red != 0xFF || s.Green != 0xFF || s.Blue != 0xFF {
		t.Errorf("RGB = %d,%d,%d, want 255,255,255", s.Red, s.Green, s.Blue)
	}
}

// ============================================================
// Encoder Tests
// ============================================================

func TestEncoder_SetLEDColor_Clamp(t *testing.T) {
	for r := -1000; r <= 1000; r += 37 {
		g := -r / 2
		b := r * 3 / 4
		t.Run(fmt.Sprintf("%d_%d_%d", r, g, b), func(t *testing.T) {
			e := NewEncoder()
			frame := e.SetLEDColor(float64(r), float64(g), float64(b))

			if got, want := channelField(frame, chRed), fmt.Sprintf("%02x", clampInt(r, 0, 255)); got != want {
				t.Errorf("red = %q, want %q", got, want)
			}
			if got, want := channelField(frame, chGreen), fmt.Sprintf("%02x", clampInt(g, 0, 255)); got != want {
				t.Errorf("green = %q, want %q", got, want)
			}
			if got, want := channelField(frame, chBlue), fmt.Sprintf("%02x", clampInt(b, 0, 255)); got != want {
				t.Errorf("blue = %q, want %q", got, want)
			}
		})
	}
}

func TestEncoder_SetLEDColor_Fraction(t *testing.T) {
	e := NewEncoder()
	frame := e.SetLEDColor(12.5, 12.49, 254.7)

	if got := channelField(frame, chRed); got != "0d" {
		t.Errorf("red = %q, want \"0d\"", got)
	}
	if got := channelField(frame, chGreen); got != "0c" {
		t.Errorf("green = %q, want \"0c\"", got)
	}
	if got := channelField(frame, chBlue); got != "ff" {
		t.Errorf("blue = %q, want \"ff\"", got)
	}
}

func TestEncoder_TurnOffLED(t *testing.T) {
	e := NewEncoder()
	e.SetLEDColor(10, 20, 30)
	if _, err := e.SetMotorPower(PortB, 50); err != nil {
		t.Fatalf("SetMotorPower failed: %v", err)
	}

	frame := e.TurnOffLED()
	for _, ch := range []int{chRed, chGreen, chBlue} {
		if got := channelField(frame, ch); got != "00" {
			t.Errorf("channel %d = %q, want \"00\"", ch, got)
		}
	}
	if got := channelField(frame, chB); got != "b2" {
		t.Errorf("motor B = %q, want \"b2\" (untouched)", got)
	}
}

func TestEncoder_SetMotorPower(t *testing.T) {
	tests := []struct {
		power float64
		want  string
	}{
		{0, "80"},
		{100, "e4"},
		{-100, "1c"},
		{1, "81"},
		{-1, "7f"},
		{50, "b2"},
		{-2.5, "7e"}, // half rounds toward +inf
		{2.5, "83"},
		{150, "e4"},  // clamped
		{-250, "1c"}, // clamped
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("power_%v", tt.power), func(t *testing.T) {
			e := NewEncoder()
			frame, err := e.SetMotorPower(PortA, tt.power)
			if err != nil {
				t.Fatalf("SetMotorPower failed: %v", err)
			}
			if got := channelField(frame, chA); got != tt.want {
				t.Errorf("motor A = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncoder_SetMotorPower_AllIntegers(t *testing.T) {
	e := NewEncoder()
	for power := -100; power <= 100; power++ {
		frame, err := e.SetMotorPower(PortD, float64(power))
		if err != nil {
			t.Fatalf("SetMotorPower(%d) failed: %v", power, err)
		}
		want := fmt.Sprintf("%02x", power+128)
		if got := channelField(frame, chD); got != want {
			t.Errorf("SetMotorPower(%d): motor D = %q, want %q", power, got, want)
		}
	}
}

func TestEncoder_SetMotorPower_Ports(t *testing.T) {
	channels := map[Port]int{PortA: chA, PortB: chB, PortC: chC, PortD: chD}

	for port, ch := range channels {
		t.Run(port.String(), func(t *testing.T) {
			e := NewEncoder()
			frame, err := e.SetMotorPower(port, 100)
			if err != nil {
				t.Fatalf("SetMotorPower failed: %v", err)
			}
			for other := chA; other <= chD; other++ {
				want := "00"
				if other == ch {
					want = "e4"
				}
				if got := channelField(frame, other); got != want {
					t.Errorf("channel %d = %q, want %q", other, got, want)
				}
			}
		})
	}
}

func TestEncoder_InvalidPort(t *testing.T) {
	e := NewEncoder()
	before := e.Frame()

	for _, port := range []Port{-1, 4, 100} {
		if _, err := e.SetMotorPower(port, 10); err == nil {
			t.Errorf("SetMotorPower(%d) should fail", port)
		}
		if _, err := e.SetServoDegree(port, 10); err == nil {
			t.Errorf("SetServoDegree(%d) should fail", port)
		}
	}

	if e.Frame() != before {
		t.Errorf("state changed after invalid port: %q", e.Frame())
	}
}

func TestEncoder_SetServoDegree(t *testing.T) {
	e := NewEncoder()
	for degree := 0; degree <= 180; degree++ {
		frame, err := e.SetServoDegree(PortC, float64(degree))
		if err != nil {
			t.Fatalf("SetServoDegree(%d) failed: %v", degree, err)
		}
		want := fmt.Sprintf("%02x", degree)
		if got := channelField(frame, chC); got != want {
			t.Errorf("SetServoDegree(%d): servo C = %q, want %q", degree, got, want)
		}
	}

	frame, _ := e.SetServoDegree(PortC, 180)
	if got := channelField(frame, chC); got != "b4" {
		t.Errorf("servo C at 180 = %q, want \"b4\"", got)
	}
	frame, _ = e.SetServoDegree(PortC, 270)
	if got := channelField(frame, chC); got != "b4" {
		t.Errorf("servo C at 270 = %q, want \"b4\" (clamped)", got)
	}
}

func TestEncoder_TurnOffMotor_DiffersFromZeroPower(t *testing.T) {
	e := NewEncoder()
	for p := PortA; p <= PortD; p++ {
		frame, err := e.SetMotorPower(p, 0)
		if err != nil {
			t.Fatalf("SetMotorPower failed: %v", err)
		}
		if got := channelField(frame, chA+int(p)); got != "80" {
			t.Errorf("port %s at power 0 = %q, want \"80\"", p, got)
		}
	}

	e.SetLEDColor(1, 2, 3)
	frame := e.TurnOffMotor()
	for ch := chA; ch <= chD; ch++ {
		if got := channelField(frame, ch); got != "00" {
			t.Errorf("channel %d after TurnOffMotor = %q, want \"00\"", ch, got)
		}
	}
	if got := channelField(frame, chRed); got != "01" {
		t.Errorf("red after TurnOffMotor = %q, want \"01\" (untouched)", got)
	}
}

func TestEncoder_StopAll_Idempotent(t *testing.T) {
	e := NewEncoder()
	e.SetLEDColor(255, 255, 255)
	e.SetMotorPower(PortA, 100)
	e.SetServoDegree(PortB, 90)

	first := e.StopAll()
	second := e.StopAll()

	if first != second {
		t.Errorf("StopAll not idempotent: %q != %q", first, second)
	}
	want := "FFFF" + strings.Repeat("0000", 8) + "FEFE"
	if first != want {
		t.Errorf("StopAll() = %q, want %q", first, want)
	}
	if e.State() != (CommandState{}) {
		t.Errorf("State() after StopAll = %+v, want zero", e.State())
	}
}

func TestEncoder_FrameAlwaysFixed(t *testing.T) {
	e := NewEncoder()
	frames := []string{
		e.SetLEDColor(-5, 300, 128),
		e.TurnOffLED(),
		e.TurnOffMotor(),
		e.StopAll(),
	}
	f, _ := e.SetMotorPower(PortA, -100)
	frames = append(frames, f)
	f, _ = e.SetServoDegree(PortD, 180)
	frames = append(frames, f)

	for _, frame := range frames {
		if len(frame) != CommandFrameLen {
			t.Errorf("len(%q) = %d, want %d", frame, len(frame), CommandFrameLen)
		}
		if !strings.EqualFold(frame[:4], "ffff") {
			t.Errorf("header of %q = %q, want ffff", frame, frame[:4])
		}
		if !strings.EqualFold(frame[36:], "fefe") {
			t.Errorf("footer of %q = %q, want fefe", frame, frame[36:])
		}
	}
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		index   float64
		want    Port
		wantErr bool
	}{
		{0, PortA, false},
		{1, PortB, false},
		{2, PortC, false},
		{3, PortD, false},
		{4, 0, true},
		{-1, 0, true},
		{1.5, 0, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.index), func(t *testing.T) {
			p, err := ParsePort(tt.index)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePort(%v) error = %v, wantErr %v", tt.index, err, tt.wantErr)
			}
			if !tt.wantErr && p != tt.want {
				t.Errorf("ParsePort(%v) = %v, want %v", tt.index, p, tt.want)
			}
		})
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
