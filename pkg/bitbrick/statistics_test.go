// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitbrick

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStatistics_CountsThroughDevice(t *testing.T) {
	tr := &fakeTransport{sensorFrame: "FFFF03FF000000010200"}
	stats := NewStatistics()
	d := NewDevice(tr, WithObserver(stats))

	d.SetLEDColor(1, 2, 3)
	d.StopAll()
	d.ReadSensors()

	tr.sensorFrame = "short"
	d.ReadSensors()

	tr.readErr = errors.New("timeout")
	d.ReadSensors()

	tr.sendErr = errors.New("closed")
	d.TurnOffLED()

	snap := stats.Snapshot()
	if snap.CommandsSent != 2 {
		t.Errorf("CommandsSent = %d, want 2", snap.CommandsSent)
	}
	if snap.SendErrors != 1 {
		t.Errorf("SendErrors = %d, want 1", snap.SendErrors)
	}
	if snap.SensorFrames != 2 {
		t.Errorf("SensorFrames = %d, want 2", snap.SensorFrames)
	}
	if snap.ValidFrames != 1 {
		t.Errorf("ValidFrames = %d, want 1", snap.ValidFrames)
	}
	if snap.DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1", snap.DecodeErrors)
	}
	if snap.ReadErrors != 1 {
		t.Errorf("ReadErrors = %d, want 1", snap.ReadErrors)
	}
	// 1023 and 0 are both saturated
	if snap.SaturatedRead != 2 {
		t.Errorf("SaturatedRead = %d, want 2", snap.SaturatedRead)
	}
}

func TestStatistics_Reset(t *testing.T) {
	stats := NewStatistics()
	stats.CommandSent("x", nil)
	stats.SensorDecoded("y", SensorValues{}, nil)

	stats.Reset()

	snap := stats.Snapshot()
	if snap.CommandsSent != 0 || snap.SensorFrames != 0 || snap.ValidFrames != 0 {
		t.Errorf("counters not reset: %+v", snap)
	}
	if snap.StartTime.IsZero() {
		t.Error("StartTime should be set after Reset")
	}
}

func TestStatistics_String(t *testing.T) {
	stats := NewStatistics()
	stats.CommandSent("x", nil)
	stats.SensorDecoded("y", SensorValues{1, 2, 3, 4}, nil)

	out := stats.String()
	for _, want := range []string{"Commands Sent:", "Sensor Frames:", "Valid Frames:", "(100.0%)"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Decode Errors:") {
		t.Errorf("String() should omit zero decode errors:\n%s", out)
	}
}

func TestFormatCommandFrame(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 6_000_000, time.UTC)

	enc := NewEncoder()
	enc.SetMotorPower(PortA, 50)
	enc.SetServoDegree(PortB, 90)
	frame := enc.SetLEDColor(255, 128, 0)

	out := FormatCommandFrame(ts, frame)
	for _, want := range []string{
		"[03:04:05.006] COMMAND " + frame,
		"Port A: 0xB2 (power +50%",
		"Port B: 0x5A (power -38% / servo 90°)",
		"Port C: 0x00 (off)",
		"LED: R=255 G=128 B=0 (#ff8000)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatCommandFrame missing %q:\n%s", want, out)
		}
	}
}

func TestFormatCommandFrame_Unparsed(t *testing.T) {
	out := FormatCommandFrame(time.Now(), "garbage")
	if !strings.Contains(out, "unparsed") {
		t.Errorf("expected unparsed marker, got:\n%s", out)
	}
}

func TestFormatSensorValues(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	out := FormatSensorValues(ts, "FFFF03FF000000010200", SensorValues{1023, 0, 1, 512})

	want := "[03:04:05.000] SENSORS FFFF03FF000000010200\n  1=1023 2=   0 3=   1 4= 512\n"
	if out != want {
		t.Errorf("FormatSensorValues =\n%q\nwant\n%q", out, want)
	}
}

func TestFormatSensorBar(t *testing.T) {
	tests := []struct {
		v      uint16
		width  int
		filled int
	}{
		{0, 10, 0},
		{SensorMax, 10, 10},
		{2000, 10, 10},
		{512, 10, 5},
		{100, 0, 0},
	}

	for _, tt := range tests {
		bar := FormatSensorBar(tt.v, tt.width)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("FormatSensorBar(%d, %d) filled = %d, want %d", tt.v, tt.width, got, tt.filled)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != tt.width {
			t.Errorf("FormatSensorBar(%d, %d) width = %d", tt.v, tt.width, got)
		}
	}
}
