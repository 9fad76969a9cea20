// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitbrick

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

// fakeTransport records sent frames and serves queued sensor frames
type fakeTransport struct {
	mu          sync.Mutex
	sent        []string
	sensorFrame string
	sendErr     error
	readErr     error
	reads       int
}

func (f *fakeTransport) SendCommand(frame string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeTransport) GetSensorValues() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.sensorFrame, nil
}

func (f *fakeTransport) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

// recordingObserver captures observer callbacks
type recordingObserver struct {
	commands []string
	decoded  []SensorValues
	errs     []error
}

func (r *recordingObserver) CommandSent(frame string, err error) {
	r.commands = append(r.commands, frame)
	if err != nil {
		r.errs = append(r.errs, err)
	}
}

func (r *recordingObserver) SensorDecoded(frame string, values SensorValues, err error) {
	if err != nil {
		r.errs = append(r.errs, err)
		return
	}
	r.decoded = append(r.decoded, values)
}

func TestNewDevice_NoFrameUntilFirstCommand(t *testing.T) {
	tr := &fakeTransport{}
	d := NewDevice(tr)

	if len(tr.sent) != 0 {
		t.Errorf("NewDevice sent %d frames, want 0", len(tr.sent))
	}
	if d.LastFrame() != "" {
		t.Errorf("LastFrame() = %q, want empty", d.LastFrame())
	}
	if d.State() != (CommandState{}) {
		t.Errorf("State() = %+v, want zero", d.State())
	}
}

func TestDevice_EveryOperationSendsFullFrame(t *testing.T) {
	tr := &fakeTransport{}
	d := NewDevice(tr)

	ops := []struct {
		name string
		run  func() error
		want string
	}{
		{"SetLEDColor", func() error { return d.SetLEDColor(255, 0, 300) }, "FFFF00000000000000000000" + "00ff000000ff" + "FEFE"},
		{"SetMotorPower", func() error { return d.SetMotorPower(PortA, 0) }, "FFFF0000008000000000000000ff000000ffFEFE"},
		{"SetServoDegree", func() error { return d.SetServoDegree(PortD, 180) }, "FFFF000000800000000000b400ff000000ffFEFE"},
		{"TurnOffLED", func() error { return d.TurnOffLED() }, "FFFF000000800000000000b4000000000000FEFE"},
		{"TurnOffMotor", func() error { return d.TurnOffMotor() }, "FFFF" + strings.Repeat("0000", 8) + "FEFE"},
		{"StopAll", func() error { return d.StopAll() }, "FFFF" + strings.Repeat("0000", 8) + "FEFE"},
	}

	for i, op := range ops {
		if err := op.run(); err != nil {
			t.Fatalf("%s failed: %v", op.name, err)
		}
		if len(tr.sent) != i+1 {
			t.Fatalf("%s: %d frames sent, want %d", op.name, len(tr.sent), i+1)
		}
		got := tr.last()
		if len(got) != CommandFrameLen {
			t.Errorf("%s: frame length %d, want %d", op.name, len(got), CommandFrameLen)
		}
		if got != op.want {
			t.Errorf("%s: frame = %q, want %q", op.name, got, op.want)
		}
		if d.LastFrame() != got {
			t.Errorf("%s: LastFrame() = %q, want %q", op.name, d.LastFrame(), got)
		}
	}
}

func TestDevice_SendErrorReturnedUntouched(t *testing.T) {
	sendErr := errors.New("link down")
	tr := &fakeTransport{sendErr: sendErr}
	obs := &recordingObserver{}
	d := NewDevice(tr, WithObserver(obs))

	err := d.SetLEDColor(1, 2, 3)
	if err != sendErr {
		t.Errorf("SetLEDColor error = %v, want the transport error itself", err)
	}
	if len(obs.errs) != 1 || obs.errs[0] != sendErr {
		t.Errorf("observer errors = %v, want [%v]", obs.errs, sendErr)
	}
	// State still reflects the command
	if s := d.State(); s.Red != 1 || s.Green != 2 || s.Blue != 3 {
		t.Errorf("State() = %+v, want RGB 1,2,3", s)
	}
}

func TestDevice_InvalidPortSendsNothing(t *testing.T) {
	tr := &fakeTransport{}
	d := NewDevice(tr)

	if err := d.SetMotorPower(Port(4), 50); !errors.Is(err, ErrInvalidPort) {
		t.Errorf("SetMotorPower(4) error = %v, want ErrInvalidPort", err)
	}
	if err := d.SetServoDegree(Port(-1), 50); !errors.Is(err, ErrInvalidPort) {
		t.Errorf("SetServoDegree(-1) error = %v, want ErrInvalidPort", err)
	}
	if len(tr.sent) != 0 {
		t.Errorf("%d frames sent, want 0", len(tr.sent))
	}
}

func TestDevice_SensorValue_AlwaysRereads(t *testing.T) {
	tr := &fakeTransport{sensorFrame: "FFFF03FF000000010200"}
	d := NewDevice(tr)

	want := []uint16{1023, 0, 1, 512}
	for i, w := range want {
		v, err := d.SensorValue(i)
		if err != nil {
			t.Fatalf("SensorValue(%d) failed: %v", i, err)
		}
		if v != w {
			t.Errorf("SensorValue(%d) = %d, want %d", i, v, w)
		}
	}
	if tr.reads != len(want) {
		t.Errorf("transport reads = %d, want %d (one per call)", tr.reads, len(want))
	}
	if d.Sensors() != (SensorValues{1023, 0, 1, 512}) {
		t.Errorf("Sensors() = %v", d.Sensors())
	}
}

func TestDevice_SensorValue_IndexOutOfRange(t *testing.T) {
	tr := &fakeTransport{sensorFrame: "FFFF0000000000000000"}
	d := NewDevice(tr)

	for _, i := range []int{-1, 4} {
		if _, err := d.SensorValue(i); err == nil {
			t.Errorf("SensorValue(%d) should fail", i)
		}
	}
	if tr.reads != 0 {
		t.Errorf("transport reads = %d, want 0", tr.reads)
	}
}

func TestDevice_ReadSensors_DecodeErrorKeepsPrevious(t *testing.T) {
	tr := &fakeTransport{sensorFrame: "FFFF0001000200030004"}
	obs := &recordingObserver{}
	d := NewDevice(tr, WithObserver(obs))

	if _, err := d.ReadSensors(); err != nil {
		t.Fatalf("ReadSensors failed: %v", err)
	}

	tr.sensorFrame = "FFFF00"
	values, err := d.ReadSensors()
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("ReadSensors error = %v, want *DecodeError", err)
	}
	if values != (SensorValues{1, 2, 3, 4}) {
		t.Errorf("values after failed decode = %v, want previous [1 2 3 4]", values)
	}
	if d.Sensors() != (SensorValues{1, 2, 3, 4}) {
		t.Errorf("Sensors() after failed decode = %v, want previous", d.Sensors())
	}
	if len(obs.decoded) != 1 || len(obs.errs) != 1 {
		t.Errorf("observer saw %d decodes and %d errors, want 1 and 1", len(obs.decoded), len(obs.errs))
	}
}

func TestDevice_ReadSensors_TransportErrorUntouched(t *testing.T) {
	readErr := errors.New("no response")
	tr := &fakeTransport{readErr: readErr}
	d := NewDevice(tr)

	_, err := d.ReadSensors()
	if err != readErr {
		t.Errorf("ReadSensors error = %v, want the transport error itself", err)
	}
}

func TestDevice_ConcurrentCallsSerialized(t *testing.T) {
	tr := &fakeTransport{sensorFrame: "FFFF0001000200030004"}
	d := NewDevice(tr)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			d.SetMotorPower(Port(i%4), float64(i))
		}(i)
		go func() {
			defer wg.Done()
			d.ReadSensors()
		}()
	}
	wg.Wait()

	if len(tr.sent) != 50 {
		t.Errorf("frames sent = %d, want 50", len(tr.sent))
	}
	for _, f := range tr.sent {
		if _, err := ParseCommandFrame(f); err != nil {
			t.Errorf("malformed frame %q: %v", f, err)
		}
	}
}
