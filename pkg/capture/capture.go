// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records BitBrick frames to a CBOR sequence file and
// replays them as a transport.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
)

// Direction tells which way a frame travelled
type Direction uint8

const (
	// Command is a frame sent to the board
	Command Direction = 1
	// Sensor is a frame reported by the board
	Sensor Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Command:
		return "command"
	case Sensor:
		return "sensor"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// Record is one captured frame, encoded as the CBOR array
// [unix_nanos, direction, frame, error]
type Record struct {
	_         struct{} `cbor:",toarray"`
	Time      int64
	Direction Direction
	Frame     string
	Error     string
}

// Timestamp returns the record time
func (r Record) Timestamp() time.Time {
	return time.Unix(0, r.Time)
}

// ErrNoSensorFrames is returned when a capture holds nothing to replay
var ErrNoSensorFrames = errors.New("capture contains no sensor frames")

// Recorder appends every frame a device sends or receives to a capture. It
// implements bitbrick.Observer.
type Recorder struct {
	mu    sync.Mutex
	w     io.WriteCloser
	enc   *cbor.Encoder
	err   error
	count int
	now   func() time.Time
}

// NewRecorder writes records to w
func NewRecorder(w io.WriteCloser) *Recorder {
	return &Recorder{w: w, enc: cbor.NewEncoder(w), now: time.Now}
}

// Create opens path for writing, truncating it
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture %s: %w", path, err)
	}
	return NewRecorder(f), nil
}

// CommandSent implements bitbrick.Observer
func (r *Recorder) CommandSent(frame string, err error) {
	r.write(Command, frame, err)
}

// SensorDecoded implements bitbrick.Observer. Reads that produced no frame
// are not recorded.
func (r *Recorder) SensorDecoded(frame string, values bitbrick.SensorValues, err error) {
	if frame == "" {
		return
	}
	r.write(Sensor, frame, err)
}

func (r *Recorder) write(dir Direction, frame string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}

	rec := Record{Time: r.now().UnixNano(), Direction: dir, Frame: frame}
	if err != nil {
		rec.Error = err.Error()
	}
	if err := r.enc.Encode(rec); err != nil {
		r.err = err
		return
	}
	r.count++
}

// Count returns the number of records written
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Err returns the first write error, after which recording stops
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close closes the underlying writer
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Close()
}

// ReadAll decodes every record in a capture stream
func ReadAll(rd io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(rd)

	var records []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}

// ReadFile decodes every record in the capture at path
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAll(f)
}
