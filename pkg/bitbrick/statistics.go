// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitbrick

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Counters is a point-in-time copy of the statistics
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	CommandsSent  uint64
	SendErrors    uint64
	SensorFrames  uint64
	ValidFrames   uint64
	DecodeErrors  uint64
	ReadErrors    uint64
	SaturatedRead uint64 // readings at 0 or SensorMax

	// Rates (calculated)
	CommandRate float64 // frames/sec
	SensorRate  float64 // frames/sec
	ErrorRate   float64 // errors/sec
}

// Statistics tracks frame counts and error rates. It implements Observer so
// it can be attached to a Device.
type Statistics struct {
	mu sync.Mutex
	Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		Counters: Counters{
			StartTime:      now,
			LastUpdateTime: now,
		},
	}
}

// CommandSent implements Observer
func (s *Statistics) CommandSent(frame string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.SendErrors++
	} else {
		s.CommandsSent++
	}
	s.LastUpdateTime = time.Now()
}

// SensorDecoded implements Observer
func (s *Statistics) SensorDecoded(frame string, values SensorValues, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastUpdateTime = time.Now()

	var decodeErr *DecodeError
	switch {
	case errors.As(err, &decodeErr):
		s.SensorFrames++
		s.DecodeErrors++
		return
	case err != nil:
		// Transport failure, no frame arrived
		s.ReadErrors++
		return
	}

	s.SensorFrames++
	s.ValidFrames++
	for _, v := range values {
		if v == 0 || v == SensorMax {
			s.SaturatedRead++
		}
	}
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Statistics) calculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.CommandRate = float64(s.CommandsSent) / elapsed
		s.SensorRate = float64(s.SensorFrames) / elapsed
		s.ErrorRate = float64(s.SendErrors+s.DecodeErrors+s.ReadErrors) / elapsed
	}
}

// Snapshot returns a copy of the counters with rates filled in
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
	return s.Counters
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var validPercent, decodeErrorPercent float64
	if snap.SensorFrames > 0 {
		validPercent = float64(snap.ValidFrames) * 100.0 / float64(snap.SensorFrames)
		decodeErrorPercent = float64(snap.DecodeErrors) * 100.0 / float64(snap.SensorFrames)
	}

	elapsed := time.Since(snap.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Commands Sent:   %8d\n", snap.CommandsSent)
	if snap.SendErrors > 0 {
		result += fmt.Sprintf("Send Errors:     %8d\n", snap.SendErrors)
	}
	result += fmt.Sprintf("Sensor Frames:   %8d\n", snap.SensorFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", snap.ValidFrames, validPercent)
	if snap.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", snap.DecodeErrors, decodeErrorPercent)
	}
	if snap.ReadErrors > 0 {
		result += fmt.Sprintf("Read Errors:     %8d\n", snap.ReadErrors)
	}
	if snap.SaturatedRead > 0 {
		result += fmt.Sprintf("Saturated Reads: %8d\n", snap.SaturatedRead)
	}

	result += fmt.Sprintf("Command Rate:    %8.1f frames/sec\n", snap.CommandRate)
	result += fmt.Sprintf("Sensor Rate:     %8.1f frames/sec\n", snap.SensorRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", snap.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.Counters = Counters{
		StartTime:      now,
		LastUpdateTime: now,
	}
}
