// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitbrick

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// CommandState holds one byte per output channel of the board
type CommandState struct {
	Buzzer uint8
	A      uint8
	B      uint8
	C      uint8
	D      uint8
	Red    uint8
	Green  uint8
	Blue   uint8
}

// Actuator returns the channel byte for port p
func (s *CommandState) Actuator(p Port) (uint8, error) {
	ch, err := s.actuator(p)
	if err != nil {
		return 0, err
	}
	return *ch, nil
}

func (s *CommandState) actuator(p Port) (*uint8, error) {
	switch p {
	case PortA:
		return &s.A, nil
	case PortB:
		return &s.B, nil
	case PortC:
		return &s.C, nil
	case PortD:
		return &s.D, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidPort, int(p))
}

// channels returns the channel bytes in wire order
func (s CommandState) channels() [ChannelCount]uint8 {
	return [ChannelCount]uint8{s.Buzzer, s.A, s.B, s.C, s.D, s.Red, s.Green, s.Blue}
}

// Frame serializes the state into a 40-character command frame:
//
//	FFFF 00<buzzer> 00<A> 00<B> 00<C> 00<D> 00<red> 00<green> 00<blue> FEFE
func (s CommandState) Frame() string {
	raw := make([]byte, 0, ChannelCount*2)
	for _, v := range s.channels() {
		raw = append(raw, 0x00, v)
	}

	var b strings.Builder
	b.Grow(CommandFrameLen)
	b.WriteString(FrameHeader)
	b.WriteString(hex.EncodeToString(raw))
	b.WriteString(FrameFooter)
	return b.String()
}

// ParseCommandFrame parses a command frame back into its channel state.
// Sentinels and hex digits are matched case-insensitively.
func ParseCommandFrame(frame string) (CommandState, error) {
	if len(frame) != CommandFrameLen {
		return CommandState{}, fmt.Errorf("command frame length %d (expected %d)", len(frame), CommandFrameLen)
	}
	if !strings.EqualFold(frame[:len(FrameHeader)], FrameHeader) {
		return CommandState{}, fmt.Errorf("command frame header %q (expected %s)", frame[:len(FrameHeader)], FrameHeader)
	}
	if !strings.EqualFold(frame[CommandFrameLen-len(FrameFooter):], FrameFooter) {
		return CommandState{}, fmt.Errorf("command frame footer %q (expected %s)", frame[CommandFrameLen-len(FrameFooter):], FrameFooter)
	}

	var values [ChannelCount]uint8
	for i := range values {
		offset := len(FrameHeader) + i*ChannelWidth
		field := frame[offset : offset+ChannelWidth]
		if field[:2] != channelPad {
			return CommandState{}, fmt.Errorf("channel %d at offset %d: pad %q (expected %s)", i, offset, field[:2], channelPad)
		}
		b, err := hex.DecodeString(field[2:])
		if err != nil {
			return CommandState{}, fmt.Errorf("channel %d at offset %d: %w", i, offset, err)
		}
		values[i] = b[0]
	}

	return CommandState{
		Buzzer: values[0],
		A:      values[1],
		B:      values[2],
		C:      values[3],
		D:      values[4],
		Red:    values[5],
		Green:  values[6],
		Blue:   values[7],
	}, nil
}
