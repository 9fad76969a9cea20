// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package blocks

import (
	_ "embed"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
)

// Extension identity
const (
	ExtensionID   = "bitbrick"
	ExtensionName = "bitBrick"
)

// Block opcodes
const (
	OpGetSensorValue = "getSensorValue"
	OpTurnOffLED     = "turnOffLED"
	OpSetLEDColor    = "setLEDColor"
	OpTurnOffMotor   = "turnOffMotor"
	OpMotorSetPower  = "motorSetPower"
	OpServoSetDegree = "servoSetDegree"
)

// Argument names
const (
	ArgPort   = "PORT"
	ArgRed    = "RED"
	ArgGreen  = "GREEN"
	ArgBlue   = "BLUE"
	ArgPower  = "POWER"
	ArgDegree = "DEGREE"
)

// Menu names
const (
	MenuMotorPorts  = "motorPorts"
	MenuSensorPorts = "sensorPorts"
)

// BlockType tells the host how to render a block
type BlockType string

const (
	BlockTypeCommand  BlockType = "command"
	BlockTypeReporter BlockType = "reporter"
)

// ArgumentType is the slot type of a block argument
type ArgumentType string

const (
	ArgumentTypeNumber ArgumentType = "number"
	ArgumentTypeString ArgumentType = "string"
)

//go:embed icon.png
var blockIcon []byte

// BlockIconURI is the block icon as a data URI
var BlockIconURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString(blockIcon)

// ExtensionInfo is the metadata a host needs to render the extension
type ExtensionInfo struct {
	ID           string                `json:"id" yaml:"id"`
	Name         string                `json:"name" yaml:"name"`
	BlockIconURI string                `json:"blockIconURI,omitempty" yaml:"blockIconURI,omitempty"`
	Blocks       []BlockInfo           `json:"blocks" yaml:"blocks"`
	Menus        map[string][]MenuItem `json:"menus" yaml:"menus"`
}

// BlockInfo describes one block
type BlockInfo struct {
	Opcode      string                  `json:"opcode" yaml:"opcode"`
	Text        string                  `json:"text" yaml:"text"`
	Description string                  `json:"description,omitempty" yaml:"description,omitempty"`
	BlockType   BlockType               `json:"blockType" yaml:"blockType"`
	Arguments   map[string]ArgumentInfo `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// ArgumentInfo describes one argument slot
type ArgumentInfo struct {
	Type         ArgumentType `json:"type" yaml:"type"`
	Menu         string       `json:"menu,omitempty" yaml:"menu,omitempty"`
	DefaultValue any          `json:"defaultValue" yaml:"defaultValue"`
}

// MenuItem is one entry of a drop-down menu. Value is the item's index.
type MenuItem struct {
	Text  string `json:"text" yaml:"text"`
	Value string `json:"value" yaml:"value"`
}

// GetInfo returns the extension metadata: six blocks and the two port menus
func (e *Extension) GetInfo() ExtensionInfo {
	return Info()
}

// Info returns the extension metadata without needing a device
func Info() ExtensionInfo {
	return ExtensionInfo{
		ID:           ExtensionID,
		Name:         ExtensionName,
		BlockIconURI: BlockIconURI,
		Blocks: []BlockInfo{
			{
				Opcode:      OpGetSensorValue,
				Text:        "sensor [PORT]",
				Description: "get value from port",
				BlockType:   BlockTypeReporter,
				Arguments: map[string]ArgumentInfo{
					ArgPort: {Type: ArgumentTypeString, Menu: MenuSensorPorts, DefaultValue: 0},
				},
			},
			{
				Opcode:      OpTurnOffLED,
				Text:        "turn off LED",
				Description: "turn off LED",
				BlockType:   BlockTypeCommand,
			},
			{
				Opcode:      OpSetLEDColor,
				Text:        "LED R [RED] G [GREEN] B [BLUE]",
				Description: "set LED color",
				BlockType:   BlockTypeCommand,
				Arguments: map[string]ArgumentInfo{
					ArgRed:   {Type: ArgumentTypeNumber, DefaultValue: 255},
					ArgGreen: {Type: ArgumentTypeNumber, DefaultValue: 255},
					ArgBlue:  {Type: ArgumentTypeNumber, DefaultValue: 255},
				},
			},
			{
				Opcode:      OpTurnOffMotor,
				Text:        "turn off Motor",
				Description: "turn off Motor",
				BlockType:   BlockTypeCommand,
			},
			{
				Opcode:      OpMotorSetPower,
				Text:        "motor [PORT] set power [POWER] %",
				Description: "set a motor's power to some value",
				BlockType:   BlockTypeCommand,
				Arguments: map[string]ArgumentInfo{
					ArgPort:  {Type: ArgumentTypeString, Menu: MenuMotorPorts, DefaultValue: 0},
					ArgPower: {Type: ArgumentTypeNumber, DefaultValue: 100},
				},
			},
			{
				Opcode:      OpServoSetDegree,
				Text:        "servo [PORT] set degree [DEGREE]",
				Description: "set a servo's degree to some value",
				BlockType:   BlockTypeCommand,
				Arguments: map[string]ArgumentInfo{
					ArgPort:   {Type: ArgumentTypeString, Menu: MenuMotorPorts, DefaultValue: 0},
					ArgDegree: {Type: ArgumentTypeNumber, DefaultValue: 0},
				},
			},
		},
		Menus: map[string][]MenuItem{
			MenuMotorPorts:  formatMenu(bitbrick.MotorPorts[:]),
			MenuSensorPorts: formatMenu(bitbrick.SensorPorts[:]),
		},
	}
}

// formatMenu turns a list of labels into menu items whose values are the
// label indices
func formatMenu(labels []string) []MenuItem {
	items := make([]MenuItem, len(labels))
	for i, label := range labels {
		items[i] = MenuItem{Text: label, Value: strconv.Itoa(i)}
	}
	return items
}

// ArgumentNames returns the block's argument names in the order their
// [NAME] placeholders appear in the text
func (b BlockInfo) ArgumentNames() []string {
	var names []string
	text := b.Text
	for {
		start := strings.IndexByte(text, '[')
		if start < 0 {
			return names
		}
		end := strings.IndexByte(text[start:], ']')
		if end < 0 {
			return names
		}
		name := text[start+1 : start+end]
		if _, ok := b.Arguments[name]; ok {
			names = append(names, name)
		}
		text = text[start+end+1:]
	}
}

// Block looks up a block by opcode
func (info ExtensionInfo) Block(opcode string) (BlockInfo, bool) {
	for _, b := range info.Blocks {
		if b.Opcode == opcode {
			return b, true
		}
	}
	return BlockInfo{}, false
}

// ResolveArgs builds invocation arguments from user-typed strings. Missing
// arguments take their default value, and a menu argument may be given by
// item text ("B") as well as by value ("1"). Names not taken by the block
// are rejected.
func (info ExtensionInfo) ResolveArgs(opcode string, raw map[string]string) (Args, error) {
	block, ok := info.Block(opcode)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOpcode, opcode)
	}

	for name := range raw {
		if _, ok := block.Arguments[name]; !ok {
			return nil, fmt.Errorf("%w: %s takes no argument %q", ErrUnknownArgument, opcode, name)
		}
	}

	args := make(Args, len(block.Arguments))
	for name, arg := range block.Arguments {
		value, ok := raw[name]
		if !ok {
			args[name] = arg.DefaultValue
			continue
		}
		for _, item := range info.Menus[arg.Menu] {
			if strings.EqualFold(item.Text, value) {
				value = item.Value
				break
			}
		}
		args[name] = value
	}
	return args, nil
}
