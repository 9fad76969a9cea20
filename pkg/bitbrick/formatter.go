// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitbrick

import (
	"fmt"
	"strings"
	"time"
)

// FormatCommandFrame formats an outbound command frame into a human-readable
// string. Frames that do not parse are shown raw with the parse error.
func FormatCommandFrame(t time.Time, frame string) string {
	timestamp := t.Format("15:04:05.000")

	state, err := ParseCommandFrame(frame)
	if err != nil {
		return fmt.Sprintf("[%s] COMMAND %s\n  (unparsed: %v)\n", timestamp, frame, err)
	}

	return fmt.Sprintf("[%s] COMMAND %s\n%s", timestamp, frame, FormatCommandState(state))
}

// FormatCommandState formats each channel of the output state
func FormatCommandState(s CommandState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "  Buzzer: 0x%02X\n", s.Buzzer)
	for p := PortA; p <= PortD; p++ {
		v, _ := s.Actuator(p)
		fmt.Fprintf(&b, "  Port %s: 0x%02X (%s)\n", p, v, formatActuator(v))
	}
	fmt.Fprintf(&b, "  LED: R=%d G=%d B=%d (#%02x%02x%02x)\n", s.Red, s.Green, s.Blue, s.Red, s.Green, s.Blue)

	return b.String()
}

// formatActuator describes an actuator byte as both interpretations: motor
// power relative to the 0x80 center, and servo degrees.
func formatActuator(v uint8) string {
	if v == 0 {
		return "off"
	}
	power := int(v) - MotorPowerBias
	if v > ServoDegreeMax {
		return fmt.Sprintf("power %+d%%", power)
	}
	return fmt.Sprintf("power %+d%% / servo %d°", power, v)
}

// FormatSensorValues formats one decoded sensor frame
func FormatSensorValues(t time.Time, frame string, values SensorValues) string {
	timestamp := t.Format("15:04:05.000")

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] SENSORS %s\n ", timestamp, frame)
	for i, v := range values {
		fmt.Fprintf(&b, " %s=%4d", SensorPorts[i], v)
	}
	b.WriteString("\n")
	return b.String()
}

// FormatSensorBar renders a reading as a fixed-width bar, for dashboards
func FormatSensorBar(v uint16, width int) string {
	if width <= 0 {
		return ""
	}
	if v > SensorMax {
		v = SensorMax
	}
	filled := int(v) * width / SensorMax
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
