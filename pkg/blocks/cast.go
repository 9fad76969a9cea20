// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package blocks

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// decimalPattern matches the decimal literals a block host accepts in a
// number slot. strconv.ParseFloat is more permissive (inf, nan, underscores,
// hex floats), so input is checked against this first.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ToNumber casts a block argument to a number. Anything that is not a
// number, a numeric string or a boolean becomes 0, as does NaN.
func ToNumber(v any) float64 {
	var n float64
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int8:
		n = float64(x)
	case int16:
		n = float64(x)
	case int32:
		n = float64(x)
	case int64:
		n = float64(x)
	case uint:
		n = float64(x)
	case uint8:
		n = float64(x)
	case uint16:
		n = float64(x)
	case uint32:
		n = float64(x)
	case uint64:
		n = float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case json.Number:
		n = parseNumber(string(x))
	case string:
		n = parseNumber(x)
	default:
		return 0
	}

	if math.IsNaN(n) {
		return 0
	}
	return n
}

// parseNumber converts a string the way a number slot does. Empty or
// whitespace-only strings are 0.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}

	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			return parseRadix(s[2:], 16)
		case 'o', 'O':
			return parseRadix(s[2:], 8)
		case 'b', 'B':
			return parseRadix(s[2:], 2)
		}
	}

	if !decimalPattern.MatchString(s) {
		return 0
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out of range: ParseFloat already returned ±Inf or 0
		if errors.Is(err, strconv.ErrRange) {
			return n
		}
		return 0
	}
	return n
}

// parseRadix accumulates digits in a float so that literals wider than 64
// bits still produce a value
func parseRadix(digits string, base int) float64 {
	var n float64
	for _, c := range digits {
		d, err := strconv.ParseUint(string(c), base, 8)
		if err != nil {
			return 0
		}
		n = n*float64(base) + float64(d)
	}
	return n
}

// Clamp limits n to [lo, hi]
func Clamp(n, lo, hi float64) float64 {
	return math.Min(math.Max(n, lo), hi)
}
