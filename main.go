// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// bitbrick - bitBrick Toy Controller Toolkit
//
// A CLI tool for driving bitBrick boards through their block surface and
// monitoring their sensor frames in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/bitbrick/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
