// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// s3gctl - s3g Protocol Controller
//
// A CLI tool for driving and monitoring 5-axis positioners that speak the
// s3g serial protocol.

package main

import (
	"os"

	"github.com/Thermoquad/s3gctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
