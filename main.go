// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// wmsctl - WMS Simulator Client
//
// A CLI tool for driving the QEMU washing machine simulator over its text
// diagnostic protocol and keeping a live model of the board.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Thermoquad/wmsctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
