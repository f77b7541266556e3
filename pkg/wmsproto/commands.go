// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wmsproto

import (
	"fmt"
	"strings"
)

// Host commands understood by the simulator. Every command carries its own
// terminating whitespace.
const (
	CmdNoEcho = "noecho "
	CmdListen = "listen "
	CmdReset  = "reset "
	CmdHalt   = "halt "

	CmdReadAHB1ENR = "M40023830? "
	CmdReadModer   = "D0? "
	CmdReadIDR     = "D4? "
	CmdReadStatus  = "U0? "
)

// StartupCommands returns the commands sent once after connecting: disable
// command echo and subscribe to pin change notifications.
func StartupCommands() []string {
	return []string{CmdNoEcho, CmdListen}
}

// ResyncCommands returns the register reads that rebuild the board view.
func ResyncCommands() []string {
	return []string{CmdReadModer, CmdReadIDR}
}

// PinSetCommand returns the command that drives GPIOD input pin high ("D0L3 ").
func PinSetCommand(pin int) string {
	return fmt.Sprintf("D0L%x ", pin)
}

// PinClearCommand returns the command that drives GPIOD input pin low ("D0d3 ").
func PinClearCommand(pin int) string {
	return fmt.Sprintf("D0d%x ", pin)
}

// Terminate makes sure a raw command ends with whitespace.
func Terminate(cmd string) string {
	if cmd == "" {
		return cmd
	}
	if strings.TrimRight(cmd, " \t\r\n") == cmd {
		return cmd + " "
	}
	return cmd
}
