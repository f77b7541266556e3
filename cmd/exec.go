// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/wmsctl/pkg/link"
	"github.com/Thermoquad/wmsctl/pkg/wmsproto"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

var (
	execFile string
	execWait int
)

var execCmd = &cobra.Command{
	Use:   "exec [COMMAND...]",
	Short: "Send raw commands to the simulator",
	Long: `Send raw diagnostic commands and print the replies.

Commands come from the arguments or from a script file (--file). Scripts are
split with shell quoting rules; # starts a comment. Each word is sent as one
command with a trailing space added when missing.

Examples:
  # Read the GPIOD input register
  wmsctl exec 'D4?'

  # Press and release PS1
  wmsctl exec D0L1 D0d1

  # Run a script and collect replies for 3 seconds
  wmsctl exec --file wash.txt --wait 3`,
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().StringVarP(&execFile, "file", "f", "", "Read commands from file")
	execCmd.Flags().IntVar(&execWait, "wait", 1, "Seconds to wait for replies")
}

// parseCommands splits a script into terminated commands
func parseCommands(script string) ([]string, error) {
	words, err := shlex.Split(script)
	if err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	commands := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			commands = append(commands, wmsproto.Terminate(w))
		}
	}
	return commands, nil
}

func runExec(cmd *cobra.Command, args []string) error {
	var commands []string
	switch {
	case execFile != "":
		data, err := os.ReadFile(execFile)
		if err != nil {
			return fmt.Errorf("failed to read script: %w", err)
		}
		commands, err = parseCommands(string(data))
		if err != nil {
			return err
		}
	case len(args) > 0:
		for _, a := range args {
			if a = strings.TrimSpace(a); a != "" {
				commands = append(commands, wmsproto.Terminate(a))
			}
		}
	}
	if len(commands) == 0 {
		return fmt.Errorf("no commands given (use arguments or --file)")
	}

	logger, closer, err := newLogger(false)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	t, err := resolveTarget()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), link.DialTimeout)
	eng, err := startEngine(ctx, t, engineConfig(&logger, false))
	cancel()
	if err != nil {
		return err
	}
	defer eng.Close()

	for _, c := range commands {
		if err := eng.IssueCommand(c); err != nil {
			return fmt.Errorf("command %q: %w", c, err)
		}
		logger.Debug().Str("command", c).Msg("queued")
	}

	deadline := time.After(time.Duration(execWait) * time.Second)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return nil
		case <-eng.Done():
			events, _ := eng.DrainEvents()
			for _, ev := range events {
				fmt.Println(wmsproto.FormatTimestamped(time.Now(), ev))
			}
			return fmt.Errorf("connection lost")
		case <-ticker.C:
			events, _ := eng.DrainEvents()
			for _, ev := range events {
				fmt.Println(wmsproto.FormatTimestamped(time.Now(), ev))
			}
		}
	}
}
