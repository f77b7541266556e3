// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/wmsctl/pkg/board"
	"github.com/Thermoquad/wmsctl/pkg/wmsproto"
	"github.com/spf13/cobra"
)

var replayVerbose bool

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Rebuild the board state from a capture file",
	Long: `Feed a capture written by 'monitor --record' into a fresh board model and
print the final state. No connection is made; commands the board would send
while replaying are dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVarP(&replayVerbose, "verbose", "v", false, "Print every event")
}

func runReplay(cmd *cobra.Command, args []string) error {
	logger, closer, err := newLogger(false)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	m, err := board.NewMachine(board.DefaultButtons(), nil, &logger)
	if err != nil {
		return err
	}

	stats := wmsproto.NewStatistics()
	n, err := replayCapture(f, m, func(r wmsproto.Record) {
		stats.Update(r.Event)
		if replayVerbose {
			fmt.Println(wmsproto.FormatTimestamped(r.Timestamp(), r.Event))
		}
	})
	if err != nil {
		return err
	}

	fmt.Printf("Replayed %d events from %s\n\n", n, args[0])
	fmt.Print(formatState(m.State()))
	fmt.Println()
	fmt.Print(stats.String())
	return nil
}

// replayCapture applies every record in r to m and returns the count
func replayCapture(r io.Reader, m *board.Machine, each func(wmsproto.Record)) (int, error) {
	reader := wmsproto.NewCaptureReader(r)
	n := 0
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("record %d: %w", n+1, err)
		}
		if each != nil {
			each(rec)
		}
		m.Apply(rec.Event)
		n++
	}
}
