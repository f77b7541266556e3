// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/wmsctl/pkg/engine"
	"github.com/Thermoquad/wmsctl/pkg/wmsproto"
	"github.com/spf13/cobra"
)

var (
	statsInterval     int
	recordFile        string
	monitorPollStatus bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print simulator events as they arrive",
	Long: `Poll the simulator like the panel does and print every classified event
with a timestamp: pin changes, register snapshots, peripheral enable changes
and protocol warnings.

Statistics are printed at a configurable interval. With --record the event
stream is also written to a capture file that the replay command can read.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds, 0 disables)")
	monitorCmd.Flags().StringVar(&recordFile, "record", "", "Write events to a capture file")
	monitorCmd.Flags().BoolVar(&monitorPollStatus, "poll-status", false, "Also poll the USART3 status register")
}

func runMonitor(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	eng, err := startEngine(ctx, t, engineConfig(&logger, monitorPollStatus))
	if err != nil {
		return err
	}
	defer eng.Close()

	var capture *wmsproto.CaptureWriter
	if recordFile != "" {
		f, err := os.Create(recordFile)
		if err != nil {
			return fmt.Errorf("failed to create capture file: %w", err)
		}
		defer f.Close()
		capture = wmsproto.NewCaptureWriter(f)
	}

	fmt.Printf("wmsctl - Event Monitor\n")
	fmt.Printf("Connection: %s\n", t)
	if statsInterval > 0 {
		fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	}
	if capture != nil {
		fmt.Printf("Recording: %s\n", recordFile)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := wmsproto.NewStatistics()
	err = monitorLoop(ctx, eng, stats, capture)

	fmt.Println()
	fmt.Print(stats.String())
	return err
}

// monitorLoop ticks the engine until ctx ends or the connection is lost
func monitorLoop(ctx context.Context, eng *engine.Engine, stats *wmsproto.Statistics, capture *wmsproto.CaptureWriter) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var statsC <-chan time.Time
	if statsInterval > 0 {
		statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			events, _ := eng.Tick()
			if err := printEvents(events, stats, capture); err != nil {
				return err
			}
			if !eng.Connected() {
				// Pick up the warning the receiver left behind
				for eng.Pending() > 0 {
					events, _ := eng.DrainEvents()
					if err := printEvents(events, stats, capture); err != nil {
						return err
					}
				}
				fmt.Println("Connection lost")
				return nil
			}

		case <-statsC:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

func printEvents(events []wmsproto.Event, stats *wmsproto.Statistics, capture *wmsproto.CaptureWriter) error {
	for _, ev := range events {
		now := time.Now()
		stats.Update(ev)
		fmt.Println(wmsproto.FormatTimestamped(now, ev))
		if capture != nil {
			if err := capture.Write(now, ev); err != nil {
				return fmt.Errorf("failed to record event: %w", err)
			}
		}
	}
	return nil
}
