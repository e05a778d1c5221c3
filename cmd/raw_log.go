// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display s3g frames as they arrive.

Each frame is shown with timestamp, command name, and decoded payload fields.
Length and CRC errors are reported inline.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("s3gctl - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	return pumpFrames(ctx, conn, printFrameEvent)
}

func printFrameEvent(ev frameEvent) {
	if ev.skipped > 0 {
		fmt.Printf("(skipped %d bytes)\n", ev.skipped)
	}
	if ev.err != nil {
		fmt.Printf("[ERROR] %v\n", ev.err)
		return
	}
	fmt.Print(s3g.FormatFrame(ev.timestamp, ev.payload))
}
