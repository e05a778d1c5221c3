// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

var (
	packetTestWait time.Duration
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid s3g frame",
	Long: `Wait for a valid s3g frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
frame. It ignores invalid bytes and waits for a complete frame that passes
its CRC check.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().DurationVar(&packetTestWait, "wait", 10*time.Second, "How long to wait for a frame")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("s3gctl - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %s\n", packetTestWait)
	fmt.Printf("Waiting for valid s3g frame...\n\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frameChan := make(chan frameEvent, 1)
	errChan := make(chan error, 1)
	invalid := 0

	// Reader goroutine
	go func() {
		err := pumpFrames(ctx, conn, func(ev frameEvent) {
			invalid += ev.skipped
			if ev.err != nil {
				invalid++
				return
			}
			select {
			case frameChan <- ev:
				cancel()
			default:
			}
		})
		if err != nil {
			errChan <- err
		}
	}()

	select {
	case ev := <-frameChan:
		if invalid > 0 {
			fmt.Printf("(skipped %d invalid bytes before sync)\n", invalid)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		if len(ev.payload) > 0 {
			fmt.Printf("  Command: %s (0x%02X)\n", s3g.FormatCommandName(ev.payload[0]), ev.payload[0])
		}
		fmt.Printf("  Length: %d bytes\n", len(ev.payload))
		fmt.Printf("  CRC: 0x%02X\n", s3g.CalculateCRC(ev.payload))
		conn.Close()
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		conn.Close()
		os.Exit(2)

	case <-time.After(packetTestWait):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %s\n", packetTestWait)
		conn.Close()
		os.Exit(1)
	}

	return nil
}
