// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

var (
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping <hex-payload>",
	Short: "Repeatedly send a command and measure response times",
	Long: `Send the same payload several times through the retrying command transport
and report round-trip time and retries for each one.

This is useful for verifying:
  - The link is bidirectional
  - Responses pass their CRC check
  - How often commands need retransmitting

Exit codes:
  0 - Every command got a response
  1 - One or more commands failed after all retries
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of commands to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", 100*time.Millisecond, "Delay between commands")
}

func runPing(cmd *cobra.Command, args []string) error {
	payload, err := parseHexPayload(args[0])
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("s3gctl - Command Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %s x %d attempts\n", settings.Protocol.Timeout, settings.Protocol.MaxRetries)
	fmt.Printf("Count: %d\n\n", pingCount)

	stats := s3g.NewStatistics()
	r := newReplicator(conn, stats)
	successCount := 0
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Command %d/%d: ", i, pingCount)

		sentBefore := stats.Transmissions
		startTime := time.Now()
		response, err := r.SendCommand(payload)
		rtt := time.Since(startTime)
		attempts := stats.Transmissions - sentBefore

		switch {
		case err == nil:
			fmt.Printf("%d bytes, attempts=%d, rtt=%v\n", len(response), attempts, rtt.Round(time.Millisecond))
			successCount++
		case errors.As(err, new(*s3g.TransmissionError)):
			fmt.Printf("FAILED after %d attempts: %v\n", attempts, errors.Unwrap(err))
			failCount++
		default:
			fmt.Printf("LINK ERROR: %v\n", err)
			conn.Close()
			os.Exit(2)
		}

		if i < pingCount {
			time.Sleep(pingInterval)
		}
	}

	fmt.Printf("\n--- Command statistics ---\n")
	fmt.Printf("%d commands sent, %d responses received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)
	fmt.Print(stats.String())

	if failCount > 0 {
		conn.Close()
		os.Exit(1)
	}
	return nil
}
