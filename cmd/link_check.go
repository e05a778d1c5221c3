// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var linkCheckDuration time.Duration

var linkCheckCmd = &cobra.Command{
	Use:   "link_check",
	Short: "Test raw link stability",
	Long: `Hold the link open without sending anything, logging every chunk received
and any error encountered. Useful for debugging connection stability issues.

Exit codes:
  0 - Link stayed up for the whole duration
  1 - Link failed during the test
  2 - Connection error`,
	RunE: runLinkCheck,
}

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().DurationVar(&linkCheckDuration, "duration", 30*time.Second, "Test duration")
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Link Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %s\n\n", linkCheckDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		buf := make([]byte, 256)
		for {
			select {
			case <-stop:
				return
			default:
			}
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
		}
	}()

	start := time.Now()
	endTime := start.Add(linkCheckDuration)
	bytesReceived := 0
	chunksReceived := 0
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	fmt.Printf("Listening for data...\n\n")

	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			bytesReceived += len(data)
			chunksReceived++
			fmt.Printf("[%s] Received %d bytes: % X\n",
				time.Now().Format("15:04:05.000"), len(data), data)

		case err := <-errChan:
			if errors.Is(err, ErrConnectionClosed) {
				fmt.Printf("\n[%s] Connection closed by peer\n", time.Now().Format("15:04:05.000"))
			} else {
				fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
			}
			printLinkResults(time.Since(start), chunksReceived, bytesReceived)
			fmt.Printf("Result: FAILED (connection error)\n")
			conn.Close()
			os.Exit(1)

		case <-heartbeat.C:
			remaining := time.Until(endTime).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)
		}
	}

	printLinkResults(time.Since(start), chunksReceived, bytesReceived)
	fmt.Printf("Result: PASSED (connection stable)\n")
	return nil
}

func printLinkResults(elapsed time.Duration, chunks, bytes int) {
	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Chunks received: %d\n", chunks)
	fmt.Printf("Bytes received: %d\n", bytes)
}
