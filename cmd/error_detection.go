// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/s3gctl/pkg/s3g"
)

var (
	showAll       bool
	statsInterval time.Duration
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and errors",
	Long: `Track framing errors, malformed commands, and anomalous values with statistics.

This command validates each frame and detects:
  - Header, length and CRC errors
  - Unknown opcodes and length mismatches for known commands
  - Anomalous values (zero feed rate)
  - Statistics and trends (frame rate, error rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Errors are reported as soon as they are seen, with periodic statistics
summaries at a configurable interval.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().DurationVar(&statsInterval, "stats-interval", 10*time.Second, "Statistics update interval")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runTUIMode(conn, connInfo)
	}
	return runTextMode(conn, connInfo)
}

// syncTracker ignores framing errors until the first valid frame
type syncTracker struct {
	synchronized bool
	invalidBytes int
}

// observe returns true when ev should be reported, and true for justSynced
// on the first valid frame
func (t *syncTracker) observe(ev frameEvent) (report, justSynced bool) {
	if t.synchronized {
		return true, false
	}
	t.invalidBytes += ev.skipped
	if ev.err != nil {
		t.invalidBytes++
		return false, false
	}
	t.synchronized = true
	return true, true
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(ev frameEvent) {
	timestamp := ev.timestamp.Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, ev.err)

	var crcErr *s3g.CRCError
	if errors.As(ev.err, &crcErr) {
		fmt.Printf("  CRC: received=0x%02X, calculated=0x%02X\n", crcErr.Got, crcErr.Expected)
	}
	fmt.Printf("  >>> DECODE FAILED <<<\n\n")
}

// printValidationErrors prints validation errors for a frame
func printValidationErrors(ev frameEvent, validationErrors []s3g.ValidationError) {
	timestamp := ev.timestamp.Format("15:04:05.000")
	name := "EMPTY"
	if len(ev.payload) > 0 {
		name = fmt.Sprintf("%s (0x%02X)", s3g.FormatCommandName(ev.payload[0]), ev.payload[0])
	}

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s\n", timestamp, name)
	fmt.Printf("  CRC: \033[1;32mOK\033[0m\n")

	for i, err := range validationErrors {
		switch err.Type {
		case s3g.AnomalyLengthMismatch:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if received, ok := err.Details["received"].(int); ok {
				if expected, ok := err.Details["expected"].(int); ok {
					fmt.Printf("    Length: received=%d, expected=%d\n", received, expected)
				}
			}

		case s3g.AnomalyUnknownOpcode, s3g.AnomalyEmptyPayload:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		default:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		}
	}

	if len(ev.payload) > 0 {
		fmt.Print(s3g.FormatHex(ev.payload))
	}
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(conn Connection, connInfo string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := initialModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		tracker := &syncTracker{}
		err := pumpFrames(ctx, conn, func(ev frameEvent) {
			report, justSynced := tracker.observe(ev)
			if justSynced {
				p.Send(syncMsg{invalidBytes: tracker.invalidBytes})
			}
			if !report {
				return
			}
			msg := frameDataMsg{event: ev}
			if ev.err == nil {
				msg.validationErrors = s3g.ValidatePayload(ev.payload)
			}
			p.Send(msg)
		})
		if err != nil {
			p.Send(linkErrorMsg{err: err})
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(conn Connection, connInfo string) error {
	fmt.Printf("s3gctl - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %s\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := s3g.NewStatistics()
	tracker := &syncTracker{}

	// Frames are decoded on the reader goroutine and handled here
	events := make(chan frameEvent, 64)
	errChan := make(chan error, 1)
	go func() {
		defer close(events)
		if err := pumpFrames(ctx, conn, func(ev frameEvent) { events <- ev }); err != nil {
			errChan <- err
		}
	}()

	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				fmt.Println()
				fmt.Print(stats.String())
				select {
				case err := <-errChan:
					return err
				default:
					return nil
				}
			}

			report, justSynced := tracker.observe(ev)
			if justSynced {
				if tracker.invalidBytes > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", tracker.invalidBytes)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}
			if !report {
				continue
			}

			if ev.err != nil {
				stats.RecordError(ev.err)
				printDecodeError(ev)
				continue
			}

			validationErrors := s3g.ValidatePayload(ev.payload)
			stats.RecordFrame(validationErrors)
			if len(validationErrors) > 0 {
				printValidationErrors(ev, validationErrors)
			} else if showAll {
				fmt.Print(s3g.FormatFrame(ev.timestamp, ev.payload))
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
